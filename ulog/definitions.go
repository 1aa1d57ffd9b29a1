package ulog

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// builtinSizes gives the byte width of each of the 12 primitive ULog types.
var builtinSizes = map[string]int{
	"bool":     1,
	"int8_t":   1,
	"uint8_t":  1,
	"char":     1,
	"int16_t":  2,
	"uint16_t": 2,
	"int32_t":  4,
	"uint32_t": 4,
	"float":    4,
	"int64_t":  8,
	"uint64_t": 8,
	"double":   8,
}

func isBuiltin(t string) bool {
	_, ok := builtinSizes[t]
	return ok
}

// Field is one member of a MessageDefinition, parsed from a single clause of
// a format string: `type[arrayLength]? name`.
type Field struct {
	Type        string
	Name        string
	ArrayLength int // 0 means "not an array"
	IsComplex   bool

	sizeKnown bool
	size      int // per-element size, memoized on first resolution
}

// IsPadding reports whether this field is excluded from decoded output
// (still counted in offset arithmetic).
func (f *Field) IsPadding() bool {
	return strings.HasPrefix(f.Name, "_")
}

// Count returns the field's array length, or 1 for a scalar field.
func (f *Field) Count() int {
	if f.ArrayLength == 0 {
		return 1
	}
	return f.ArrayLength
}

// MessageDefinition is a named, ordered list of Fields parsed from an `F`
// record's format string.
type MessageDefinition struct {
	Name   string
	Fields []Field
	// Format is the original format string, stored verbatim as parsed.
	Format string
}

// DefinitionTable maps message name to MessageDefinition, as accumulated in
// the engine's Definitions-section pass.
type DefinitionTable map[string]*MessageDefinition

// formatCache memoizes parsed format strings by a checksum of their raw
// text: PX4 logs routinely declare byte-identical format strings across
// distinct multi_id instances of the same message, so a repeat definition
// string is common within a single file.
type formatCache struct {
	entries map[uint64]*MessageDefinition
}

func newFormatCache() *formatCache {
	return &formatCache{entries: make(map[uint64]*MessageDefinition)}
}

func (c *formatCache) lookup(raw string) (*MessageDefinition, bool) {
	def, ok := c.entries[xxhash.Sum64String(raw)]
	return def, ok
}

func (c *formatCache) store(raw string, def *MessageDefinition) {
	c.entries[xxhash.Sum64String(raw)] = def
}

// ParseFieldDefinition parses a single `type[len]? name` clause.
func ParseFieldDefinition(s string) (Field, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Field{}, &ErrBadFormat{Input: s, Reason: "empty field"}
	}
	parts := strings.SplitN(s, " ", 2)
	if len(parts) != 2 {
		return Field{}, &ErrBadFormat{Input: s, Reason: "expected \"type name\""}
	}
	typePart := strings.TrimSpace(parts[0])
	name := strings.TrimSpace(parts[1])
	if typePart == "" || name == "" {
		return Field{}, &ErrBadFormat{Input: s, Reason: "empty type or name"}
	}

	fieldType := typePart
	arrayLength := 0
	if open := strings.IndexByte(typePart, '['); open >= 0 {
		if !strings.HasSuffix(typePart, "]") {
			return Field{}, &ErrBadFormat{Input: s, Reason: "malformed array bracket"}
		}
		fieldType = typePart[:open]
		lenStr := typePart[open+1 : len(typePart)-1]
		n, err := strconv.Atoi(lenStr)
		if err != nil {
			return Field{}, &ErrBadFormat{Input: s, Reason: "non-integer array length"}
		}
		if n <= 0 {
			return Field{}, &ErrBadFormat{Input: s, Reason: "array length must be positive"}
		}
		arrayLength = n
	}
	if fieldType == "" {
		return Field{}, &ErrBadFormat{Input: s, Reason: "empty type"}
	}

	return Field{
		Type:        fieldType,
		Name:        name,
		ArrayLength: arrayLength,
		IsComplex:   !isBuiltin(fieldType),
	}, nil
}

// ParseMessageDefinition parses a full `name:field;field;...;?` format string.
func ParseMessageDefinition(s string) (*MessageDefinition, error) {
	return parseMessageDefinitionCached(s, nil)
}

func parseMessageDefinitionCached(s string, cache *formatCache) (*MessageDefinition, error) {
	if cache != nil {
		if def, ok := cache.lookup(s); ok {
			return def, nil
		}
	}
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return nil, &ErrBadFormat{Input: s, Reason: "missing ':' between name and fields"}
	}
	name := strings.TrimSpace(s[:colon])
	if name == "" {
		return nil, &ErrBadFormat{Input: s, Reason: "empty message name"}
	}
	rest := s[colon+1:]
	// Tolerate, but do not require, a trailing ';'. Empty clauses between
	// separators are silently skipped.
	clauses := strings.Split(rest, ";")
	fields := make([]Field, 0, len(clauses))
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		f, err := ParseFieldDefinition(clause)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	def := &MessageDefinition{Name: name, Fields: fields, Format: s}
	if cache != nil {
		cache.store(s, def)
	}
	return def, nil
}

// fieldSize returns the per-element byte size of f, memoizing the result on
// the field. Complex fields resolve recursively through defs; a missing
// reference is fatal. This is the chosen convention for the historical
// per-element-vs-total ambiguity: fieldSize always returns the size of one
// element, and callers multiply by f.Count() themselves.
func fieldSize(f *Field, defs DefinitionTable) (int, error) {
	if f.sizeKnown {
		return f.size, nil
	}
	if !f.IsComplex {
		size, ok := builtinSizes[f.Type]
		if !ok {
			return 0, &ErrBadFormat{Input: f.Type, Reason: "unknown builtin type"}
		}
		f.size = size
		f.sizeKnown = true
		return size, nil
	}
	def, ok := defs[f.Type]
	if !ok {
		return 0, ErrUnknownType
	}
	size, err := messageSize(def, defs)
	if err != nil {
		return 0, err
	}
	f.size = size
	f.sizeKnown = true
	return size, nil
}

// messageSize returns the total packed byte size of one instance of def,
// including padding fields, which participate in layout but not in decoded
// output.
func messageSize(def *MessageDefinition, defs DefinitionTable) (int, error) {
	total := 0
	for i := range def.Fields {
		elemSize, err := fieldSize(&def.Fields[i], defs)
		if err != nil {
			return 0, err
		}
		total += elemSize * def.Fields[i].Count()
	}
	return total, nil
}

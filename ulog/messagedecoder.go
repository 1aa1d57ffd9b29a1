package ulog

import (
	"encoding/binary"
	"math"
)

// StructValue is the decoded value tree produced by MessageDecoder for one
// instance of a MessageDefinition: an ordered set of named, non-padding
// members. Scalar primitive fields decode to their corresponding Go type
// (bool, int8, uint8, int16, uint16, int32, uint32, int64, uint64, float32,
// float64); primitive arrays decode to a []any of the same; char arrays (and
// scalar char fields) decode to a string; complex fields decode to a nested
// *StructValue, or []*StructValue for a complex array.
type StructValue struct {
	Definition string
	Order      []string
	Fields     map[string]any
}

// Get returns the decoded value for a field name, or nil if absent.
func (s *StructValue) Get(name string) any {
	return s.Fields[name]
}

func decodePrimitive(typ string, data []byte, offset int) (any, error) {
	width := builtinSizes[typ]
	if offset < 0 || offset+width > len(data) {
		return nil, &ErrShortRead{Offset: uint64(offset), Requested: width, Available: len(data) - offset}
	}
	switch typ {
	case "bool":
		return data[offset] != 0, nil
	case "int8_t":
		return int8(data[offset]), nil
	case "uint8_t":
		return data[offset], nil
	case "int16_t":
		return int16(binary.LittleEndian.Uint16(data[offset:])), nil
	case "uint16_t":
		return binary.LittleEndian.Uint16(data[offset:]), nil
	case "int32_t":
		return int32(binary.LittleEndian.Uint32(data[offset:])), nil
	case "uint32_t":
		return binary.LittleEndian.Uint32(data[offset:]), nil
	case "float":
		return math.Float32frombits(binary.LittleEndian.Uint32(data[offset:])), nil
	case "int64_t":
		return int64(binary.LittleEndian.Uint64(data[offset:])), nil
	case "uint64_t":
		return binary.LittleEndian.Uint64(data[offset:]), nil
	case "double":
		return math.Float64frombits(binary.LittleEndian.Uint64(data[offset:])), nil
	default:
		return nil, &ErrBadFormat{Input: typ, Reason: "not a builtin type"}
	}
}

func decodeCharField(data []byte, offset, count int) string {
	if offset >= len(data) {
		return ""
	}
	remaining := len(data) - offset
	if remaining < 0 {
		remaining = 0
	}
	n := count
	if n > remaining {
		n = remaining
	}
	if n < 0 {
		n = 0
	}
	return string(data[offset : offset+n])
}

// DecodeMessage walks def's fields in declaration order against data,
// starting at byte offset, producing the value tree described by
// StructValue. Every field advances the cursor, whether or not it is
// padding; padding fields are omitted from the output.
func DecodeMessage(def *MessageDefinition, defs DefinitionTable, data []byte, offset int) (*StructValue, error) {
	out := &StructValue{
		Definition: def.Name,
		Fields:     make(map[string]any, len(def.Fields)),
	}
	cursor := offset
	for i := range def.Fields {
		f := &def.Fields[i]
		elemSize, err := fieldSize(f, defs)
		if err != nil {
			return nil, err
		}
		count := f.Count()
		total := elemSize * count

		if f.IsPadding() {
			cursor += total
			continue
		}

		var value any
		switch {
		case f.IsComplex:
			nestedDef, ok := defs[f.Type]
			if !ok {
				return nil, ErrUnknownType
			}
			if f.ArrayLength == 0 {
				value, err = DecodeMessage(nestedDef, defs, data, cursor)
			} else {
				arr := make([]*StructValue, f.ArrayLength)
				for j := 0; j < f.ArrayLength; j++ {
					arr[j], err = DecodeMessage(nestedDef, defs, data, cursor+j*elemSize)
					if err != nil {
						break
					}
				}
				value = arr
			}
		case f.Type == "char":
			value = decodeCharField(data, cursor, count)
		case f.ArrayLength == 0:
			value, err = decodePrimitive(f.Type, data, cursor)
		default:
			arr := make([]any, f.ArrayLength)
			for j := 0; j < f.ArrayLength; j++ {
				arr[j], err = decodePrimitive(f.Type, data, cursor+j*elemSize)
				if err != nil {
					break
				}
			}
			value = arr
		}
		if err != nil {
			return nil, err
		}

		out.Fields[f.Name] = value
		out.Order = append(out.Order, f.Name)
		cursor += total
	}
	return out, nil
}

// timestampFieldOffset walks def's top-level fields, skipping padding and
// summing each field's packed size, until it finds a non-padding field named
// "timestamp" of type uint64_t. It returns the byte offset of that field
// relative to the start of a message instance. It is the single biggest
// indexing-performance lever: it lets the indexer extract a record's
// timestamp without decoding the rest of the message.
func timestampFieldOffset(def *MessageDefinition, defs DefinitionTable) (int, error) {
	cursor := 0
	for i := range def.Fields {
		f := &def.Fields[i]
		if !f.IsPadding() && f.Name == "timestamp" && f.Type == "uint64_t" && f.ArrayLength == 0 {
			return cursor, nil
		}
		elemSize, err := fieldSize(f, defs)
		if err != nil {
			return 0, err
		}
		cursor += elemSize * f.Count()
	}
	return 0, ErrMissingTimestamp
}

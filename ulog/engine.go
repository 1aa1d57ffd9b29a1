package ulog

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/flightlog/ulog/ulog/slicemap"
)

// Magic is the 7-byte ULog file magic.
var Magic = []byte{0x55, 0x4C, 0x6F, 0x67, 0x01, 0x12, 0x35}

// state is the engine's lifecycle state, per spec §4.5/§4.6.
type state int

const (
	stateUnopened state = iota
	stateHeaderRead
	stateDefinitionsParsed
	stateIndexed
)

// Header holds everything read from the file header and Definitions
// section.
type Header struct {
	Version        uint8
	StartTimestamp uint64
	FlagBits       *FlagBitsRecord
	Information    map[string]any
	Parameters     map[string]Parameter
	Definitions    DefinitionTable
}

// Parameter is a decoded Parameter/ParameterDefault value.
type Parameter struct {
	Value        any // int32 or float32
	DefaultTypes uint8
}

// Subscription binds a msg_id to the MessageDefinition used to decode every
// subsequent Data record carrying that msg_id.
type Subscription struct {
	Definition *MessageDefinition
	MultiID    uint8
}

// LogMessage is the decoded payload of a Log or LogTagged record.
type LogMessage struct {
	LogLevel  uint8
	Tagged    bool
	Tag       uint16
	Timestamp uint64
	Message   string
}

// DataSectionMessage is one message yielded by ReadMessages.
type DataSectionMessage struct {
	Timestamp uint64
	Offset    uint64
	Kind      EntryKind

	MsgID uint16       // valid iff Kind == EntryData
	Data  *StructValue // valid iff Kind == EntryData

	Log *LogMessage // valid iff Kind == EntryLog

	// Raw carries the fully decoded record for EntryOther entries
	// (AddLogged, RemoveLogged, Dropout, Synchronization, Unknown).
	Raw *Record
}

// Engine is the ULog decoder orchestrator: it owns the two-phase open()
// state machine, the subscription table, and the TimeIndex, and exposes the
// query/iteration API over a borrowed ByteSource.
type Engine struct {
	source    ByteSource
	chunkSize int
	reader    *ChunkedReader
	state     state

	header        Header
	subscriptions []*Subscription // dense, keyed by msg_id via slicemap

	dataEnd           int64
	index             TimeIndex
	timestampOffsets  map[uint16]int
	dataMessageCounts map[uint16]uint64
	logMessageCount   uint64
}

// Options configures an Engine.
type Options struct {
	// ChunkSize overrides ChunkedReader's default block size.
	ChunkSize int
}

// New constructs an Engine over source. The source is not read until Open.
func New(source ByteSource, opts Options) *Engine {
	return &Engine{
		source:            source,
		chunkSize:         opts.ChunkSize,
		header:            Header{Information: make(map[string]any), Parameters: make(map[string]Parameter), Definitions: make(DefinitionTable)},
		timestampOffsets:  make(map[uint16]int),
		dataMessageCounts: make(map[uint16]uint64),
	}
}

func (e *Engine) requireOpen() error {
	if e.state != stateIndexed {
		return ErrStateViolation
	}
	return nil
}

// Open reads the file header and Definitions section, then builds the
// TimeIndex over the Data section. It must be called exactly once before any
// other Engine method.
func (e *Engine) Open() error {
	reader, err := NewChunkedReader(e.source, e.chunkSize)
	if err != nil {
		return err
	}
	e.reader = reader

	if err := e.readFileHeader(); err != nil {
		return err
	}
	e.state = stateHeaderRead

	cache := newFormatCache()
	if err := e.parseDefinitions(cache); err != nil {
		return err
	}
	e.state = stateDefinitionsParsed

	e.computeDataEnd()
	if err := e.buildIndex(); err != nil {
		return err
	}
	e.index.sortStable()
	e.state = stateIndexed
	return nil
}

func (e *Engine) readFileHeader() error {
	magic, err := e.reader.ReadBytes(len(Magic))
	if err != nil {
		return err
	}
	for i, b := range Magic {
		if magic[i] != b {
			return &ErrInvalidMagic{Found: append([]byte(nil), magic...)}
		}
	}
	version, err := e.reader.ReadUint8()
	if err != nil {
		return err
	}
	start, err := e.reader.ReadUint64()
	if err != nil {
		return err
	}
	e.header.Version = version
	e.header.StartTimestamp = start
	return nil
}

// isDataSectionTag reports whether tag is one of the record tags that mark
// the end of the Definitions section when peeked ahead of decoding.
func isDataSectionTag(tag byte) bool {
	switch Tag(tag) {
	case TagAddLogged, TagRemoveLogged, TagData, TagLog, TagLogTagged, TagSynchronization, TagDropout:
		return true
	default:
		return false
	}
}

func (e *Engine) parseDefinitions(cache *formatCache) error {
	codec := NewRecordCodec(e.reader, -1, false)
	for {
		if e.reader.Remaining() < 3 {
			return fmt.Errorf("ulog: truncated before data section: %w", errUnexpectedEOF)
		}
		tagByte, err := e.reader.PeekUint8(2)
		if err != nil {
			return err
		}
		if isDataSectionTag(tagByte) {
			return nil
		}

		rec, err := codec.Next()
		if err != nil {
			return err
		}
		switch rec.Kind {
		case KindFlagBits:
			e.header.FlagBits = rec.FlagBits
		case KindInformation:
			if !rec.Information.Key.IsComplex {
				v, err := decodeSimpleValue(rec.Information.Key, rec.Information.Value)
				if err != nil {
					return err
				}
				e.header.Information[rec.Information.Key.Name] = v
			}
		case KindInformationMulti:
			if !rec.InformationMulti.Key.IsComplex {
				v, err := decodeSimpleValue(rec.InformationMulti.Key, rec.InformationMulti.Value)
				if err != nil {
					return err
				}
				key := rec.InformationMulti.Key.Name
				list, _ := e.header.Information[key].([]any)
				e.header.Information[key] = append(list, v)
			}
		case KindFormatDefinition:
			def, err := parseMessageDefinitionCached(rec.FormatDefinition.Format, cache)
			if err != nil {
				return err
			}
			e.header.Definitions[def.Name] = def
		case KindParameter:
			if acceptsParameterType(rec.Parameter.Key) {
				v, err := decodeSimpleValue(rec.Parameter.Key, rec.Parameter.Value)
				if err != nil {
					return err
				}
				e.header.Parameters[rec.Parameter.Key.Name] = Parameter{Value: v, DefaultTypes: 0}
			}
		case KindParameterDefault:
			if acceptsParameterType(rec.ParameterDefault.Key) {
				v, err := decodeSimpleValue(rec.ParameterDefault.Key, rec.ParameterDefault.Value)
				if err != nil {
					return err
				}
				e.header.Parameters[rec.ParameterDefault.Key.Name] = Parameter{
					Value:        v,
					DefaultTypes: rec.ParameterDefault.DefaultTypes,
				}
			}
		case KindUnknown:
			// forward-compatible: ignore.
		default:
			// The pre-peek above should have already ended the loop before
			// any Data-section record could reach decode.
			return fmt.Errorf("ulog: %w: data-section tag %q decoded inside Definitions loop", ErrStateViolation, string(rune(rec.Tag)))
		}
	}
}

func acceptsParameterType(key Field) bool {
	return !key.IsComplex && key.ArrayLength == 0 && (key.Type == "int32_t" || key.Type == "float")
}

// decodeSimpleValue decodes an Information/Parameter value against its key
// Field, which must be non-complex. Scalars decode to their native Go type;
// arrays decode to []any; char arrays decode to string.
func decodeSimpleValue(key Field, value []byte) (any, error) {
	if key.Type == "char" {
		return decodeCharField(value, 0, key.Count()), nil
	}
	if key.ArrayLength == 0 {
		return decodePrimitive(key.Type, value, 0)
	}
	width := builtinSizes[key.Type]
	out := make([]any, key.ArrayLength)
	for i := 0; i < key.ArrayLength; i++ {
		v, err := decodePrimitive(key.Type, value, i*width)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Engine) computeDataEnd() {
	dataEnd := e.reader.Size()
	if e.header.FlagBits != nil {
		off := e.header.FlagBits.AppendedOffsets[0]
		if off != 0 && int64(off) < dataEnd {
			dataEnd = int64(off)
		}
	}
	e.dataEnd = dataEnd
}

func (e *Engine) buildIndex() error {
	codec := NewRecordCodec(e.reader, e.dataEnd, true)
	runningMax := e.header.StartTimestamp

	for {
		rec, err := codec.Next()
		if err == errNoMoreRecords {
			break
		}
		if err != nil {
			return err
		}

		entry := IndexEntry{Offset: rec.Offset}
		switch rec.Kind {
		case KindAddLogged:
			def, ok := e.header.Definitions[rec.AddLogged.MessageName]
			if !ok {
				return fmt.Errorf("ulog: AddLogged record at offset %d references unknown message %q: %w",
					rec.Offset, rec.AddLogged.MessageName, ErrUnknownType)
			}
			sub := &Subscription{Definition: def, MultiID: rec.AddLogged.MultiID}
			e.subscriptions = slicemap.SetAt(e.subscriptions, rec.AddLogged.MsgID, sub)
			entry.Kind = EntryOther
			entry.Timestamp = runningMax

		case KindRemoveLogged:
			entry.Kind = EntryOther
			entry.Timestamp = runningMax

		case KindData:
			msgID := rec.Data.MsgID
			sub := slicemap.GetAt(e.subscriptions, msgID)
			if sub == nil {
				return fmt.Errorf("ulog: Data record at offset %d: %w", rec.Offset, ErrUnknownSubscription)
			}
			tsOffset, ok := e.timestampOffsets[msgID]
			if !ok {
				tsOffset, err = timestampFieldOffset(sub.Definition, e.header.Definitions)
				if err != nil {
					return fmt.Errorf("ulog: message %q: %w", sub.Definition.Name, err)
				}
				e.timestampOffsets[msgID] = tsOffset
			}
			if tsOffset+8 > len(rec.Data.Data) {
				return &ErrShortRead{Offset: rec.Offset, Requested: tsOffset + 8, Available: len(rec.Data.Data)}
			}
			ts := binary.LittleEndian.Uint64(rec.Data.Data[tsOffset:])
			e.dataMessageCounts[msgID]++
			runningMax = max(runningMax, ts)
			entry.Kind = EntryData
			entry.MsgID = msgID
			entry.Timestamp = ts

		case KindLog:
			e.logMessageCount++
			runningMax = max(runningMax, rec.Log.Timestamp)
			entry.Kind = EntryLog
			entry.Timestamp = rec.Log.Timestamp

		case KindLogTagged:
			e.logMessageCount++
			runningMax = max(runningMax, rec.LogTagged.Timestamp)
			entry.Kind = EntryLog
			entry.Timestamp = rec.LogTagged.Timestamp

		default: // Dropout, Synchronization, Unknown
			entry.Kind = EntryOther
			entry.Timestamp = runningMax
		}
		e.index.entries = append(e.index.entries, entry)
	}
	return nil
}

// Header returns the parsed file header and Definitions-section state.
func (e *Engine) Header() (Header, error) {
	if err := e.requireOpen(); err != nil {
		return Header{}, err
	}
	return e.header, nil
}

// Subscriptions returns the current msg_id -> Subscription bindings.
func (e *Engine) Subscriptions() (map[uint16]Subscription, error) {
	if err := e.requireOpen(); err != nil {
		return nil, err
	}
	out := make(map[uint16]Subscription)
	for id, sub := range slicemap.ToMap(e.subscriptions) {
		out[id] = *sub
	}
	return out, nil
}

// MessageCount returns the number of indexed records.
func (e *Engine) MessageCount() (uint64, error) {
	if err := e.requireOpen(); err != nil {
		return 0, err
	}
	return uint64(e.index.Len()), nil
}

// LogCount returns the number of Log + LogTagged records.
func (e *Engine) LogCount() (uint64, error) {
	if err := e.requireOpen(); err != nil {
		return 0, err
	}
	return e.logMessageCount, nil
}

// DataMessageCounts returns the number of Data records seen per msg_id.
func (e *Engine) DataMessageCounts() (map[uint16]uint64, error) {
	if err := e.requireOpen(); err != nil {
		return nil, err
	}
	out := make(map[uint16]uint64, len(e.dataMessageCounts))
	for k, v := range e.dataMessageCounts {
		out[k] = v
	}
	return out, nil
}

// TimeRange returns the first and last time-bearing record timestamps, or
// ok=false if the file has no Data or Log records.
func (e *Engine) TimeRange() (min, max uint64, ok bool, err error) {
	if err := e.requireOpen(); err != nil {
		return 0, 0, false, err
	}
	min, max, ok = e.index.TimeRange()
	return min, max, ok, nil
}

// ReadOptions configures ReadMessages.
type ReadOptions struct {
	// Start and End bound the inclusive timestamp range. Nil means
	// unbounded in that direction.
	Start, End *uint64
	// MsgIDs restricts Data records to this set; nil/empty means all.
	MsgIDs []uint16
	// IncludeLogs retains Log/LogTagged records even when MsgIDs is set.
	// Defaults to true via DefaultReadOptions.
	IncludeLogs bool
	// Reverse yields records in descending index order.
	Reverse bool
}

// DefaultReadOptions returns a ReadOptions with IncludeLogs set to its
// documented default of true.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{IncludeLogs: true}
}

// MessageIterator yields DataSectionMessage values in index order (or
// reversed). A partially consumed iterator leaves the Engine valid.
type MessageIterator struct {
	engine      *Engine
	lo, hi      int
	cur         int
	reverse     bool
	hasRange    bool
	msgIDFilter map[uint16]bool
	includeLogs bool
}

// ReadMessages returns an iterator over records in [start, end] (inclusive),
// optionally filtered by msg_id. It is valid only after Open.
func (e *Engine) ReadMessages(opts ReadOptions) (*MessageIterator, error) {
	if err := e.requireOpen(); err != nil {
		return nil, err
	}
	var start, end uint64 = 0, ^uint64(0)
	if opts.Start != nil {
		start = *opts.Start
	}
	if opts.End != nil {
		end = *opts.End
	}
	lo, hi, ok := e.index.Range(start, end)

	it := &MessageIterator{
		engine:      e,
		lo:          lo,
		hi:          hi,
		hasRange:    ok,
		reverse:     opts.Reverse,
		includeLogs: opts.IncludeLogs,
	}
	if len(opts.MsgIDs) > 0 {
		it.msgIDFilter = make(map[uint16]bool, len(opts.MsgIDs))
		for _, id := range opts.MsgIDs {
			it.msgIDFilter[id] = true
		}
	}
	if it.reverse {
		it.cur = hi
	} else {
		it.cur = lo
	}
	return it, nil
}

func (it *MessageIterator) keep(entry IndexEntry) bool {
	if it.msgIDFilter == nil {
		return entry.Kind != EntryLog || it.includeLogs
	}
	switch entry.Kind {
	case EntryData:
		return it.msgIDFilter[entry.MsgID]
	case EntryLog:
		return it.includeLogs
	default:
		return false
	}
}

// Next returns the next message, or io.EOF once the range is exhausted.
func (it *MessageIterator) Next() (*DataSectionMessage, error) {
	if !it.hasRange {
		return nil, io.EOF
	}
	for {
		if it.reverse {
			if it.cur < it.lo {
				return nil, io.EOF
			}
		} else {
			if it.cur > it.hi {
				return nil, io.EOF
			}
		}
		entry := it.engine.index.At(it.cur)
		if it.reverse {
			it.cur--
		} else {
			it.cur++
		}
		if !it.keep(entry) {
			continue
		}
		return it.engine.decodeEntry(entry)
	}
}

func (e *Engine) decodeEntry(entry IndexEntry) (*DataSectionMessage, error) {
	if err := e.reader.SeekTo(int64(entry.Offset)); err != nil {
		return nil, err
	}
	codec := NewRecordCodec(e.reader, -1, false)
	rec, err := codec.Next()
	if err != nil {
		return nil, err
	}

	msg := &DataSectionMessage{Timestamp: entry.Timestamp, Offset: entry.Offset, Kind: entry.Kind}
	switch rec.Kind {
	case KindData:
		sub := slicemap.GetAt(e.subscriptions, rec.Data.MsgID)
		if sub == nil {
			return nil, fmt.Errorf("ulog: Data record at offset %d: %w", entry.Offset, ErrUnknownSubscription)
		}
		structVal, err := DecodeMessage(sub.Definition, e.header.Definitions, rec.Data.Data, 0)
		if err != nil {
			return nil, err
		}
		msg.MsgID = rec.Data.MsgID
		msg.Data = structVal
	case KindLog:
		msg.Log = &LogMessage{LogLevel: rec.Log.LogLevel, Timestamp: rec.Log.Timestamp, Message: rec.Log.Message}
	case KindLogTagged:
		msg.Log = &LogMessage{
			LogLevel: rec.LogTagged.LogLevel, Tagged: true, Tag: rec.LogTagged.Tag,
			Timestamp: rec.LogTagged.Timestamp, Message: rec.LogTagged.Message,
		}
	default:
		msg.Raw = rec
	}
	return msg, nil
}

package ulog

import "encoding/binary"

// Tag is the single-byte ASCII record-type discriminator.
type Tag byte

const (
	TagFlagBits         Tag = 'B'
	TagInformation      Tag = 'I'
	TagInformationMulti Tag = 'M'
	TagFormatDefinition Tag = 'F'
	TagParameter        Tag = 'P'
	TagParameterDefault Tag = 'Q'
	TagAddLogged        Tag = 'A'
	TagRemoveLogged     Tag = 'R'
	TagData             Tag = 'D'
	TagLog              Tag = 'L'
	TagLogTagged        Tag = 'C'
	TagSynchronization  Tag = 'S'
	TagDropout          Tag = 'O'
)

// minPayloadSize gives the minimum payload length accepted for each known
// tag. Tags absent from this map are treated as Unknown and accepted at any
// length.
var minPayloadSize = map[Tag]int{
	TagFlagBits:         40,
	TagInformation:      1,
	TagInformationMulti: 2,
	TagFormatDefinition: 0,
	TagParameter:        1,
	TagParameterDefault: 2,
	TagAddLogged:        3,
	TagRemoveLogged:     1,
	TagData:             2,
	TagLog:              9,
	TagLogTagged:        11,
	TagSynchronization:  8,
	TagDropout:          2,
}

var syncMagic = [8]byte{0x2F, 0x73, 0x13, 0x20, 0x25, 0x0C, 0xBB, 0x12}

// RecordKind discriminates the decoded payload carried by a Record.
type RecordKind int

const (
	KindFlagBits RecordKind = iota
	KindInformation
	KindInformationMulti
	KindFormatDefinition
	KindParameter
	KindParameterDefault
	KindAddLogged
	KindRemoveLogged
	KindData
	KindLog
	KindLogTagged
	KindSynchronization
	KindDropout
	KindUnknown
)

// Record is the closed sum type of ULog record kinds. Exactly one of the
// tag-specific fields is populated, matching Kind.
type Record struct {
	Kind   RecordKind
	Offset uint64 // file offset of the record's size field
	Tag    byte

	FlagBits         *FlagBitsRecord
	Information      *InformationRecord
	InformationMulti *InformationMultiRecord
	FormatDefinition *FormatDefinitionRecord
	Parameter        *ParameterRecord
	ParameterDefault *ParameterDefaultRecord
	AddLogged        *AddLoggedRecord
	RemoveLogged     *RemoveLoggedRecord
	Data             *DataRecord
	Log              *LogRecord
	LogTagged        *LogTaggedRecord
	Synchronization  *SynchronizationRecord
	Dropout          *DropoutRecord
	Unknown          *UnknownRecord
}

type FlagBitsRecord struct {
	CompatFlags     [8]byte
	IncompatFlags   [8]byte
	AppendedOffsets [3]uint64
}

type InformationRecord struct {
	Key   Field
	Value []byte
}

type InformationMultiRecord struct {
	IsContinued bool
	Key         Field
	Value       []byte
}

type FormatDefinitionRecord struct {
	Format string
}

type ParameterRecord struct {
	Key   Field
	Value []byte
}

type ParameterDefaultRecord struct {
	DefaultTypes byte
	Key          Field
	Value        []byte
}

type AddLoggedRecord struct {
	MultiID     uint8
	MsgID       uint16
	MessageName string
}

type RemoveLoggedRecord struct {
	MsgID uint8
}

type DataRecord struct {
	MsgID uint16
	Data  []byte
}

type LogRecord struct {
	LogLevel  uint8
	Timestamp uint64
	Message   string
}

type LogTaggedRecord struct {
	LogLevel  uint8
	Tag       uint16
	Timestamp uint64
	Message   string
}

type SynchronizationRecord struct{}

type DropoutRecord struct {
	Duration uint16
}

type UnknownRecord struct {
	Data []byte
}

func parsePayloadKey(payload []byte, keyLenOffset int) (Field, []byte, error) {
	if keyLenOffset >= len(payload) {
		return Field{}, nil, &ErrMalformedRecord{Reason: "missing keyLen"}
	}
	keyLen := int(payload[keyLenOffset])
	start := keyLenOffset + 1
	if keyLen < 0 || start+keyLen > len(payload) {
		return Field{}, nil, &ErrMalformedRecord{Reason: "keyLen exceeds remaining payload"}
	}
	keyStr := string(payload[start : start+keyLen])
	field, err := ParseFieldDefinition(keyStr)
	if err != nil {
		return Field{}, nil, err
	}
	value := payload[start+keyLen:]
	return field, value, nil
}

func decodeFlagBits(payload []byte, offset uint64) (*FlagBitsRecord, error) {
	var rec FlagBitsRecord
	copy(rec.CompatFlags[:], payload[0:8])
	copy(rec.IncompatFlags[:], payload[8:16])
	for i := 0; i < 3; i++ {
		rec.AppendedOffsets[i] = binary.LittleEndian.Uint64(payload[16+8*i:])
	}
	if rec.IncompatFlags[0] > 1 {
		return nil, &ErrIncompatibleFlag{ByteIndex: 0, Value: rec.IncompatFlags[0]}
	}
	for i := 1; i < 8; i++ {
		if rec.IncompatFlags[i] != 0 {
			return nil, &ErrIncompatibleFlag{ByteIndex: i, Value: rec.IncompatFlags[i]}
		}
	}
	return &rec, nil
}

func decodeInformation(payload []byte, offset uint64) (*InformationRecord, error) {
	key, value, err := parsePayloadKey(payload, 0)
	if err != nil {
		return nil, withOffset(err, TagInformation, offset)
	}
	return &InformationRecord{Key: key, Value: append([]byte(nil), value...)}, nil
}

func decodeInformationMulti(payload []byte, offset uint64) (*InformationMultiRecord, error) {
	if len(payload) < 1 {
		return nil, &ErrMalformedRecord{Tag: byte(TagInformationMulti), Offset: offset, Reason: "missing isContinued"}
	}
	key, value, err := parsePayloadKey(payload, 1)
	if err != nil {
		return nil, withOffset(err, TagInformationMulti, offset)
	}
	return &InformationMultiRecord{
		IsContinued: payload[0] != 0,
		Key:         key,
		Value:       append([]byte(nil), value...),
	}, nil
}

func decodeFormatDefinition(payload []byte, offset uint64) (*FormatDefinitionRecord, error) {
	return &FormatDefinitionRecord{Format: string(payload)}, nil
}

func decodeParameter(payload []byte, offset uint64) (*ParameterRecord, error) {
	key, value, err := parsePayloadKey(payload, 0)
	if err != nil {
		return nil, withOffset(err, TagParameter, offset)
	}
	return &ParameterRecord{Key: key, Value: append([]byte(nil), value...)}, nil
}

func decodeParameterDefault(payload []byte, offset uint64) (*ParameterDefaultRecord, error) {
	if len(payload) < 1 {
		return nil, &ErrMalformedRecord{Tag: byte(TagParameterDefault), Offset: offset, Reason: "missing defaultTypes"}
	}
	key, value, err := parsePayloadKey(payload, 1)
	if err != nil {
		return nil, withOffset(err, TagParameterDefault, offset)
	}
	return &ParameterDefaultRecord{
		DefaultTypes: payload[0],
		Key:          key,
		Value:        append([]byte(nil), value...),
	}, nil
}

func decodeAddLogged(payload []byte, offset uint64) (*AddLoggedRecord, error) {
	if len(payload) < 3 {
		return nil, &ErrMalformedRecord{Tag: byte(TagAddLogged), Offset: offset, Reason: "short AddLogged payload"}
	}
	return &AddLoggedRecord{
		MultiID:     payload[0],
		MsgID:       binary.LittleEndian.Uint16(payload[1:3]),
		MessageName: string(payload[3:]),
	}, nil
}

func decodeRemoveLogged(payload []byte, offset uint64) (*RemoveLoggedRecord, error) {
	return &RemoveLoggedRecord{MsgID: payload[0]}, nil
}

func decodeData(payload []byte, offset uint64) (*DataRecord, error) {
	return &DataRecord{
		MsgID: binary.LittleEndian.Uint16(payload[0:2]),
		Data:  payload[2:],
	}, nil
}

func decodeLog(payload []byte, offset uint64) (*LogRecord, error) {
	return &LogRecord{
		LogLevel:  payload[0],
		Timestamp: binary.LittleEndian.Uint64(payload[1:9]),
		Message:   string(payload[9:]),
	}, nil
}

func decodeLogTagged(payload []byte, offset uint64) (*LogTaggedRecord, error) {
	return &LogTaggedRecord{
		LogLevel:  payload[0],
		Tag:       binary.LittleEndian.Uint16(payload[1:3]),
		Timestamp: binary.LittleEndian.Uint64(payload[3:11]),
		Message:   string(payload[11:]),
	}, nil
}

func decodeSynchronization(payload []byte, offset uint64) (*SynchronizationRecord, error) {
	if [8]byte(payload[:8]) != syncMagic {
		return nil, &ErrMalformedRecord{Tag: byte(TagSynchronization), Offset: offset, Reason: "invalid sync magic"}
	}
	return &SynchronizationRecord{}, nil
}

func decodeDropout(payload []byte, offset uint64) (*DropoutRecord, error) {
	return &DropoutRecord{Duration: binary.LittleEndian.Uint16(payload[0:2])}, nil
}

func withOffset(err error, tag Tag, offset uint64) error {
	if mr, ok := err.(*ErrMalformedRecord); ok {
		mr.Tag = byte(tag)
		mr.Offset = offset
		return mr
	}
	return err
}

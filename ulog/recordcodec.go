package ulog

import "errors"

// errNoMoreRecords is returned by RecordCodec.Next to indicate the stream of
// records has ended, whether because the bound was reached cleanly or
// because a truncated tail was encountered in lenient mode.
var errNoMoreRecords = errors.New("ulog: no more records")

// RecordCodec decodes one record at a time from a ChunkedReader, dispatching
// on the single-byte type tag that follows each record's uint16 size field.
type RecordCodec struct {
	reader  *ChunkedReader
	dataEnd int64 // exclusive upper bound on record offsets; <0 means "whole file"
	lenient bool  // treat a short read of a record's header or payload as end-of-stream
}

func NewRecordCodec(reader *ChunkedReader, dataEnd int64, lenient bool) *RecordCodec {
	return &RecordCodec{reader: reader, dataEnd: dataEnd, lenient: lenient}
}

func (c *RecordCodec) bound() int64 {
	if c.dataEnd < 0 {
		return c.reader.Size()
	}
	return c.dataEnd
}

// Next decodes and returns the next record, or errNoMoreRecords when fewer
// than 3 header bytes remain before the bound (or, in lenient mode, when the
// record's header or payload is cut short by the end of the file).
func (c *RecordCodec) Next() (*Record, error) {
	offset := c.reader.Position()
	if c.bound()-offset < 3 {
		return nil, errNoMoreRecords
	}

	size, err := c.reader.ReadUint16()
	if err != nil {
		if c.lenient {
			return nil, errNoMoreRecords
		}
		return nil, err
	}
	tagByte, err := c.reader.ReadUint8()
	if err != nil {
		if c.lenient {
			return nil, errNoMoreRecords
		}
		return nil, err
	}
	tag := Tag(tagByte)

	if min, known := minPayloadSize[tag]; known && int(size) < min {
		return nil, &ErrMalformedRecord{
			Tag:    tagByte,
			Offset: uint64(offset),
			Reason: "payload smaller than minimum for tag",
		}
	}

	payload, err := c.reader.ReadBytes(int(size))
	if err != nil {
		if c.lenient {
			return nil, errNoMoreRecords
		}
		return nil, err
	}

	rec := &Record{Offset: uint64(offset), Tag: tagByte}
	switch tag {
	case TagFlagBits:
		v, err := decodeFlagBits(payload, uint64(offset))
		if err != nil {
			return nil, err
		}
		rec.Kind, rec.FlagBits = KindFlagBits, v
	case TagInformation:
		v, err := decodeInformation(payload, uint64(offset))
		if err != nil {
			return nil, err
		}
		rec.Kind, rec.Information = KindInformation, v
	case TagInformationMulti:
		v, err := decodeInformationMulti(payload, uint64(offset))
		if err != nil {
			return nil, err
		}
		rec.Kind, rec.InformationMulti = KindInformationMulti, v
	case TagFormatDefinition:
		v, err := decodeFormatDefinition(payload, uint64(offset))
		if err != nil {
			return nil, err
		}
		rec.Kind, rec.FormatDefinition = KindFormatDefinition, v
	case TagParameter:
		v, err := decodeParameter(payload, uint64(offset))
		if err != nil {
			return nil, err
		}
		rec.Kind, rec.Parameter = KindParameter, v
	case TagParameterDefault:
		v, err := decodeParameterDefault(payload, uint64(offset))
		if err != nil {
			return nil, err
		}
		rec.Kind, rec.ParameterDefault = KindParameterDefault, v
	case TagAddLogged:
		v, err := decodeAddLogged(payload, uint64(offset))
		if err != nil {
			return nil, err
		}
		rec.Kind, rec.AddLogged = KindAddLogged, v
	case TagRemoveLogged:
		v, err := decodeRemoveLogged(payload, uint64(offset))
		if err != nil {
			return nil, err
		}
		rec.Kind, rec.RemoveLogged = KindRemoveLogged, v
	case TagData:
		v, err := decodeData(payload, uint64(offset))
		if err != nil {
			return nil, err
		}
		rec.Kind, rec.Data = KindData, v
	case TagLog:
		v, err := decodeLog(payload, uint64(offset))
		if err != nil {
			return nil, err
		}
		rec.Kind, rec.Log = KindLog, v
	case TagLogTagged:
		v, err := decodeLogTagged(payload, uint64(offset))
		if err != nil {
			return nil, err
		}
		rec.Kind, rec.LogTagged = KindLogTagged, v
	case TagSynchronization:
		v, err := decodeSynchronization(payload, uint64(offset))
		if err != nil {
			return nil, err
		}
		rec.Kind, rec.Synchronization = KindSynchronization, v
	case TagDropout:
		v, err := decodeDropout(payload, uint64(offset))
		if err != nil {
			return nil, err
		}
		rec.Kind, rec.Dropout = KindDropout, v
	default:
		rec.Kind = KindUnknown
		rec.Unknown = &UnknownRecord{Data: append([]byte(nil), payload...)}
	}
	return rec, nil
}

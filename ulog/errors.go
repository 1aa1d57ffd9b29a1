package ulog

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no useful structured payload
// beyond the wrapping produced at the call site.
var (
	ErrSeekOutOfRange      = errors.New("ulog: seek out of range")
	ErrStateViolation      = errors.New("ulog: operation requires an open engine")
	ErrUnknownSubscription = errors.New("ulog: data record references an unbound msg_id")
	ErrMissingTimestamp    = errors.New("ulog: message definition has no top-level uint64_t timestamp field")
	ErrUnknownType         = errors.New("ulog: field references an undefined message definition")
)

// ErrInvalidMagic indicates the 7-byte file magic did not match.
type ErrInvalidMagic struct {
	Found []byte
}

func (e *ErrInvalidMagic) Error() string {
	return fmt.Sprintf("ulog: invalid file magic, found %x", e.Found)
}

func (e *ErrInvalidMagic) Is(target error) bool {
	_, ok := target.(*ErrInvalidMagic)
	return ok
}

// ErrIncompatibleFlag indicates an incompatible-flags byte outside the
// single recognized "appended data" bit was set.
type ErrIncompatibleFlag struct {
	ByteIndex int
	Value     byte
}

func (e *ErrIncompatibleFlag) Error() string {
	return fmt.Sprintf("ulog: unreadable file: incompatible flag byte %d = 0x%02x", e.ByteIndex, e.Value)
}

func (e *ErrIncompatibleFlag) Is(target error) bool {
	_, ok := target.(*ErrIncompatibleFlag)
	return ok
}

// ErrShortRead indicates fewer bytes were available than a read requested.
type ErrShortRead struct {
	Offset    uint64
	Requested int
	Available int
}

func (e *ErrShortRead) Error() string {
	return fmt.Sprintf("ulog: short read at offset %d: requested %d bytes, %d available",
		e.Offset, e.Requested, e.Available)
}

func (e *ErrShortRead) Unwrap() error {
	return errUnexpectedEOF
}

func (e *ErrShortRead) Is(target error) bool {
	_, ok := target.(*ErrShortRead)
	return ok
}

var errUnexpectedEOF = errors.New("ulog: unexpected end of file")

// ErrMalformedRecord indicates a record payload violated its tag's shape:
// too small for the tag's minimum, an out-of-range keyLen, or bad sync bytes.
// A non-positive array length in a key or format string is reported as
// ErrBadFormat instead.
type ErrMalformedRecord struct {
	Tag    byte
	Offset uint64
	Reason string
}

func (e *ErrMalformedRecord) Error() string {
	return fmt.Sprintf("ulog: malformed %q record at offset %d: %s", string(e.Tag), e.Offset, e.Reason)
}

func (e *ErrMalformedRecord) Is(target error) bool {
	_, ok := target.(*ErrMalformedRecord)
	return ok
}

// ErrBadFormat indicates a format or field-definition string could not be parsed.
type ErrBadFormat struct {
	Input  string
	Reason string
}

func (e *ErrBadFormat) Error() string {
	return fmt.Sprintf("ulog: bad format string %q: %s", e.Input, e.Reason)
}

func (e *ErrBadFormat) Is(target error) bool {
	_, ok := target.(*ErrBadFormat)
	return ok
}

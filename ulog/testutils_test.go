package ulog

import "io"

// memSource is an in-memory ByteSource for tests, mirroring the style of the
// teacher's own inline fixture builders (file(), header(), message()...).
type memSource struct {
	data []byte
}

func (m *memSource) Open() (int64, error) {
	return int64(len(m.data)), nil
}

func (m *memSource) Read(offset int64, length int) ([]byte, error) {
	if offset >= int64(len(m.data)) {
		return nil, io.EOF
	}
	end := offset + int64(length)
	if end > int64(len(m.data)) {
		end = int64(len(m.data))
	}
	return m.data[offset:end], nil
}

func (m *memSource) Size() int64 {
	return int64(len(m.data))
}

func u16le(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
func u64le(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}
func u32le(v uint32) []byte {
	b := make([]byte, 4)
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// record builds one size-prefixed, tagged record: uint16 payload size, uint8
// tag, then payload.
func record(tag byte, payload []byte) []byte {
	out := make([]byte, 0, 3+len(payload))
	out = append(out, u16le(uint16(len(payload)))...)
	out = append(out, tag)
	out = append(out, payload...)
	return out
}

func fileHeader(version uint8, start uint64) []byte {
	out := append([]byte(nil), Magic...)
	out = append(out, version)
	out = append(out, u64le(start)...)
	return out
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

package ulog

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// DefaultChunkSize is the block size ChunkedReader fetches from its
// ByteSource when no chunk is loaded or the loaded chunk is exhausted.
const DefaultChunkSize = 256 * 1024

// ChunkedReader presents a cursor over a ByteSource, issuing block reads and
// stitching adjacent chunks together when a primitive straddles a boundary.
// It is the only component here that talks to a ByteSource; every other
// component reads through it.
type ChunkedReader struct {
	source    ByteSource
	size      int64
	chunkSize int

	chunkStart int64 // absolute offset of chunk[0]
	chunk      []byte
	chunkPos   int
}

// NewChunkedReader opens source and returns a reader positioned at offset 0.
func NewChunkedReader(source ByteSource, chunkSize int) (*ChunkedReader, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	size, err := source.Open()
	if err != nil {
		return nil, err
	}
	return &ChunkedReader{
		source:    source,
		size:      size,
		chunkSize: chunkSize,
	}, nil
}

// Position returns the logical byte offset of the next byte to be read.
func (r *ChunkedReader) Position() int64 {
	return r.chunkStart + int64(r.chunkPos)
}

// Size returns the total file size.
func (r *ChunkedReader) Size() int64 {
	return r.size
}

// Remaining returns the number of unread bytes between the cursor and EOF.
func (r *ChunkedReader) Remaining() int64 {
	return r.size - r.Position()
}

// SeekTo moves the cursor to an absolute offset, invalidating the loaded chunk.
func (r *ChunkedReader) SeekTo(absolute int64) error {
	if absolute < 0 || absolute > r.size {
		return ErrSeekOutOfRange
	}
	r.chunk = nil
	r.chunkStart = absolute
	r.chunkPos = 0
	return nil
}

// Seek moves the cursor by a relative offset, invalidating the loaded chunk.
func (r *ChunkedReader) Seek(relative int64) error {
	return r.SeekTo(r.Position() + relative)
}

// Skip advances the cursor by n bytes without holding the skipped region in memory.
func (r *ChunkedReader) Skip(n int64) error {
	if n < 0 {
		return ErrSeekOutOfRange
	}
	return r.SeekTo(r.Position() + n)
}

// clampChunk picks how many bytes to fetch for the next block read: at least
// minNeeded, normally chunkSize, never more than what remains in the file.
func clampChunk(chunkSize, minNeeded int, available int64) int {
	want := chunkSize
	if want < minNeeded {
		want = minNeeded
	}
	if int64(want) > available {
		want = int(available)
	}
	if want < 0 {
		want = 0
	}
	return want
}

// ensure guarantees that at least n bytes are available in the in-memory
// chunk starting at the current cursor, fetching and stitching chunks from
// the ByteSource as needed.
func (r *ChunkedReader) ensure(n int) error {
	if r.chunk != nil && r.chunkPos+n <= len(r.chunk) {
		return nil
	}
	pos := r.Position()
	available := r.size - pos

	if r.chunk == nil {
		toFetch := clampChunk(r.chunkSize, n, available)
		buf, err := r.source.Read(pos, toFetch)
		if err != nil {
			return err
		}
		r.chunk = buf
		r.chunkStart = pos
		r.chunkPos = 0
	} else {
		tail := r.chunk[r.chunkPos:]
		needed := n - len(tail)
		chunkEnd := r.chunkStart + int64(len(r.chunk))
		fileRemaining := r.size - chunkEnd
		toFetch := clampChunk(r.chunkSize, needed, fileRemaining)
		buf := make([]byte, len(tail)+toFetch)
		copy(buf, tail)
		if toFetch > 0 {
			fetched, err := r.source.Read(chunkEnd, toFetch)
			if err != nil {
				return err
			}
			copy(buf[len(tail):], fetched)
			if len(fetched) < toFetch {
				buf = buf[:len(tail)+len(fetched)]
			}
		}
		r.chunkStart = r.chunkStart + int64(r.chunkPos)
		r.chunk = buf
		r.chunkPos = 0
	}
	if len(r.chunk)-r.chunkPos < n {
		return &ErrShortRead{Offset: uint64(pos), Requested: n, Available: len(r.chunk) - r.chunkPos}
	}
	return nil
}

// PeekUint8 returns the byte at Position()+k without advancing the cursor.
func (r *ChunkedReader) PeekUint8(k int) (uint8, error) {
	if err := r.ensure(k + 1); err != nil {
		return 0, err
	}
	return r.chunk[r.chunkPos+k], nil
}

func (r *ChunkedReader) ReadUint8() (uint8, error) {
	if err := r.ensure(1); err != nil {
		return 0, err
	}
	v := r.chunk[r.chunkPos]
	r.chunkPos++
	return v, nil
}

func (r *ChunkedReader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

func (r *ChunkedReader) ReadUint16() (uint16, error) {
	if err := r.ensure(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.chunk[r.chunkPos:])
	r.chunkPos += 2
	return v, nil
}

func (r *ChunkedReader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *ChunkedReader) ReadUint32() (uint32, error) {
	if err := r.ensure(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.chunk[r.chunkPos:])
	r.chunkPos += 4
	return v, nil
}

func (r *ChunkedReader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *ChunkedReader) ReadUint64() (uint64, error) {
	if err := r.ensure(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.chunk[r.chunkPos:])
	r.chunkPos += 8
	return v, nil
}

func (r *ChunkedReader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

func (r *ChunkedReader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *ChunkedReader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadBytes returns a view of the next n bytes and advances the cursor by n.
// The returned slice is only valid until the next non-peek read: a later
// chunk fetch may reuse or discard the backing array.
func (r *ChunkedReader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrSeekOutOfRange
	}
	if err := r.ensure(n); err != nil {
		return nil, err
	}
	b := r.chunk[r.chunkPos : r.chunkPos+n]
	r.chunkPos += n
	return b, nil
}

// ReadString decodes the next n bytes as UTF-8. The result owns its storage.
func (r *ChunkedReader) ReadString(n int) (string, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return string(b), nil // ULog text fields are not guaranteed valid UTF-8 by upstream tools; keep the raw bytes rather than fail.
	}
	return string(b), nil
}

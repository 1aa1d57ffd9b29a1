package ulog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkedReaderBytesToPrimitives(t *testing.T) {
	src := &memSource{data: []byte{0, 1, 2, 3, 4, 5, 6, 7}}
	r, err := NewChunkedReader(src, 3)
	require.NoError(t, err)

	want := []uint16{0x0100, 0x0302, 0x0504, 0x0706}
	for _, w := range want {
		v, err := r.ReadUint16()
		require.NoError(t, err)
		assert.Equal(t, w, v)
	}
	_, err = r.ReadUint8()
	assert.Error(t, err)
}

func TestChunkedReaderStraddlesEveryBoundary(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i)
	}
	single := &memSource{data: data}
	singleReader, err := NewChunkedReader(single, 1<<20)
	require.NoError(t, err)

	for chunkSize := 1; chunkSize <= 8; chunkSize++ {
		chunked := &memSource{data: data}
		r, err := NewChunkedReader(chunked, chunkSize)
		require.NoError(t, err)

		for offset := 0; offset+8 <= len(data); offset++ {
			require.NoError(t, singleReader.SeekTo(int64(offset)))
			require.NoError(t, r.SeekTo(int64(offset)))

			wantU64, err := singleReader.ReadUint64()
			require.NoError(t, err)
			gotU64, err := r.ReadUint64()
			require.NoError(t, err)
			assert.Equal(t, wantU64, gotU64, "chunkSize=%d offset=%d", chunkSize, offset)

			require.NoError(t, singleReader.SeekTo(int64(offset)))
			require.NoError(t, r.SeekTo(int64(offset)))
			wantF64, err := singleReader.ReadFloat64()
			require.NoError(t, err)
			gotF64, err := r.ReadFloat64()
			require.NoError(t, err)
			assert.Equal(t, wantF64, gotF64, "chunkSize=%d offset=%d", chunkSize, offset)
		}

		for offset := 0; offset+4 <= len(data); offset++ {
			require.NoError(t, singleReader.SeekTo(int64(offset)))
			require.NoError(t, r.SeekTo(int64(offset)))
			wantU32, err := singleReader.ReadUint32()
			require.NoError(t, err)
			gotU32, err := r.ReadUint32()
			require.NoError(t, err)
			assert.Equal(t, wantU32, gotU32, "chunkSize=%d offset=%d", chunkSize, offset)
		}

		for offset := 0; offset+2 <= len(data); offset++ {
			require.NoError(t, singleReader.SeekTo(int64(offset)))
			require.NoError(t, r.SeekTo(int64(offset)))
			wantU16, err := singleReader.ReadUint16()
			require.NoError(t, err)
			gotU16, err := r.ReadUint16()
			require.NoError(t, err)
			assert.Equal(t, wantU16, gotU16, "chunkSize=%d offset=%d", chunkSize, offset)
		}
	}
}

func TestChunkedReaderPeekDoesNotAdvance(t *testing.T) {
	src := &memSource{data: []byte{9, 8, 7, 6}}
	r, err := NewChunkedReader(src, 2)
	require.NoError(t, err)

	v, err := r.PeekUint8(1)
	require.NoError(t, err)
	assert.Equal(t, uint8(8), v)
	assert.Equal(t, int64(0), r.Position())

	b, err := r.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(9), b)
}

func TestChunkedReaderSeekOutOfRange(t *testing.T) {
	src := &memSource{data: []byte{1, 2, 3}}
	r, err := NewChunkedReader(src, 2)
	require.NoError(t, err)
	assert.ErrorIs(t, r.SeekTo(-1), ErrSeekOutOfRange)
	assert.ErrorIs(t, r.SeekTo(100), ErrSeekOutOfRange)
}

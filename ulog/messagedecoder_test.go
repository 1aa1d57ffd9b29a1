package ulog

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessagePrimitivesAndPadding(t *testing.T) {
	def, err := ParseMessageDefinition("sample:uint64_t timestamp;uint8_t[2] _padding0;float value;")
	require.NoError(t, err)

	data := make([]byte, 0)
	data = append(data, u64le(112574307)...)
	data = append(data, 0xAA, 0xBB) // padding, excluded from output
	data = append(data, u32le(math.Float32bits(1.5))...)

	out, err := DecodeMessage(def, DefinitionTable{}, data, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(112574307), out.Get("timestamp"))
	assert.Nil(t, out.Get("_padding0"))
	assert.Equal(t, float32(1.5), out.Get("value"))
	assert.Equal(t, []string{"timestamp", "value"}, out.Order)
}

func TestDecodeMessagePrimitiveArray(t *testing.T) {
	def, err := ParseMessageDefinition("quat:float[4] q;")
	require.NoError(t, err)

	data := make([]byte, 0)
	for _, f := range []float32{0.1, 0.2, 0.3, 0.4} {
		data = append(data, u32le(math.Float32bits(f))...)
	}
	out, err := DecodeMessage(def, DefinitionTable{}, data, 0)
	require.NoError(t, err)
	arr := out.Get("q").([]any)
	require.Len(t, arr, 4)
	assert.Equal(t, float32(0.1), arr[0])
	assert.Equal(t, float32(0.4), arr[3])
}

func TestDecodeMessageNestedComplexField(t *testing.T) {
	defs := DefinitionTable{
		"inner": {Name: "inner", Fields: []Field{
			{Type: "uint8_t", Name: "a"},
			{Type: "uint16_t", Name: "b"},
		}},
	}
	outer := &MessageDefinition{Name: "outer", Fields: []Field{
		{Type: "inner", Name: "nested", IsComplex: true},
	}}
	data := []byte{7, 0x34, 0x12} // a=7, b=0x1234
	out, err := DecodeMessage(outer, defs, data, 0)
	require.NoError(t, err)
	nested := out.Get("nested").(*StructValue)
	assert.Equal(t, uint8(7), nested.Get("a"))
	assert.Equal(t, uint16(0x1234), nested.Get("b"))
}

func TestDecodeMessageComplexArray(t *testing.T) {
	defs := DefinitionTable{
		"pair": {Name: "pair", Fields: []Field{{Type: "uint8_t", Name: "v"}}},
	}
	outer := &MessageDefinition{Name: "outer", Fields: []Field{
		{Type: "pair", Name: "items", IsComplex: true, ArrayLength: 3},
	}}
	data := []byte{1, 2, 3}
	out, err := DecodeMessage(outer, defs, data, 0)
	require.NoError(t, err)
	arr := out.Get("items").([]*StructValue)
	require.Len(t, arr, 3)
	assert.Equal(t, uint8(2), arr[1].Get("v"))
}

func TestDecodeCharField(t *testing.T) {
	def, err := ParseMessageDefinition("named:char[8] name;")
	require.NoError(t, err)
	data := append([]byte("PX4"), 0, 0, 0, 0, 0)
	out, err := DecodeMessage(def, DefinitionTable{}, data, 0)
	require.NoError(t, err)
	assert.Equal(t, "PX4\x00\x00\x00\x00\x00", out.Get("name"))
}

func TestTimestampFieldOffsetSkipsPadding(t *testing.T) {
	def, err := ParseMessageDefinition("m:uint8_t[3] _pad;uint64_t timestamp;")
	require.NoError(t, err)
	off, err := timestampFieldOffset(def, DefinitionTable{})
	require.NoError(t, err)
	assert.Equal(t, 3, off)
}

func TestTimestampFieldOffsetMissing(t *testing.T) {
	def, err := ParseMessageDefinition("m:uint8_t a;")
	require.NoError(t, err)
	_, err = timestampFieldOffset(def, DefinitionTable{})
	assert.ErrorIs(t, err, ErrMissingTimestamp)
}

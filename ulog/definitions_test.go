package ulog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldDefinitionPaddingArray(t *testing.T) {
	f, err := ParseFieldDefinition("uint8_t[4] _padding0")
	require.NoError(t, err)
	assert.Equal(t, "uint8_t", f.Type)
	assert.Equal(t, "_padding0", f.Name)
	assert.Equal(t, 4, f.ArrayLength)
	assert.False(t, f.IsComplex)
	assert.True(t, f.IsPadding())
}

func TestParseMessageDefinitionEscStatus(t *testing.T) {
	def, err := ParseMessageDefinition(
		"esc_status:uint64_t timestamp;uint16_t counter;uint8_t esc_count;uint8_t esc_connectiontype;uint8_t[4] _padding0;esc_report[8] esc;",
	)
	require.NoError(t, err)
	assert.Equal(t, "esc_status", def.Name)
	require.Len(t, def.Fields, 6)

	last := def.Fields[5]
	assert.Equal(t, "esc", last.Name)
	assert.Equal(t, "esc_report", last.Type)
	assert.True(t, last.IsComplex)
	assert.Equal(t, 8, last.ArrayLength)
}

func TestParseMessageDefinitionTrailingSemicolonTolerated(t *testing.T) {
	withTrailing, err := ParseMessageDefinition("m:uint8_t a;uint8_t b;")
	require.NoError(t, err)
	withoutTrailing, err := ParseMessageDefinition("m:uint8_t a;uint8_t b")
	require.NoError(t, err)
	assert.Equal(t, withoutTrailing.Fields, withTrailing.Fields)
}

func TestParseMessageDefinitionSkipsEmptyClauses(t *testing.T) {
	def, err := ParseMessageDefinition("m:uint8_t a;;uint8_t b;")
	require.NoError(t, err)
	require.Len(t, def.Fields, 2)
}

func TestParseMessageDefinitionMissingColon(t *testing.T) {
	_, err := ParseMessageDefinition("not a definition")
	assert.Error(t, err)
}

// fieldSize is memoized per-element, not per-element*arrayLength: the chosen
// resolution of the historical size-memoization ambiguity.
func TestFieldSizeIsPerElement(t *testing.T) {
	f := Field{Type: "uint32_t", ArrayLength: 4}
	size, err := fieldSize(&f, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, size)
	assert.Equal(t, 4, f.Count())
	assert.Equal(t, 16, size*f.Count())
}

func TestFieldSizeResolvesComplexType(t *testing.T) {
	defs := DefinitionTable{
		"inner": {Name: "inner", Fields: []Field{
			{Type: "uint8_t", Name: "a"},
			{Type: "float", Name: "b"},
		}},
	}
	f := Field{Type: "inner", Name: "x", IsComplex: true}
	size, err := fieldSize(&f, defs)
	require.NoError(t, err)
	assert.Equal(t, 5, size)
}

func TestFieldSizeUnknownComplexType(t *testing.T) {
	f := Field{Type: "missing", IsComplex: true}
	_, err := fieldSize(&f, DefinitionTable{})
	assert.ErrorIs(t, err, ErrUnknownType)
}

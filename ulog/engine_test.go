package ulog

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyedPayload(key string, value []byte) []byte {
	out := []byte{byte(len(key))}
	out = append(out, []byte(key)...)
	out = append(out, value...)
	return out
}

func addLoggedPayload(multiID uint8, msgID uint16, name string) []byte {
	out := []byte{multiID}
	out = append(out, u16le(msgID)...)
	out = append(out, []byte(name)...)
	return out
}

func dataPayload(msgID uint16, body []byte) []byte {
	return append(u16le(msgID), body...)
}

func logPayload(level uint8, ts uint64, msg string) []byte {
	out := []byte{level}
	out = append(out, u64le(ts)...)
	out = append(out, []byte(msg)...)
	return out
}

// buildSample assembles a small, internally consistent ULog byte stream: one
// message definition, one Information entry, one Parameter, a subscription,
// one Data record, one Log record, and one Dropout record.
func buildSample(t *testing.T) []byte {
	t.Helper()
	format := "test_msg:uint64_t timestamp;float value;"

	messageBody := append(u64le(112574307), u32le(math.Float32bits(1.5))...)

	return concat(
		fileHeader(0, 112500176),
		record(byte(TagFormatDefinition), []byte(format)),
		record(byte(TagInformation), keyedPayload("char[3] sys_name", []byte("PX4"))),
		record(byte(TagParameter), keyedPayload("int32_t RC12_TRIM", u32le(1500))),
		record(byte(TagAddLogged), addLoggedPayload(0, 0, "test_msg")),
		record(byte(TagData), dataPayload(0, messageBody)),
		record(byte(TagLog), logPayload(2, 112574400, "boot complete")),
		record(byte(TagDropout), u16le(5)),
	)
}

func openSample(t *testing.T) *Engine {
	t.Helper()
	eng := New(&memSource{data: buildSample(t)}, Options{})
	require.NoError(t, eng.Open())
	return eng
}

func TestEngineOpenParsesHeader(t *testing.T) {
	eng := openSample(t)
	header, err := eng.Header()
	require.NoError(t, err)

	assert.Equal(t, uint8(0), header.Version)
	assert.Equal(t, uint64(112500176), header.StartTimestamp)
	assert.Nil(t, header.FlagBits)
	assert.Equal(t, "PX4", header.Information["sys_name"])
	assert.Equal(t, int32(1500), header.Parameters["RC12_TRIM"].Value)
	require.Contains(t, header.Definitions, "test_msg")
}

func TestEngineCountsAndTimeRange(t *testing.T) {
	eng := openSample(t)
	count, err := eng.MessageCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count) // AddLogged, Data, Log, Dropout

	logCount, err := eng.LogCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), logCount)

	counts, err := eng.DataMessageCounts()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), counts[0])

	minTS, maxTS, ok, err := eng.TimeRange()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(112574307), minTS)
	assert.Equal(t, uint64(112574400), maxTS)
}

func TestEngineSubscriptionsBound(t *testing.T) {
	eng := openSample(t)
	subs, err := eng.Subscriptions()
	require.NoError(t, err)
	sub, ok := subs[0]
	require.True(t, ok)
	assert.Equal(t, "test_msg", sub.Definition.Name)
	assert.Equal(t, uint8(0), sub.MultiID)
}

func TestEngineReadMessagesDecodesData(t *testing.T) {
	eng := openSample(t)
	it, err := eng.ReadMessages(DefaultReadOptions())
	require.NoError(t, err)

	var sawData, sawLog bool
	for {
		msg, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if msg.Data != nil {
			sawData = true
			assert.Equal(t, uint64(112574307), msg.Data.Get("timestamp"))
			assert.Equal(t, float32(1.5), msg.Data.Get("value"))
		}
		if msg.Log != nil {
			sawLog = true
			assert.Equal(t, "boot complete", msg.Log.Message)
		}
	}
	assert.True(t, sawData)
	assert.True(t, sawLog)
}

func TestEngineReadMessagesFiltersByMsgIDAndExcludesLogs(t *testing.T) {
	eng := openSample(t)
	opts := ReadOptions{MsgIDs: []uint16{0}, IncludeLogs: false}
	it, err := eng.ReadMessages(opts)
	require.NoError(t, err)

	count := 0
	for {
		msg, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.NotNil(t, msg.Data)
		count++
	}
	assert.Equal(t, 1, count)
}

func TestEngineReadMessagesRangeExcludesOutOfBounds(t *testing.T) {
	eng := openSample(t)
	start := uint64(200000000)
	it, err := eng.ReadMessages(ReadOptions{Start: &start, IncludeLogs: true})
	require.NoError(t, err)
	_, err = it.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEngineAccessorsRequireOpen(t *testing.T) {
	eng := New(&memSource{data: buildSample(t)}, Options{})
	_, err := eng.Header()
	assert.ErrorIs(t, err, ErrStateViolation)
}

func TestEngineRejectsBadMagic(t *testing.T) {
	data := append([]byte("NOTULOG"), fileHeader(0, 0)[7:]...)
	eng := New(&memSource{data: data}, Options{})
	err := eng.Open()
	var magicErr *ErrInvalidMagic
	assert.ErrorAs(t, err, &magicErr)
}

func TestEngineUnboundSubscriptionIsFatal(t *testing.T) {
	data := concat(
		fileHeader(0, 0),
		record(byte(TagFormatDefinition), []byte("m:uint64_t timestamp;")),
		record(byte(TagAddLogged), addLoggedPayload(0, 0, "does_not_exist")),
	)
	eng := New(&memSource{data: data}, Options{})
	err := eng.Open()
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestEngineUnknownSubscriptionDataRecordIsFatal(t *testing.T) {
	data := concat(
		fileHeader(0, 0),
		record(byte(TagFormatDefinition), []byte("m:uint64_t timestamp;")),
		record(byte(TagData), dataPayload(0, u64le(5))),
	)
	eng := New(&memSource{data: data}, Options{})
	err := eng.Open()
	assert.ErrorIs(t, err, ErrUnknownSubscription)
}

func TestEngineAppendedDataClampsDataEnd(t *testing.T) {
	format := "m:uint64_t timestamp;"
	flagPayload := make([]byte, 40)
	flagPayload[8] = 1 // incompatFlags[0]: appended-data bit

	head := concat(
		fileHeader(1, 0),
		record(byte(TagFlagBits), flagPayload), // AppendedOffsets[0] patched below
		record(byte(TagFormatDefinition), []byte(format)),
		record(byte(TagAddLogged), addLoggedPayload(0, 0, "m")),
		record(byte(TagData), dataPayload(0, u64le(100))),
	)
	appendedOffset := uint64(len(head))
	// patch AppendedOffsets[0] into the already-built FlagBits payload.
	binaryPatchOffset(head, len(fileHeader(1, 0))+3, appendedOffset)

	trailingGarbage := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	data := concat(head, trailingGarbage)

	eng := New(&memSource{data: data}, Options{})
	require.NoError(t, eng.Open())
	assert.Equal(t, int64(appendedOffset), eng.dataEnd)

	count, err := eng.MessageCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count) // AddLogged + Data, trailing garbage excluded
}

// binaryPatchOffset overwrites the 8 bytes for AppendedOffsets[0] (16 bytes
// into the FlagBits payload) at flagPayloadStart with v, little-endian.
func binaryPatchOffset(buf []byte, flagPayloadStart int, v uint64) {
	pos := flagPayloadStart + 16
	copy(buf[pos:pos+8], u64le(v))
}

package streamdecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedro9bee/tokentap/internal/catalog"
)

func TestDecodeSSESkipsDoneMarker(t *testing.T) {
	raw := []byte("data: {\"type\":\"message_start\"}\n\ndata: [DONE]\n\n")
	result := Decode(FormatSSE, nil, raw)
	require.Len(t, result.Docs, 1)
	m, ok := result.Docs[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "message_start", m["type"])
}

func TestDecodeSSEHonorsConfiguredDoneMarker(t *testing.T) {
	sse := &catalog.SSEResponseConfig{DoneMarker: "<<END>>"}
	raw := []byte("data: {\"a\":1}\n\ndata: <<END>>\n\n")
	result := Decode(FormatSSE, sse, raw)
	require.Len(t, result.Docs, 1)
}

func TestDecodeJSONLinesStripsFraming(t *testing.T) {
	raw := []byte("[\n{\"a\":1},\n{\"a\":2}\n]")
	result := Decode(FormatJSONLines, nil, raw)
	require.Len(t, result.Docs, 2)
}

func TestDecodeSSEOrJSONLinesPrefersJSONLines(t *testing.T) {
	raw := []byte(`[{"a":1},{"a":2}]`)
	result := Decode(FormatSSEOrJSONLines, nil, raw)
	require.Len(t, result.Docs, 2)
}

func TestDecodeSSEOrJSONLinesFallsBackToSSE(t *testing.T) {
	raw := []byte("data: {\"a\":1}\n\ndata: {\"a\":2}\n\n")
	result := Decode(FormatSSEOrJSONLines, nil, raw)
	require.Len(t, result.Docs, 2)
}

func TestDecodeUseLastChunkAppendsLastArrayElement(t *testing.T) {
	sse := &catalog.SSEResponseConfig{UseLastChunk: true}
	raw := []byte(`[{"a":1},{"a":2},{"a":3}]`)
	result := Decode(FormatSSEOrJSONLines, sse, raw)
	// Three array elements plus the last element appended again, so
	// last-write-wins extraction is guaranteed to end on it.
	require.Len(t, result.Docs, 4)
	last, ok := result.Docs[3].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), last["a"])
}

func TestDecodeEventStreamDoesNotParseFrames(t *testing.T) {
	result := Decode(FormatEventStream, nil, []byte{0x00, 0x01, 0x02})
	assert.True(t, result.IsEventStream)
	assert.Nil(t, result.Docs)
}

func TestIsEventStreamContentType(t *testing.T) {
	assert.True(t, IsEventStreamContentType("application/vnd.amazon.eventstream"))
	assert.False(t, IsEventStreamContentType("application/json"))
}

func TestLastJSONValue(t *testing.T) {
	raw := []byte("[\n{\"a\":1},\n{\"a\":2}\n]")
	v, ok := LastJSONValue(raw)
	require.True(t, ok)
	m := v.(map[string]any)
	assert.Equal(t, float64(2), m["a"])
}

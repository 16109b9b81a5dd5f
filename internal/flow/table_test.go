package flow

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedro9bee/tokentap/internal/catalog"
)

func newTestTable(t *testing.T) *Table {
	t.Helper()
	cat, err := catalog.Load("")
	require.NoError(t, err)
	tbl := NewTable(cat, nil)
	t.Cleanup(tbl.Close)
	return tbl
}

func TestOnRequestThenOnResponseBuildsEvent(t *testing.T) {
	tbl := newTestTable(t)
	ctx := context.Background()

	req := Request{
		ID:         "flow-1",
		Method:     "POST",
		Host:       "api.anthropic.com",
		Path:       "/v1/messages",
		Headers:    http.Header{"User-Agent": []string{"claude-code/1.0"}},
		Body:       []byte(`{"model":"claude-sonnet-4","messages":[{"role":"user","content":"hi"}]}`),
		RemoteAddr: "203.0.113.5:443",
		ReceivedAt: time.Now(),
	}
	require.NoError(t, tbl.OnRequest(ctx, req))

	resp := Response{
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
		Body: []byte(`{
			"model": "claude-sonnet-4",
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`),
	}

	event, err := tbl.OnResponse(ctx, "flow-1", resp)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "anthropic", event.Provider)
	assert.Equal(t, "claude-sonnet-4", event.Model)
	assert.Equal(t, 10, event.InputTokens)
	assert.Equal(t, 5, event.OutputTokens)
	assert.Equal(t, "claude-code", event.ClientType)
	assert.True(t, event.IsTokenConsuming)
	assert.NotEmpty(t, event.DeviceID)
	assert.Equal(t, event.DeviceID, event.Device.ID)
}

func TestOnResponseDropsTelemetryRequest(t *testing.T) {
	tbl := newTestTable(t)
	ctx := context.Background()

	req := Request{
		ID:      "flow-2",
		Host:    "q.us-east-1.amazonaws.com",
		Path:    "/telemetry",
		Headers: http.Header{"X-Amz-Target": []string{"AmazonQDeveloperService.SendTelemetryEvent"}},
		Body:    []byte(`{}`),
	}
	require.NoError(t, tbl.OnRequest(ctx, req))

	event, err := tbl.OnResponse(ctx, "flow-2", Response{StatusCode: 200, Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestOnResponseDropsUnmatchedProvider(t *testing.T) {
	tbl := newTestTable(t)
	ctx := context.Background()

	req := Request{
		ID:      "flow-3",
		Host:    "example.com",
		Path:    "/ping",
		Headers: http.Header{},
		Body:    []byte(`{}`),
	}
	require.NoError(t, tbl.OnRequest(ctx, req))

	event, err := tbl.OnResponse(ctx, "flow-3", Response{StatusCode: 200, Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestOnResponseHeadersMarksStreaming(t *testing.T) {
	tbl := newTestTable(t)
	ctx := context.Background()

	req := Request{
		ID:      "flow-4",
		Host:    "api.anthropic.com",
		Path:    "/v1/messages",
		Headers: http.Header{},
		Body:    []byte(`{"model":"claude-sonnet-4","messages":[{"role":"user","content":"hi"}],"stream":true}`),
	}
	require.NoError(t, tbl.OnRequest(ctx, req))

	require.NoError(t, tbl.OnResponseHeaders(ctx, "flow-4", http.Header{"Content-Type": []string{"text/event-stream"}}))

	tbl.AppendChunk("flow-4", []byte("data: {\"type\":\"message_start\",\"message\":{\"model\":\"claude-sonnet-4\",\"usage\":{\"input_tokens\":3}}}\n\n"))
	tbl.AppendChunk("flow-4", []byte("data: {\"type\":\"message_delta\",\"usage\":{\"output_tokens\":7},\"delta\":{\"stop_reason\":\"end_turn\"}}\n\n"))
	tbl.AppendChunk("flow-4", []byte("data: [DONE]\n\n"))

	event, err := tbl.OnResponse(ctx, "flow-4", Response{StatusCode: 200})
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.True(t, event.Streaming)
	assert.Equal(t, 3, event.InputTokens)
	assert.Equal(t, 7, event.OutputTokens)
}

func TestOnResponseGeminiArrayStream(t *testing.T) {
	tbl := newTestTable(t)
	ctx := context.Background()

	req := Request{
		ID:      "flow-5",
		Host:    "generativelanguage.googleapis.com",
		Path:    "/v1beta/models/gemini-pro:streamGenerateContent",
		Headers: http.Header{},
		Body:    []byte(`{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`),
	}
	require.NoError(t, tbl.OnRequest(ctx, req))

	// Gemini's stream arrives as a chunked JSON array with a plain JSON
	// content-type; the path alone marks the flow as streaming.
	require.NoError(t, tbl.OnResponseHeaders(ctx, "flow-5", http.Header{"Content-Type": []string{"application/json"}}))

	tbl.AppendChunk("flow-5", []byte(`[{"candidates":[{"content":{"parts":[{"text":"he"}]}}]},`))
	tbl.AppendChunk("flow-5", []byte(`{"usageMetadata":{"promptTokenCount":11,"candidatesTokenCount":4,"cachedContentTokenCount":1}}]`))

	event, err := tbl.OnResponse(ctx, "flow-5", Response{StatusCode: 200})
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.True(t, event.Streaming)
	assert.Equal(t, 11, event.InputTokens)
	assert.Equal(t, 4, event.OutputTokens)
	assert.Equal(t, 1, event.CacheReadTokens)
	assert.Equal(t, 15, event.TotalTokens)
}

func TestOnResponseUnknownFlowErrors(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.OnResponse(context.Background(), "nope", Response{})
	assert.Error(t, err)
}

package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseAnthropicViaCatalog(t *testing.T) {
	c := loadCatalog(t)
	p, ok := c.Get("anthropic")
	require.True(t, ok)

	body := decodeBody(t, `{
		"model": "claude-sonnet-4",
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 20}
	}`)

	fields := Response(p, body)
	assert.Equal(t, "claude-sonnet-4", fields.Model)
	assert.Equal(t, 10, fields.InputTokens)
	assert.Equal(t, 20, fields.OutputTokens)
	assert.Equal(t, "end_turn", fields.StopReason)
}

func TestResponseFallsBackWhenCatalogEmpty(t *testing.T) {
	// A provider with paths that don't match the body at all: catalog
	// extraction yields zero usage and "unknown" model, so the
	// hand-written fallback should take over.
	c := loadCatalog(t)
	p, ok := c.Get("anthropic")
	require.True(t, ok)
	p.Response.JSON.ModelPath = "$.nonexistent"
	p.Response.JSON.InputTokensPath = "$.nonexistent"
	p.Response.JSON.OutputTokensPath = "$.nonexistent"

	body := decodeBody(t, `{
		"model": "claude-sonnet-4",
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 20}
	}`)

	fields := Response(p, body)
	assert.Equal(t, "claude-sonnet-4", fields.Model)
	assert.Equal(t, 10, fields.InputTokens)
}

func TestGeminiResponseFallback(t *testing.T) {
	body := decodeBody(t, `{
		"usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 7},
		"candidates": [{"finishReason": "STOP"}]
	}`)
	fields := geminiResponseFallback(body)
	assert.Equal(t, 5, fields.InputTokens)
	assert.Equal(t, 7, fields.OutputTokens)
	assert.Equal(t, "STOP", fields.StopReason)
}

func TestGeminiStreamFallbackJSONArray(t *testing.T) {
	fullText := `[
		{"usageMetadata": {"promptTokenCount": 1, "candidatesTokenCount": 1}},
		{"usageMetadata": {"promptTokenCount": 2, "candidatesTokenCount": 9}}
	]`
	fields := geminiStreamFallback(fullText)
	assert.Equal(t, 2, fields.InputTokens)
	assert.Equal(t, 9, fields.OutputTokens)
}

func TestGeminiStreamFallbackNewlineDelimited(t *testing.T) {
	// No closing "]": the text is not a complete JSON array, so the
	// line-by-line branch is the one that runs.
	fullText := "[\n" +
		`{"usageMetadata": {"promptTokenCount": 1, "candidatesTokenCount": 1}},` + "\n" +
		`{"usageMetadata": {"promptTokenCount": 3, "candidatesTokenCount": 4}}` + "\n"
	fields := geminiStreamFallback(fullText)
	assert.Equal(t, 3, fields.InputTokens)
	assert.Equal(t, 4, fields.OutputTokens)
}

func TestAnthropicStreamFallbackLastWriteWins(t *testing.T) {
	docs := []any{
		map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"model": "claude-sonnet-4",
				"usage": map[string]any{"input_tokens": float64(12)},
			},
		},
		map[string]any{
			"type":  "message_delta",
			"usage": map[string]any{"output_tokens": float64(1)},
		},
		map[string]any{
			"type":  "message_delta",
			"usage": map[string]any{"output_tokens": float64(34)},
			"delta": map[string]any{"stop_reason": "end_turn"},
		},
	}
	fields := anthropicStreamFallback(docs)
	assert.Equal(t, "claude-sonnet-4", fields.Model)
	assert.Equal(t, 12, fields.InputTokens)
	assert.Equal(t, 34, fields.OutputTokens)
	assert.Equal(t, "end_turn", fields.StopReason)
}

func TestOpenAIStreamFallbackAcceptsUsageFromAnyChunk(t *testing.T) {
	docs := []any{
		map[string]any{"model": "gpt-4o", "choices": []any{map[string]any{}}},
		map[string]any{"usage": map[string]any{"prompt_tokens": float64(3), "completion_tokens": float64(4)}},
		map[string]any{"choices": []any{map[string]any{"finish_reason": "stop"}}},
	}
	fields := openaiStreamFallback(docs)
	assert.Equal(t, "gpt-4o", fields.Model)
	assert.Equal(t, 3, fields.InputTokens)
	assert.Equal(t, 4, fields.OutputTokens)
	assert.Equal(t, "stop", fields.StopReason)
}

func TestAmazonQResponseFallbackFieldNameVariants(t *testing.T) {
	body := decodeBody(t, `{"tokenUsage": {"inputTokens": 6, "outputTokens": 8}, "stopReason": "end"}`)
	fields := amazonQResponseFallback(body)
	assert.Equal(t, 6, fields.InputTokens)
	assert.Equal(t, 8, fields.OutputTokens)
	assert.Equal(t, "end", fields.StopReason)
}

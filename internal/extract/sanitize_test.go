package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMessagesRedactsStringContent(t *testing.T) {
	out := SanitizeMessages([]Message{{Role: "user", Content: "secret plan"}})
	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "[REDACTED]", out[0].Content)
}

func TestSanitizeMessagesKeepsEmptyStringEmpty(t *testing.T) {
	out := SanitizeMessages([]Message{{Role: "assistant", Content: ""}})
	assert.Equal(t, "", out[0].Content)
}

func TestSanitizeSystemRedactsText(t *testing.T) {
	assert.Equal(t, "[REDACTED]", SanitizeSystem("you are a pirate"))

	out := SanitizeSystem([]any{map[string]any{"type": "text", "text": "secret"}})
	parts, ok := out.([]any)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"type": "text", "text": "[REDACTED]"}, parts[0])
}

func TestSanitizeToolsKeepsNamesOnly(t *testing.T) {
	out := SanitizeTools([]any{
		map[string]any{"name": "get_weather", "description": "long free text", "input_schema": map[string]any{}},
		map[string]any{"function": map[string]any{"name": "search", "parameters": map[string]any{}}},
	})
	assert.Equal(t, []any{
		map[string]any{"name": "get_weather"},
		map[string]any{"name": "search"},
	}, out)
}

func TestSanitizeMessagesPreservesPartTypeDiscriminators(t *testing.T) {
	out := SanitizeMessages([]Message{{
		Role: "assistant",
		Content: []any{
			map[string]any{"type": "text", "text": "secret"},
			map[string]any{"type": "tool_use", "id": "t1", "input": map[string]any{"x": 1}},
		},
	}})
	parts, ok := out[0].Content.([]any)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"type": "text", "text": "[REDACTED]"}, parts[0])
	assert.Equal(t, map[string]any{"type": "tool_use"}, parts[1])
}

package pathexpr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestEvalField(t *testing.T) {
	doc := decode(t, `{"model":"claude-sonnet-4","usage":{"input_tokens":12}}`)

	e, err := Compile("$.model")
	require.NoError(t, err)
	v, ok := e.Eval(doc)
	require.True(t, ok)
	assert.Equal(t, "claude-sonnet-4", v)

	e2 := MustCompile("$.usage.input_tokens")
	v2, ok := e2.Eval(doc)
	require.True(t, ok)
	assert.Equal(t, float64(12), v2)
}

func TestEvalArrayWildcardReturnsWholeSlice(t *testing.T) {
	doc := decode(t, `{"messages":[{"role":"user","content":"a"},{"role":"assistant","content":"b"},{"role":"user","content":"c"}]}`)

	e := MustCompile("$.messages[*]")
	v, ok := e.Eval(doc)
	require.True(t, ok)
	arr, ok := v.([]any)
	require.True(t, ok)
	assert.Len(t, arr, 3)
}

func TestEvalArrayIndex(t *testing.T) {
	doc := decode(t, `{"candidates":[{"finishReason":"STOP"}]}`)
	e := MustCompile("$.candidates[0].finishReason")
	v, ok := e.Eval(doc)
	require.True(t, ok)
	assert.Equal(t, "STOP", v)
}

func TestEvalMissingPathReturnsFalse(t *testing.T) {
	doc := decode(t, `{"a":1}`)
	e := MustCompile("$.b.c")
	_, ok := e.Eval(doc)
	assert.False(t, ok)
}

func TestEvalRecursiveDescend(t *testing.T) {
	doc := decode(t, `{"message":{"usage":{"output_tokens":7}}}`)
	e := MustCompile("$..output_tokens")
	v, ok := e.Eval(doc)
	require.True(t, ok)
	assert.Equal(t, float64(7), v)
}

func TestCompileIsMemoized(t *testing.T) {
	e1, err := Compile("$.model")
	require.NoError(t, err)
	e2, err := Compile("$.model")
	require.NoError(t, err)
	assert.Same(t, e1, e2)
}

func TestExtractFieldWithFallbacks(t *testing.T) {
	doc := decode(t, `{"tokenUsage":{"inputTokens":5}}`)
	v := ExtractFieldWithFallbacks(doc, "$.usage.input_tokens", []string{"$.tokenUsage.inputTokens"}, 0)
	assert.Equal(t, float64(5), v)
}

func TestExtractFieldInvalidExpressionReturnsDefault(t *testing.T) {
	doc := decode(t, `{"a":1}`)
	v := ExtractField(doc, "$.[", "fallback")
	assert.Equal(t, "fallback", v)
}

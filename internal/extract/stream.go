package extract

import (
	"github.com/pedro9bee/tokentap/internal/catalog"
	"github.com/pedro9bee/tokentap/internal/pathexpr"
)

// StreamResponse extracts usage fields from a fully-drained stream. docs
// is the ordered list of JSON payloads already decoded from individual
// SSE/json-lines frames (see internal/streamdecode); rawText is the
// full concatenated text of the stream, used only by fallbacks that
// need to reparse it wholesale (Gemini's array-or-newline-delimited
// shape). Catalog extraction is tried first, gated per-event the same
// way as the JSON path, and falls back to a hand-written extractor when
// it comes up empty.
func StreamResponse(p catalog.Provider, docs []any, rawText string) ResponseFields {
	fields := streamViaCatalog(p, docs)
	if fields.Model == "unknown" && fields.InputTokens == 0 && fields.OutputTokens == 0 {
		if fb, ok := streamFallback(p.Name, docs, rawText); ok {
			return fb
		}
	}
	return fields
}

func streamViaCatalog(p catalog.Provider, docs []any) ResponseFields {
	result := defaultResponse(p.Name)
	sse := p.Response.SSE
	if sse == nil {
		return result
	}

	for _, doc := range docs {
		m, ok := doc.(map[string]any)
		if !ok {
			continue
		}
		eventType := asString(m["type"])

		if shouldExtractForEvent(sse.InputTokensEvent, eventType) {
			if v := pathexpr.ExtractFieldWithFallbacks(m, sse.InputTokensPath, sse.InputTokensPathAlt, nil); v != nil {
				result.InputTokens = pathexpr.AsInt(v)
			}
		}
		if shouldExtractForEvent(sse.OutputTokensEvent, eventType) {
			if v := pathexpr.ExtractFieldWithFallbacks(m, sse.OutputTokensPath, sse.OutputTokensPathAlt, nil); v != nil {
				result.OutputTokens = pathexpr.AsInt(v)
			}
		}
		if sse.CacheCreationTokensPath != "" && shouldExtractForEvent(sse.CacheCreationTokensEvent, eventType) {
			if v := pathexpr.ExtractField(m, sse.CacheCreationTokensPath, nil); v != nil {
				result.CacheCreationTokens = pathexpr.AsInt(v)
			}
		}
		if sse.CacheReadTokensPath != "" && shouldExtractForEvent(sse.CacheReadTokensEvent, eventType) {
			if v := pathexpr.ExtractField(m, sse.CacheReadTokensPath, nil); v != nil {
				result.CacheReadTokens = pathexpr.AsInt(v)
			}
		}
		if sse.ModelPath != "" && shouldExtractForEvent(sse.ModelEvent, eventType) {
			if v := pathexpr.AsString(pathexpr.ExtractField(m, sse.ModelPath, "")); v != "" {
				result.Model = v
			}
		}
		if sse.StopReasonPath != "" && shouldExtractForEvent(sse.StopReasonEvent, eventType) {
			if v := pathexpr.AsString(pathexpr.ExtractField(m, sse.StopReasonPath, "")); v != "" {
				result.StopReason = v
			}
		}
	}

	return result
}

// shouldExtractForEvent mirrors the original's event-type gate: an
// empty filter or "*" matches every event, anything else must match
// exactly.
func shouldExtractForEvent(filter, eventType string) bool {
	return filter == "" || filter == "*" || filter == eventType
}

func streamFallback(provider string, docs []any, rawText string) (ResponseFields, bool) {
	switch provider {
	case "anthropic":
		return anthropicStreamFallback(docs), true
	case "openai":
		return openaiStreamFallback(docs), true
	case "gemini":
		return geminiStreamFallback(rawText), true
	case "kiro":
		return amazonQStreamFallback(docs), true
	}
	return ResponseFields{}, false
}

package extract

import (
	"github.com/pedro9bee/tokentap/internal/catalog"
	"github.com/pedro9bee/tokentap/internal/pathexpr"
)

// Response extracts usage fields from a complete, non-streaming JSON
// response body using the provider's catalog entry, falling back to a
// hand-written extractor for the case the catalog produced nothing (no
// model and no tokens at all — meaning the paths genuinely didn't match).
func Response(p catalog.Provider, body any) ResponseFields {
	fields := responseViaCatalog(p, body)
	if fields.Model == "unknown" && fields.InputTokens == 0 && fields.OutputTokens == 0 {
		if fb, ok := responseFallback(p.Name, body); ok {
			return fb
		}
	}
	return fields
}

func responseViaCatalog(p catalog.Provider, body any) ResponseFields {
	jc := p.Response.JSON
	fields := defaultResponse(p.Name)

	fields.InputTokens = pathexpr.AsInt(pathexpr.ExtractFieldWithFallbacks(body, jc.InputTokensPath, jc.InputTokensPathAlt, 0))
	fields.OutputTokens = pathexpr.AsInt(pathexpr.ExtractFieldWithFallbacks(body, jc.OutputTokensPath, jc.OutputTokensPathAlt, 0))

	if jc.CacheCreationTokensPath != "" {
		fields.CacheCreationTokens = pathexpr.AsInt(pathexpr.ExtractField(body, jc.CacheCreationTokensPath, 0))
	}
	if jc.CacheReadTokensPath != "" {
		fields.CacheReadTokens = pathexpr.AsInt(pathexpr.ExtractField(body, jc.CacheReadTokensPath, 0))
	}
	if jc.ModelPath != "" {
		if m := pathexpr.AsString(pathexpr.ExtractField(body, jc.ModelPath, "")); m != "" {
			fields.Model = m
		}
	}
	if jc.StopReasonPath != "" {
		fields.StopReason = pathexpr.AsString(pathexpr.ExtractFieldWithFallbacks(body, jc.StopReasonPath, jc.StopReasonPathAlt, nil))
	}

	return fields
}

func responseFallback(provider string, body any) (ResponseFields, bool) {
	switch provider {
	case "anthropic":
		return anthropicResponseFallback(body), true
	case "openai":
		return openaiResponseFallback(body), true
	case "gemini":
		return geminiResponseFallback(body), true
	case "kiro":
		return amazonQResponseFallback(body), true
	}
	return ResponseFields{}, false
}

package extract

import (
	"strings"

	"github.com/pedro9bee/tokentap/internal/catalog"
	"github.com/pedro9bee/tokentap/internal/pathexpr"
)

// Request extracts request fields for provider, preferring the catalog's
// path expressions and falling back to a hand-written extractor when the
// catalog's result fails the quality gate (see isRequestQualityAcceptable).
func Request(p catalog.Provider, body any) RequestFields {
	fields := requestViaCatalog(p, body)

	if !isRequestQualityAcceptable(fields, body) {
		if fb, ok := requestFallback(p.Name, body); ok {
			fields = fb
		}
	}

	// budget_tokens detection runs independently of which extractor
	// produced fields: it's read straight off the raw body rather than
	// through a catalog path expression, since no provider descriptor
	// declares a thinking-budget path.
	fields.Thinking = fields.Thinking || hasBudgetTokensInBody(body)

	if m, ok := body.(map[string]any); ok && fields.Metadata == nil {
		fields.Metadata = m["metadata"]
	}

	return fields
}

// hasBudgetTokensInBody reports whether body carries a truthy
// budget_tokens, either at the top level or nested under "thinking".
func hasBudgetTokensInBody(body any) bool {
	m, ok := body.(map[string]any)
	if !ok {
		return false
	}
	if truthy(m["budget_tokens"]) {
		return true
	}
	if thinking, ok := m["thinking"].(map[string]any); ok {
		if truthy(thinking["budget_tokens"]) {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

func requestViaCatalog(p catalog.Provider, body any) RequestFields {
	rc := p.Request
	fields := RequestFields{
		Provider: p.Name,
		Model:    pathexpr.AsString(pathexpr.ExtractField(body, rc.ModelPath, "unknown")),
	}
	if fields.Model == "" {
		fields.Model = "unknown"
	}

	if rc.MessagesPath != "" {
		if raw := pathexpr.ExtractField(body, rc.MessagesPath, nil); raw != nil {
			fields.Messages = toMessages(raw)
		}
	}

	if rc.SystemPath != "" {
		fields.System = pathexpr.ExtractField(body, rc.SystemPath, nil)
	}

	if rc.ToolsPath != "" {
		fields.Tools = pathexpr.ExtractField(body, rc.ToolsPath, nil)
	}

	if rc.StreamParamPath != "" {
		if v := pathexpr.ExtractField(body, rc.StreamParamPath, false); v != nil {
			if b, ok := v.(bool); ok {
				fields.Streaming = b
			}
		}
	}

	var textParts []string
	for _, tp := range rc.TextFields {
		v := pathexpr.ExtractField(body, tp, nil)
		if v == nil {
			continue
		}
		switch t := v.(type) {
		case []any:
			for _, item := range t {
				if s := extractTextFromContent(item); s != "" {
					textParts = append(textParts, s)
				}
			}
		default:
			if s := extractTextFromContent(t); s != "" {
				textParts = append(textParts, s)
			}
		}
	}
	fields.TotalText = strings.Join(textParts, "\n")

	return fields
}

// isRequestQualityAcceptable flags catalog extraction as unreliable when
// it clearly lost data the raw body actually had — mirrors the original
// extractor's quality gate exactly.
func isRequestQualityAcceptable(fields RequestFields, body any) bool {
	m, ok := body.(map[string]any)
	if !ok {
		return true
	}

	if origMsgs, ok := m["messages"].([]any); ok {
		if len(origMsgs) > 1 && len(fields.Messages) == 1 {
			return false
		}
	}

	if sys, ok := m["system"]; ok && !isEmptyValue(sys) {
		if fields.System == nil {
			return false
		}
	}

	if tools, ok := m["tools"]; ok && !isEmptyValue(tools) {
		if fields.Tools == nil {
			return false
		}
	}

	return true
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	}
	return false
}

func toMessages(raw any) []Message {
	arr, ok := raw.([]any)
	if !ok {
		arr = []any{raw}
	}
	msgs := make([]Message, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		if role == "" {
			role = "unknown"
		}
		msgs = append(msgs, Message{Role: role, Content: m["content"]})
	}
	return msgs
}

// extractTextFromContent handles the Anthropic/Gemini-style nested
// content shapes: a plain string, a list of {type,text} or {content:...}
// parts, or a single such object.
func extractTextFromContent(content any) string {
	switch t := content.(type) {
	case string:
		return t
	case []any:
		var parts []string
		for _, item := range t {
			switch it := item.(type) {
			case string:
				parts = append(parts, it)
			case map[string]any:
				if text, ok := it["text"].(string); ok {
					parts = append(parts, text)
				} else if nested, ok := it["content"]; ok {
					if s := extractTextFromContent(nested); s != "" {
						parts = append(parts, s)
					}
				} else if parts2, ok := it["parts"].([]any); ok {
					for _, p := range parts2 {
						if pm, ok := p.(map[string]any); ok {
							if text, ok := pm["text"].(string); ok {
								parts = append(parts, text)
							}
						}
					}
				}
			}
		}
		return strings.Join(parts, " ")
	case map[string]any:
		if text, ok := t["text"].(string); ok {
			return text
		}
		if nested, ok := t["content"]; ok {
			return extractTextFromContent(nested)
		}
		if parts, ok := t["parts"].([]any); ok {
			var out []string
			for _, p := range parts {
				if pm, ok := p.(map[string]any); ok {
					if text, ok := pm["text"].(string); ok {
						out = append(out, text)
					}
				}
			}
			return strings.Join(out, " ")
		}
	}
	return ""
}

func requestFallback(provider string, body any) (RequestFields, bool) {
	switch provider {
	case "anthropic":
		return anthropicRequestFallback(body), true
	case "openai":
		return openaiRequestFallback(body), true
	case "gemini":
		return geminiRequestFallback(body), true
	case "kiro":
		return amazonQRequestFallback(body), true
	}
	return RequestFields{}, false
}

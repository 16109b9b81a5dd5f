package extract

import (
	"encoding/json"
	"strings"
)

// geminiRequestFallback extracts messages from a Gemini generateContent
// request, which uses "contents"/"parts" instead of OpenAI's
// "messages"/"content", and a separate systemInstruction block.
func geminiRequestFallback(body any) RequestFields {
	m, _ := body.(map[string]any)
	result := RequestFields{Provider: "gemini", Model: "gemini"}
	if m == nil {
		return result
	}

	var texts []string

	if sys, ok := m["systemInstruction"].(map[string]any); ok {
		if text := joinParts(sys["parts"]); text != "" {
			result.System = text
			result.Messages = append(result.Messages, Message{Role: "system", Content: text})
			texts = append(texts, text)
		}
	}

	if contents, ok := m["contents"].([]any); ok {
		for _, raw := range contents {
			c, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			role, _ := c["role"].(string)
			if role == "" {
				role = "user"
			}
			text := joinParts(c["parts"])
			result.Messages = append(result.Messages, Message{Role: role, Content: text})
			texts = append(texts, text)
		}
	}

	result.TotalText = strings.Join(texts, "\n")
	return result
}

func joinParts(raw any) string {
	parts, ok := raw.([]any)
	if !ok {
		return ""
	}
	var out []string
	for _, p := range parts {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := pm["text"].(string); ok {
			out = append(out, text)
		}
	}
	return strings.Join(out, " ")
}

// geminiResponseFallback extracts usage from a complete generateContent
// response.
func geminiResponseFallback(body any) ResponseFields {
	m, _ := body.(map[string]any)
	result := defaultResponse("gemini")
	result.Model = "gemini"
	if m == nil {
		return result
	}
	usage, _ := m["usageMetadata"].(map[string]any)
	result.InputTokens = intField(usage, "promptTokenCount")
	result.OutputTokens = intField(usage, "candidatesTokenCount")
	result.CacheReadTokens = intField(usage, "cachedContentTokenCount")
	if candidates, ok := m["candidates"].([]any); ok && len(candidates) > 0 {
		if c, ok := candidates[0].(map[string]any); ok {
			if reason, ok := c["finishReason"].(string); ok {
				result.StopReason = reason
			}
		}
	}
	return result
}

// geminiStreamFallback handles both of Gemini's streaming shapes: a
// single top-level JSON array (the whole body parses as one array once
// the stream ends), or newline-delimited JSON with stray "[", "]", ","
// framing characters. Either way, only the last element carries the
// cumulative usageMetadata.
func geminiStreamFallback(fullText string) ResponseFields {
	var asArray []any
	if err := json.Unmarshal([]byte(fullText), &asArray); err == nil && len(asArray) > 0 {
		return geminiResponseFallback(asArray[len(asArray)-1])
	}

	var lastValid any
	for _, line := range strings.Split(fullText, "\n") {
		line = strings.Trim(strings.TrimSpace(line), ",[]")
		if line == "" {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(line), &v); err == nil {
			lastValid = v
		}
	}
	if lastValid != nil {
		return geminiResponseFallback(lastValid)
	}
	return defaultResponse("gemini")
}

package extract

import "strings"

// anthropicRequestFallback mirrors the Anthropic Messages API request
// shape directly, independent of the catalog's path expressions — used
// when the catalog extraction looks incomplete.
func anthropicRequestFallback(body any) RequestFields {
	m, _ := body.(map[string]any)
	result := RequestFields{Provider: "anthropic", Model: "unknown"}
	if m == nil {
		return result
	}
	if model, ok := m["model"].(string); ok {
		result.Model = model
	}

	var texts []string

	if system, ok := m["system"]; ok && !isEmptyValue(system) {
		systemText := extractTextFromContent(system)
		result.System = systemText
		texts = append(texts, systemText)
		result.Messages = append(result.Messages, Message{Role: "system", Content: systemText})
	}

	if tools, ok := m["tools"]; ok && !isEmptyValue(tools) {
		result.Tools = tools
	}

	if thinking, ok := m["thinking"].(map[string]any); ok {
		if _, ok := thinking["budget_tokens"]; ok {
			result.Thinking = true
		}
	}

	if msgs, ok := m["messages"].([]any); ok {
		for _, raw := range msgs {
			msg, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			role, _ := msg["role"].(string)
			if role == "" {
				role = "unknown"
			}
			content := extractTextFromContent(msg["content"])
			result.Messages = append(result.Messages, Message{Role: role, Content: content})
			texts = append(texts, content)
		}
	}

	result.TotalText = strings.Join(texts, "\n")
	return result
}

// anthropicResponseFallback extracts usage from a complete Anthropic
// Messages API response (non-streaming).
func anthropicResponseFallback(body any) ResponseFields {
	m, _ := body.(map[string]any)
	result := defaultResponse("anthropic")
	if m == nil {
		return result
	}
	usage, _ := m["usage"].(map[string]any)
	result.InputTokens = intField(usage, "input_tokens")
	result.OutputTokens = intField(usage, "output_tokens")
	result.CacheCreationTokens = intField(usage, "cache_creation_input_tokens")
	result.CacheReadTokens = intField(usage, "cache_read_input_tokens")
	if model, ok := m["model"].(string); ok {
		result.Model = model
	}
	if reason, ok := m["stop_reason"].(string); ok {
		result.StopReason = reason
	}
	return result
}

// anthropicStreamFallback accumulates usage across SSE events for
// message_start (model, input/cache tokens) and message_delta (output
// tokens, stop_reason), last-write-wins per field. docs is the list of
// already-decoded "data: {...}" JSON payloads, in stream order.
func anthropicStreamFallback(docs []any) ResponseFields {
	result := defaultResponse("anthropic")
	for _, doc := range docs {
		m, ok := doc.(map[string]any)
		if !ok {
			continue
		}
		switch asString(m["type"]) {
		case "message_start":
			msg, _ := m["message"].(map[string]any)
			if model, ok := msg["model"].(string); ok {
				result.Model = model
			}
			usage, _ := msg["usage"].(map[string]any)
			result.InputTokens = intField(usage, "input_tokens")
			result.CacheCreationTokens = intField(usage, "cache_creation_input_tokens")
			result.CacheReadTokens = intField(usage, "cache_read_input_tokens")
		case "message_delta":
			usage, _ := m["usage"].(map[string]any)
			if usage != nil {
				result.OutputTokens = intField(usage, "output_tokens")
			}
			delta, _ := m["delta"].(map[string]any)
			if reason, ok := delta["stop_reason"].(string); ok {
				result.StopReason = reason
			}
		}
	}
	return result
}

func intField(m map[string]any, key string) int {
	if m == nil {
		return 0
	}
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

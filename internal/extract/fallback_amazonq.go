package extract

import "strings"

// amazonQRequestFallback covers Kiro/Amazon Q's several request shapes:
// a "messages" array (closest to chat-style), else a flat "prompt"
// field, else a Bedrock-style "inputText" field. Tried in that order
// and the first one present wins.
func amazonQRequestFallback(body any) RequestFields {
	m, _ := body.(map[string]any)
	result := RequestFields{Provider: "kiro", Model: "amazon-q"}
	if m == nil {
		return result
	}

	if msgs, ok := m["messages"].([]any); ok && len(msgs) > 0 {
		var texts []string
		for _, raw := range msgs {
			mm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			role, _ := mm["role"].(string)
			if role == "" {
				role = "user"
			}
			content := extractTextFromContent(mm["content"])
			result.Messages = append(result.Messages, Message{Role: role, Content: content})
			texts = append(texts, content)
		}
		result.TotalText = strings.Join(texts, "\n")
		return result
	}

	if prompt, ok := m["prompt"].(string); ok && prompt != "" {
		result.Messages = append(result.Messages, Message{Role: "user", Content: prompt})
		result.TotalText = prompt
		return result
	}

	if inputText, ok := m["inputText"].(string); ok && inputText != "" {
		result.Messages = append(result.Messages, Message{Role: "user", Content: inputText})
		result.TotalText = inputText
		return result
	}

	return result
}

// amazonQResponseFallback tolerates the field-name variance across Kiro's
// backing models: usage can arrive under "usage", "tokenUsage", or
// "usage_metadata", and individual counts under several casings.
func amazonQResponseFallback(body any) ResponseFields {
	m, _ := body.(map[string]any)
	result := defaultResponse("kiro")
	result.Model = "amazon-q"
	if m == nil {
		return result
	}

	var usage map[string]any
	for _, key := range []string{"usage", "tokenUsage", "usage_metadata"} {
		if u, ok := m[key].(map[string]any); ok {
			usage = u
			break
		}
	}

	result.InputTokens = firstIntField(usage, "inputTokens", "input_tokens", "promptTokens")
	result.OutputTokens = firstIntField(usage, "outputTokens", "output_tokens", "completionTokens")

	if model, ok := m["model"].(string); ok && model != "" {
		result.Model = model
	}
	if reason, ok := m["stopReason"].(string); ok && reason != "" {
		result.StopReason = reason
	} else if reason, ok := m["stop_reason"].(string); ok && reason != "" {
		result.StopReason = reason
	}

	return result
}

func firstIntField(m map[string]any, keys ...string) int {
	if m == nil {
		return 0
	}
	for _, k := range keys {
		if v, ok := m[k].(float64); ok {
			return int(v)
		}
	}
	return 0
}

// amazonQStreamFallback scans SSE-decoded event payloads for the same
// field-name variants as amazonQResponseFallback; if no model was ever
// found it is left as "amazon-q" (kiro's eventstream frames are not
// token-decoded at all, so this only applies to Kiro's SSE surface,
// not its binary eventstream surface).
func amazonQStreamFallback(docs []any) ResponseFields {
	result := defaultResponse("kiro")
	result.Model = "amazon-q"
	for _, doc := range docs {
		m, ok := doc.(map[string]any)
		if !ok {
			continue
		}
		fields := amazonQResponseFallback(m)
		if fields.InputTokens != 0 {
			result.InputTokens = fields.InputTokens
		}
		if fields.OutputTokens != 0 {
			result.OutputTokens = fields.OutputTokens
		}
		if fields.Model != "amazon-q" {
			result.Model = fields.Model
		}
		if fields.StopReason != "" {
			result.StopReason = fields.StopReason
		}
	}
	return result
}

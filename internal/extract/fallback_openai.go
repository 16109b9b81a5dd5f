package extract

import "strings"

// openaiRequestFallback extracts messages from an OpenAI-shaped chat
// completions request body, handling both plain-string and multi-part
// content.
func openaiRequestFallback(body any) RequestFields {
	m, _ := body.(map[string]any)
	result := RequestFields{Provider: "openai", Model: "unknown"}
	if m == nil {
		return result
	}
	if model, ok := m["model"].(string); ok {
		result.Model = model
	}

	var texts []string
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

	// Responses API carries "input" (a string or a messages-like array);
	// the legacy completions shape carries a flat "prompt" string.
	if len(result.Messages) == 0 {
		switch input := m["input"].(type) {
		case string:
			if input != "" {
				result.Messages = append(result.Messages, Message{Role: "user", Content: input})
				texts = append(texts, input)
			}
		case []any:
			for _, raw := range input {
				msg, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				role, _ := msg["role"].(string)
				if role == "" {
					role = "user"
				}
				content := extractTextFromContent(msg["content"])
				result.Messages = append(result.Messages, Message{Role: role, Content: content})
				texts = append(texts, content)
			}
		}
	}
	if len(result.Messages) == 0 {
		if prompt, ok := m["prompt"].(string); ok && prompt != "" {
			result.Messages = append(result.Messages, Message{Role: "user", Content: prompt})
			texts = append(texts, prompt)
		}
	}

	result.TotalText = strings.Join(texts, "\n")
	return result
}

// openaiResponseFallback extracts usage from a complete chat completions
// response.
func openaiResponseFallback(body any) ResponseFields {
	m, _ := body.(map[string]any)
	result := defaultResponse("openai")
	if m == nil {
		return result
	}
	usage, _ := m["usage"].(map[string]any)
	result.InputTokens = intField(usage, "prompt_tokens")
	result.OutputTokens = intField(usage, "completion_tokens")
	if model, ok := m["model"].(string); ok {
		result.Model = model
	}
	if choices, ok := m["choices"].([]any); ok && len(choices) > 0 {
		if c, ok := choices[0].(map[string]any); ok {
			if reason, ok := c["finish_reason"].(string); ok {
				result.StopReason = reason
			}
		}
	}
	return result
}

// openaiStreamFallback accumulates usage across chat-completion-chunk
// events; OpenAI reports usage (when requested via stream_options) on the
// final pre-[DONE] chunk, with model and finish_reason arriving
// incrementally across chunks.
func openaiStreamFallback(docs []any) ResponseFields {
	result := defaultResponse("openai")
	for _, doc := range docs {
		m, ok := doc.(map[string]any)
		if !ok {
			continue
		}
		if model, ok := m["model"].(string); ok && model != "" {
			result.Model = model
		}
		if usage, ok := m["usage"].(map[string]any); ok && usage != nil {
			result.InputTokens = intField(usage, "prompt_tokens")
			result.OutputTokens = intField(usage, "completion_tokens")
		}
		if choices, ok := m["choices"].([]any); ok && len(choices) > 0 {
			if c, ok := choices[0].(map[string]any); ok {
				if reason, ok := c["finish_reason"].(string); ok && reason != "" {
					result.StopReason = reason
				}
			}
		}
	}
	return result
}

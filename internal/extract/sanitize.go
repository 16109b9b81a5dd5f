package extract

// SanitizeMessages redacts message text while keeping enough structure
// for the dashboard to still render conversation shape: role survives,
// plain-string content is redacted wholesale, and multi-part content
// keeps each part's "type" discriminator with only the text replaced.
func SanitizeMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, msg := range messages {
		out[i] = Message{
			Role:    msg.Role,
			Content: sanitizeContent(msg.Content),
		}
	}
	return out
}

func sanitizeContent(content any) any {
	switch t := content.(type) {
	case string:
		if t == "" {
			return ""
		}
		return "[REDACTED]"
	case []any:
		parts := make([]any, 0, len(t))
		for _, item := range t {
			parts = append(parts, sanitizePart(item))
		}
		return parts
	case map[string]any:
		return sanitizePart(t)
	default:
		return content
	}
}

// SanitizeSystem redacts a system prompt the same way message content
// is redacted: the text goes, the structure stays.
func SanitizeSystem(system any) any {
	return sanitizeContent(system)
}

// SanitizeTools reduces tool definitions to their names; schemas and
// descriptions are free text and don't survive outside debug mode.
func SanitizeTools(tools any) any {
	arr, ok := tools.([]any)
	if !ok {
		return nil
	}
	names := make([]any, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := m["name"].(string); ok {
			names = append(names, map[string]any{"name": name})
		} else if fn, ok := m["function"].(map[string]any); ok {
			if name, ok := fn["name"].(string); ok {
				names = append(names, map[string]any{"name": name})
			}
		}
	}
	return names
}

func sanitizePart(item any) any {
	m, ok := item.(map[string]any)
	if !ok {
		return item
	}
	partType, _ := m["type"].(string)
	if _, hasText := m["text"]; hasText {
		return map[string]any{"type": partType, "text": "[REDACTED]"}
	}
	return map[string]any{"type": partType}
}

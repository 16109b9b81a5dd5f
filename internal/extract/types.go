// Package extract pulls structured fields out of intercepted LLM request
// and response bodies: model, messages, system prompt, tools, and token
// usage. It tries the provider catalog's path expressions first and falls
// back to a hand-written per-provider extractor when the catalog's result
// looks too thin (the "quality gate").
package extract

// Message is a role/content pair. Content is plain text when a
// hand-written fallback produced the message, and the body's raw content
// value (a string or a list of parts) when catalog extraction did. It is
// sanitized separately before being stored (see SanitizeMessages).
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// RequestFields is everything C3 extracts from a request body.
type RequestFields struct {
	Provider  string
	Model     string
	Messages  []Message
	System    any
	Tools     any
	Thinking  bool
	Metadata  any
	Streaming bool
	TotalText string

	// EstimatedTokens is populated by the caller via an Estimator — it
	// isn't computed by Request itself so tests can exercise extraction
	// without needing a tokenizer loaded.
	EstimatedTokens int
}

// ResponseFields is everything C4/C5 extract from a response body or
// accumulated stream.
type ResponseFields struct {
	Provider             string
	InputTokens          int
	OutputTokens         int
	CacheCreationTokens  int
	CacheReadTokens      int
	Model                string
	StopReason           string
}

func defaultResponse(provider string) ResponseFields {
	return ResponseFields{Provider: provider, Model: "unknown"}
}

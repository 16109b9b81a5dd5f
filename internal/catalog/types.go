// Package catalog loads and serves the provider descriptor catalog: which
// domains belong to which LLM provider, and the path expressions used to
// pull fields out of that provider's request/response JSON.
package catalog

// RequestConfig describes how to extract fields from a provider's request
// body.
type RequestConfig struct {
	ModelPath       string   `json:"model_path"`
	MessagesPath    string   `json:"messages_path,omitempty"`
	SystemPath      string   `json:"system_path,omitempty"`
	ToolsPath       string   `json:"tools_path,omitempty"`
	StreamParamPath string   `json:"stream_param_path,omitempty"`
	TextFields      []string `json:"text_fields,omitempty"`
}

// JSONResponseConfig describes how to extract usage fields from a
// complete, non-streaming JSON response body.
type JSONResponseConfig struct {
	InputTokensPath        string   `json:"input_tokens_path"`
	InputTokensPathAlt     []string `json:"input_tokens_path_alt,omitempty"`
	OutputTokensPath       string   `json:"output_tokens_path"`
	OutputTokensPathAlt    []string `json:"output_tokens_path_alt,omitempty"`
	CacheCreationTokensPath string  `json:"cache_creation_tokens_path,omitempty"`
	CacheReadTokensPath    string   `json:"cache_read_tokens_path,omitempty"`
	ModelPath              string   `json:"model_path,omitempty"`
	StopReasonPath         string   `json:"stop_reason_path,omitempty"`
	StopReasonPathAlt      []string `json:"stop_reason_path_alt,omitempty"`
}

// SSEResponseConfig describes how to extract usage fields from a streamed
// response. EventTypes lists the SSE "type" values that carry usage for
// this provider ("*" means all); it is not read during extraction, where
// each field's own *Event filter decides which events it is read from.
// Format selects the wire sub-format.
type SSEResponseConfig struct {
	EventTypes    []string `json:"event_types,omitempty"`
	Format        string   `json:"format,omitempty"` // "sse", "json_lines", "sse_or_json_lines", "eventstream"
	DoneMarker    string   `json:"done_marker,omitempty"`
	UseLastChunk  bool     `json:"use_last_chunk,omitempty"`

	InputTokensEvent    string   `json:"input_tokens_event,omitempty"`
	InputTokensPath     string   `json:"input_tokens_path,omitempty"`
	InputTokensPathAlt  []string `json:"input_tokens_path_alt,omitempty"`

	OutputTokensEvent   string   `json:"output_tokens_event,omitempty"`
	OutputTokensPath    string   `json:"output_tokens_path,omitempty"`
	OutputTokensPathAlt []string `json:"output_tokens_path_alt,omitempty"`

	CacheCreationTokensEvent string `json:"cache_creation_tokens_event,omitempty"`
	CacheCreationTokensPath  string `json:"cache_creation_tokens_path,omitempty"`

	CacheReadTokensEvent string `json:"cache_read_tokens_event,omitempty"`
	CacheReadTokensPath  string `json:"cache_read_tokens_path,omitempty"`

	ModelEvent string `json:"model_event,omitempty"`
	ModelPath  string `json:"model_path,omitempty"`

	StopReasonEvent string `json:"stop_reason_event,omitempty"`
	StopReasonPath  string `json:"stop_reason_path,omitempty"`
}

// ResponseConfig bundles the JSON and SSE response configs for a provider.
type ResponseConfig struct {
	JSON JSONResponseConfig `json:"json"`
	SSE  *SSEResponseConfig `json:"sse,omitempty"`
}

// Metadata holds pricing and classification tags for a provider.
type Metadata struct {
	Tags               []string `json:"tags,omitempty"`
	CostPerInputToken  float64  `json:"cost_per_input_token,omitempty"`
	CostPerOutputToken float64  `json:"cost_per_output_token,omitempty"`
}

// Provider is one entry in the catalog.
type Provider struct {
	Name                string         `json:"name"`
	Enabled             bool           `json:"enabled"`
	Domains             []string       `json:"domains"`
	APIPatterns         []string       `json:"api_patterns,omitempty"`
	CaptureFullRequest  bool           `json:"capture_full_request,omitempty"`
	CaptureFullResponse bool           `json:"capture_full_response,omitempty"`

	Request  RequestConfig  `json:"request"`
	Response ResponseConfig `json:"response"`
	Metadata Metadata       `json:"metadata,omitempty"`
}

// document is the on-disk/overlay JSON shape.
type document struct {
	Version     string              `json:"version"`
	Description string              `json:"description,omitempty"`
	CaptureMode string              `json:"capture_mode"`
	Providers   map[string]Provider `json:"providers"`
}

// Package flow correlates the request/response-headers/response
// lifecycle of one HTTP transaction into a single Event, classifying
// the client and whether the call consumed tokens, and dropping traffic
// that matched no provider or was telemetry.
package flow

import (
	"net/http"
	"time"

	"github.com/pedro9bee/tokentap/internal/catalog"
	"github.com/pedro9bee/tokentap/internal/extract"
	"github.com/pedro9bee/tokentap/internal/identity"
)

// Request carries everything known about an intercepted request at the
// point the addon's request hook fires.
type Request struct {
	ID         string
	Method     string
	Host       string
	Path       string
	Scheme     string
	Headers    http.Header
	Body       []byte
	RemoteAddr string
	ReceivedAt time.Time
}

// Response carries the complete response body and headers once the
// transaction has finished.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Event is one stored, queryable observation of an LLM API call.
type Event struct {
	ID                  string    `json:"id" bson:"_id"`
	Timestamp           time.Time `json:"timestamp" bson:"timestamp"`
	DurationMS          int64     `json:"duration_ms" bson:"duration_ms"`
	Provider            string    `json:"provider" bson:"provider"`
	Host                string    `json:"host" bson:"host"`
	Model               string    `json:"model" bson:"model"`
	Path                string    `json:"path" bson:"path"`
	UserAgent           string    `json:"user_agent" bson:"user_agent"`
	ClientType          string    `json:"client_type" bson:"client_type"`
	InputTokens         int       `json:"input_tokens" bson:"input_tokens"`
	OutputTokens        int       `json:"output_tokens" bson:"output_tokens"`
	TotalTokens         int       `json:"total_tokens" bson:"total_tokens"`
	CacheCreationTokens int       `json:"cache_creation_tokens" bson:"cache_creation_tokens"`
	CacheReadTokens     int       `json:"cache_read_tokens" bson:"cache_read_tokens"`
	EstimatedInputTokens int      `json:"estimated_input_tokens" bson:"estimated_input_tokens"`
	Messages            any       `json:"messages,omitempty" bson:"messages,omitempty"`
	System              any       `json:"system,omitempty" bson:"system,omitempty"`
	Tools               any       `json:"tools,omitempty" bson:"tools,omitempty"`
	Thinking            bool      `json:"thinking,omitempty" bson:"thinking,omitempty"`
	RequestMetadata     any       `json:"request_metadata,omitempty" bson:"request_metadata,omitempty"`
	ResponseStatus      int       `json:"response_status" bson:"response_status"`
	ResponseStopReason  string    `json:"response_stop_reason,omitempty" bson:"response_stop_reason,omitempty"`
	Streaming           bool      `json:"streaming" bson:"streaming"`
	Truncated           bool      `json:"truncated,omitempty" bson:"truncated,omitempty"`
	Program             string    `json:"program,omitempty" bson:"program,omitempty"`
	Project             string    `json:"project,omitempty" bson:"project,omitempty"`
	SessionID           string    `json:"session_id,omitempty" bson:"session_id,omitempty"`
	CustomContext       any       `json:"custom_context,omitempty" bson:"custom_context,omitempty"`
	ProviderTags        []string  `json:"provider_tags,omitempty" bson:"provider_tags,omitempty"`
	EstimatedCost       float64   `json:"estimated_cost" bson:"estimated_cost"`
	CaptureMode         string    `json:"capture_mode" bson:"capture_mode"`
	Device              identity.Device `json:"device" bson:"device"`
	DeviceID            string    `json:"device_id" bson:"device_id"`
	IsTokenConsuming    bool      `json:"is_token_consuming" bson:"is_token_consuming"`
	HasBudgetTokens     bool      `json:"has_budget_tokens,omitempty" bson:"has_budget_tokens,omitempty"`
	RawRequest          any       `json:"raw_request,omitempty" bson:"raw_request,omitempty"`
	RawResponse         any       `json:"raw_response,omitempty" bson:"raw_response,omitempty"`
}

// ContextMetadata is what was derivable from X-Tokentap-* headers.
type ContextMetadata struct {
	Program string
	Project string
	Session string
	Custom  map[string]any
}

// state is the in-flight bookkeeping for one transaction, live between
// OnRequest and OnResponse.
type state struct {
	id          string
	startTime   time.Time
	headersTime time.Time
	request     Request
	providerCfg catalog.Provider
	providerOK  bool
	device      identity.Device
	context     ContextMetadata
	clientType  string

	streaming    bool
	streamFormat string
	chunks       []byte
	truncated    bool

	requestFields extract.RequestFields
}

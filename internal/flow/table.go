package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/pedro9bee/tokentap/internal/catalog"
	"github.com/pedro9bee/tokentap/internal/extract"
	"github.com/pedro9bee/tokentap/internal/identity"
	"github.com/pedro9bee/tokentap/internal/metrics"
	"github.com/pedro9bee/tokentap/internal/streamdecode"
)

const (
	maxChunkBytes = 4 * 1024 * 1024
	idleTimeout   = 5 * time.Minute
	sweepInterval = 30 * time.Second
)

// Table correlates request/response-headers/response hook calls keyed
// by flow ID, and evicts transactions that never complete.
type Table struct {
	catalog   *catalog.Catalog
	estimator *extract.Estimator

	mu    sync.Mutex
	flows map[string]*state

	dropped   atomic.Int64
	truncated atomic.Int64
	stored    atomic.Int64
	debug     atomic.Bool

	stopSweep chan struct{}
}

// SetDebug toggles whether completed events carry raw request/response
// payloads (gated per-provider by capture_full_request/response) and
// unsanitized message content. Safe to call concurrently; takes effect
// on the next flow to complete.
func (t *Table) SetDebug(enabled bool) {
	t.debug.Store(enabled)
}

// NewTable builds a flow table backed by cat for provider lookups and
// estimator for local token estimation.
func NewTable(cat *catalog.Catalog, estimator *extract.Estimator) *Table {
	t := &Table{
		catalog:   cat,
		estimator: estimator,
		flows:     make(map[string]*state),
		stopSweep: make(chan struct{}),
	}
	go t.sweepLoop()
	return t
}

// Close stops the background eviction sweep.
func (t *Table) Close() {
	close(t.stopSweep)
}

func (t *Table) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.sweep()
		case <-t.stopSweep:
			return
		}
	}
}

func (t *Table) sweep() {
	cutoff := time.Now().Add(-idleTimeout)
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, st := range t.flows {
		if st.startTime.Before(cutoff) {
			delete(t.flows, id)
			t.dropped.Inc()
			metrics.FlowTableDropped.Inc()
		}
	}
}

// OnRequest records the start of a transaction and resolves its
// provider, device, and context metadata.
func (t *Table) OnRequest(ctx context.Context, req Request) error {
	host := req.Host
	provider, ok := t.catalog.ByDomain(host)

	device := resolveDevice(req)
	meta := extractContextMetadata(req.Headers, provider.Name, host)

	clientType := identity.DetectClientType(req.Headers.Get("User-Agent"), provider.Name, host)

	st := &state{
		id:          req.ID,
		startTime:   req.ReceivedAt,
		request:     req,
		providerCfg: provider,
		providerOK:  ok,
		device:      device,
		context:     meta,
		clientType:  clientType,
	}

	if len(req.Body) > 0 {
		var body any
		if err := json.Unmarshal(req.Body, &body); err == nil {
			st.requestFields = extract.Request(provider, body)
			if t.estimator != nil {
				st.requestFields = t.estimator.EstimateRequestTokens(st.requestFields)
			}
		}
	}

	t.mu.Lock()
	t.flows[req.ID] = st
	t.mu.Unlock()

	return nil
}

// OnResponseHeaders records whether the response is streaming and in
// which wire format, based on content-type and the request's own
// "stream" parameter.
func (t *Table) OnResponseHeaders(ctx context.Context, flowID string, headers http.Header) error {
	t.mu.Lock()
	st, ok := t.flows[flowID]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("flow %s: no matching request", flowID)
	}

	st.headersTime = time.Now()
	contentType := headers.Get("Content-Type")

	switch {
	case streamdecode.IsEventStreamContentType(contentType):
		st.streaming = true
		st.streamFormat = streamdecode.FormatEventStream
	case strings.Contains(contentType, "text/event-stream"):
		st.streaming = true
		st.streamFormat = resolveSSEFormat(st.providerCfg)
	case st.requestFields.Streaming:
		st.streaming = true
		st.streamFormat = resolveSSEFormat(st.providerCfg)
	case strings.Contains(st.request.Path, "streamGenerateContent"):
		// Gemini streams a chunked JSON array without an event-stream
		// content-type or a stream request parameter; the path is the
		// only reliable signal.
		st.streaming = true
		st.streamFormat = resolveSSEFormat(st.providerCfg)
	}

	return nil
}

func resolveSSEFormat(p catalog.Provider) string {
	if p.Response.SSE != nil && p.Response.SSE.Format != "" {
		return p.Response.SSE.Format
	}
	return streamdecode.FormatSSE
}

// AppendChunk feeds one streamed chunk into the flow's buffer, capping
// total retained bytes and flagging truncation once the cap is hit.
func (t *Table) AppendChunk(flowID string, chunk []byte) {
	t.mu.Lock()
	st, ok := t.flows[flowID]
	t.mu.Unlock()
	if !ok {
		return
	}
	if len(st.chunks) >= maxChunkBytes {
		if !st.truncated {
			st.truncated = true
			t.truncated.Inc()
			metrics.FlowTableTruncated.Inc()
		}
		return
	}
	remaining := maxChunkBytes - len(st.chunks)
	if len(chunk) > remaining {
		chunk = chunk[:remaining]
		st.truncated = true
		t.truncated.Inc()
		metrics.FlowTableTruncated.Inc()
	}
	st.chunks = append(st.chunks, chunk...)
}

// OnResponse finalizes a transaction into an Event, or nil if the flow
// should never be stored at all (no provider matched, or the request was
// telemetry). Traffic that matched a provider but wasn't itself
// token-consuming (e.g. a models-list call) still produces an event —
// IsTokenConsuming on that event is simply false.
func (t *Table) OnResponse(ctx context.Context, flowID string, resp Response) (*Event, error) {
	t.mu.Lock()
	st, ok := t.flows[flowID]
	delete(t.flows, flowID)
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("flow %s: no matching request", flowID)
	}

	if !st.providerOK {
		t.dropped.Inc()
		metrics.FlowTableDropped.Inc()
		return nil, nil
	}

	if isTelemetryRequest(st.request, resp) {
		t.dropped.Inc()
		metrics.FlowTableDropped.Inc()
		return nil, nil
	}

	responseFields := t.extractResponse(st, resp)
	if (responseFields.Model == "" || responseFields.Model == "unknown") && st.requestFields.Model != "" {
		responseFields.Model = st.requestFields.Model
	}
	tokenConsuming := isTokenConsuming(st.requestFields, st.providerCfg.Name)

	duration := time.Since(st.startTime)

	event := &Event{
		ID:                   flowID,
		Timestamp:            st.startTime,
		DurationMS:           duration.Milliseconds(),
		Provider:             st.providerCfg.Name,
		Host:                 st.request.Host,
		Model:                responseFields.Model,
		Path:                 st.request.Path,
		UserAgent:            st.request.Headers.Get("User-Agent"),
		ClientType:           st.clientType,
		InputTokens:          responseFields.InputTokens,
		OutputTokens:         responseFields.OutputTokens,
		TotalTokens:          responseFields.InputTokens + responseFields.OutputTokens,
		CacheCreationTokens:  responseFields.CacheCreationTokens,
		CacheReadTokens:      responseFields.CacheReadTokens,
		EstimatedInputTokens: st.requestFields.EstimatedTokens,
		ResponseStatus:       resp.StatusCode,
		ResponseStopReason:   responseFields.StopReason,
		Streaming:            st.streaming,
		Truncated:            st.truncated,
		Program:              st.context.Program,
		Project:              st.context.Project,
		SessionID:            st.context.Session,
		CustomContext:        st.context.Custom,
		ProviderTags:         st.providerCfg.Metadata.Tags,
		EstimatedCost:        estimateCost(st.providerCfg, responseFields),
		CaptureMode:          captureMode(t.catalog.CaptureMode()),
		Device:               st.device,
		DeviceID:             st.device.ID,
		IsTokenConsuming:     tokenConsuming,
		HasBudgetTokens:      hasBudgetTokens(st.requestFields),
	}

	debug := t.debug.Load()
	// Client-supplied request metadata can carry user identifiers, so it
	// is only retained alongside the other raw payloads in debug mode.
	if debug {
		event.RequestMetadata = st.requestFields.Metadata
	}
	if st.requestFields.Messages != nil {
		if debug {
			event.Messages = st.requestFields.Messages
		} else {
			event.Messages = extract.SanitizeMessages(st.requestFields.Messages)
		}
	}
	if st.requestFields.System != nil {
		if debug {
			event.System = st.requestFields.System
		} else {
			event.System = extract.SanitizeSystem(st.requestFields.System)
		}
	}
	if st.requestFields.Tools != nil {
		if debug {
			event.Tools = st.requestFields.Tools
		} else {
			event.Tools = extract.SanitizeTools(st.requestFields.Tools)
		}
	}
	event.Thinking = st.requestFields.Thinking

	if debug {
		if st.providerCfg.CaptureFullRequest {
			event.RawRequest = decodeRaw(st.request.Body)
		}
		if st.providerCfg.CaptureFullResponse {
			if st.streaming {
				event.RawResponse = string(st.chunks)
			} else {
				event.RawResponse = decodeRaw(resp.Body)
			}
		}
	}

	t.stored.Inc()
	return event, nil
}

// decodeRaw parses raw bytes as JSON for storage; bytes that aren't valid
// JSON (e.g. a truncated stream chunk) are kept as their raw string form
// rather than dropped.
func decodeRaw(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}

func (t *Table) extractResponse(st *state, resp Response) extract.ResponseFields {
	if !st.streaming {
		var body any
		if err := json.Unmarshal(resp.Body, &body); err == nil {
			return extract.Response(st.providerCfg, body)
		}
		return extract.ResponseFields{Model: "unknown"}
	}

	if st.streamFormat == streamdecode.FormatEventStream {
		return extract.ResponseFields{Model: st.providerCfg.Name}
	}

	decoded := streamdecode.Decode(st.streamFormat, st.providerCfg.Response.SSE, st.chunks)
	return extract.StreamResponse(st.providerCfg, decoded.Docs, decoded.RawText)
}

// captureMode reports the catalog's configured capture mode verbatim —
// "known_only" or "capture_all" — regardless of whether this particular
// flow matched a known provider.
func captureMode(mode catalog.CaptureMode) string {
	return string(mode)
}

func hasBudgetTokens(fields extract.RequestFields) bool {
	return fields.Thinking
}

func estimateCost(p catalog.Provider, fields extract.ResponseFields) float64 {
	return float64(fields.InputTokens)*p.Metadata.CostPerInputToken +
		float64(fields.OutputTokens)*p.Metadata.CostPerOutputToken
}

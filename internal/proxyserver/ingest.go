package proxyserver

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/pedro9bee/tokentap/internal/flow"
	"github.com/pedro9bee/tokentap/internal/metrics"
	"github.com/pedro9bee/tokentap/internal/store"
)

// Ingestor is the glue a MITM addon adapter or the built-in direct-mode
// proxy calls into: it drives the flow table and persists whatever
// comes out the other end.
type Ingestor struct {
	table *flow.Table
	store *store.Store
}

// NewIngestor wires a flow table to an event store.
func NewIngestor(table *flow.Table, st *store.Store) *Ingestor {
	return &Ingestor{table: table, store: st}
}

// HandleRequest should be called as soon as request headers and body are
// available.
func (in *Ingestor) HandleRequest(ctx context.Context, req flow.Request) error {
	if err := in.table.OnRequest(ctx, req); err != nil {
		return fmt.Errorf("ingest: on request: %w", err)
	}
	return nil
}

// HandleResponseHeaders should be called once response headers arrive,
// before the body is read, so streaming can be detected up front.
func (in *Ingestor) HandleResponseHeaders(ctx context.Context, flowID string, headers http.Header) error {
	if err := in.table.OnResponseHeaders(ctx, flowID, headers); err != nil {
		return fmt.Errorf("ingest: on response headers: %w", err)
	}
	return nil
}

// AppendChunk feeds one slice of a streaming response body into the flow
// table's buffer.
func (in *Ingestor) AppendChunk(flowID string, chunk []byte) {
	in.table.AppendChunk(flowID, chunk)
}

// HandleResponse should be called once the response body is fully read
// (or, for streaming bodies, once it is fully drained). It extracts
// token usage, persists the resulting event, and refreshes the device
// record. A dropped transaction (no provider matched, or telemetry) is
// not an error; it simply produces no stored event. An unknown flow id
// is returned as an error.
func (in *Ingestor) HandleResponse(ctx context.Context, flowID string, resp flow.Response) error {
	event, err := in.table.OnResponse(ctx, flowID, resp)
	if err != nil {
		return fmt.Errorf("ingest: on response: %w", err)
	}
	if event == nil {
		metrics.FlowsObserved.WithLabelValues("unknown", "dropped").Inc()
		return nil
	}

	if err := in.store.InsertEvent(ctx, event); err != nil {
		return fmt.Errorf("ingest: storing event: %w", err)
	}
	metrics.FlowsObserved.WithLabelValues(event.Provider, "stored").Inc()
	metrics.EventsStored.WithLabelValues(event.Provider, event.Model).Inc()
	metrics.ObserveTokens(event.Provider, event.InputTokens, event.OutputTokens, event.CacheCreationTokens, event.CacheReadTokens)

	if event.DeviceID != "" {
		if err := in.store.UpsertDevice(ctx, event.Device, event.ClientType, event.Timestamp); err != nil {
			log.Printf("tokentap: upserting device %s: %v", event.DeviceID, err)
		}
	}
	return nil
}

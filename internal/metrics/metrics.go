// Package metrics exposes the Prometheus counters and histograms the
// proxy server publishes on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FlowsObserved counts every completed transaction the flow table
	// processed, whether stored or dropped.
	FlowsObserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokentap_flows_observed_total",
		Help: "Number of request/response transactions observed.",
	}, []string{"provider", "outcome"})

	// EventsStored counts events that were persisted.
	EventsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokentap_events_stored_total",
		Help: "Number of events persisted to the store.",
	}, []string{"provider", "model"})

	// TokensObserved accumulates token usage by kind.
	TokensObserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokentap_tokens_total",
		Help: "Tokens observed, by provider and kind (input/output/cache_creation/cache_read).",
	}, []string{"provider", "kind"})

	// StoreLatency times store operations.
	StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tokentap_store_operation_duration_seconds",
		Help:    "Duration of store operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// FlowTableDropped counts flows evicted by the idle sweep or
	// dropped because no provider matched or the request was telemetry.
	FlowTableDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokentap_flows_dropped_total",
		Help: "Number of flows dropped without producing an event.",
	})

	// FlowTableTruncated counts streamed responses whose chunk buffer
	// hit the cap before the stream ended.
	FlowTableTruncated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tokentap_flows_truncated_total",
		Help: "Number of streamed flows truncated at the chunk buffer cap.",
	})
)

// ObserveTokens records one event's token counts.
func ObserveTokens(provider string, input, output, cacheCreation, cacheRead int) {
	TokensObserved.WithLabelValues(provider, "input").Add(float64(input))
	TokensObserved.WithLabelValues(provider, "output").Add(float64(output))
	TokensObserved.WithLabelValues(provider, "cache_creation").Add(float64(cacheCreation))
	TokensObserved.WithLabelValues(provider, "cache_read").Add(float64(cacheRead))
}

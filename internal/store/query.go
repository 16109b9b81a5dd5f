package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/pedro9bee/tokentap/internal/flow"
)

// Filters narrows which events a query operates over. Zero-valued
// fields are omitted from the built query.
type Filters struct {
	Provider         string
	Model            string
	DeviceID         string
	Program          string
	Project          string
	CaptureMode      string
	IsTokenConsuming *bool
	DateFrom         time.Time
	DateTo           time.Time
}

func (f Filters) buildQuery() bson.M {
	q := bson.M{}
	if f.Provider != "" {
		q["provider"] = f.Provider
	}
	if f.Model != "" {
		q["model"] = f.Model
	}
	if f.DeviceID != "" {
		q["device_id"] = f.DeviceID
	}
	if f.Program != "" {
		q["program"] = f.Program
	}
	if f.Project != "" {
		q["project"] = f.Project
	}
	if f.CaptureMode != "" {
		q["capture_mode"] = f.CaptureMode
	}
	if f.IsTokenConsuming != nil {
		q["is_token_consuming"] = *f.IsTokenConsuming
	}
	if !f.DateFrom.IsZero() || !f.DateTo.IsZero() {
		ts := bson.M{}
		if !f.DateFrom.IsZero() {
			ts["$gte"] = f.DateFrom
		}
		if !f.DateTo.IsZero() {
			ts["$lte"] = f.DateTo
		}
		q["timestamp"] = ts
	}
	return q
}

// QueryEvents returns a page of events matching filters, newest first,
// plus the total matching count (ignoring skip/limit).
func (s *Store) QueryEvents(ctx context.Context, filters Filters, skip, limit int64) ([]flow.Event, int64, error) {
	defer observeLatency("query_events")()
	query := filters.buildQuery()

	total, err := s.events.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := s.events.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("querying events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []flow.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, 0, fmt.Errorf("decoding events: %w", err)
	}
	return events, total, nil
}

// DeleteAllEvents removes every stored event (admin-gated operation).
func (s *Store) DeleteAllEvents(ctx context.Context) (int64, error) {
	result, err := s.events.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("deleting events: %w", err)
	}
	return result.DeletedCount, nil
}

// UsageSummary is the top-level aggregate the dashboard's summary card
// shows.
type UsageSummary struct {
	TotalEvents        int64   `json:"total_events" bson:"total_events"`
	TotalInputTokens   int64   `json:"total_input_tokens" bson:"total_input_tokens"`
	TotalOutputTokens  int64   `json:"total_output_tokens" bson:"total_output_tokens"`
	TotalCacheCreation int64   `json:"total_cache_creation_tokens" bson:"total_cache_creation_tokens"`
	TotalCacheRead     int64   `json:"total_cache_read_tokens" bson:"total_cache_read_tokens"`
	TotalEstimatedCost float64 `json:"total_estimated_cost" bson:"total_estimated_cost"`
}

// ModelUsage is one row of the by-model breakdown.
type ModelUsage struct {
	Model         string  `json:"model" bson:"_id"`
	EventCount    int64   `json:"event_count" bson:"event_count"`
	InputTokens   int64   `json:"input_tokens" bson:"input_tokens"`
	OutputTokens  int64   `json:"output_tokens" bson:"output_tokens"`
	EstimatedCost float64 `json:"estimated_cost" bson:"estimated_cost"`
}

// GroupUsage is one row of a by-program/by-project/by-device breakdown,
// keyed by whichever field the grouping pipeline grouped on.
type GroupUsage struct {
	Key          string `json:"key" bson:"_id"`
	EventCount   int64  `json:"event_count" bson:"event_count"`
	InputTokens  int64  `json:"input_tokens" bson:"input_tokens"`
	OutputTokens int64  `json:"output_tokens" bson:"output_tokens"`
}

// TimeBucketUsage is one row of the usage-over-time breakdown.
type TimeBucketUsage struct {
	Bucket       time.Time `json:"bucket" bson:"_id"`
	EventCount   int64     `json:"event_count" bson:"event_count"`
	InputTokens  int64     `json:"input_tokens" bson:"input_tokens"`
	OutputTokens int64     `json:"output_tokens" bson:"output_tokens"`
}

func usageGroupStage() bson.M {
	return bson.M{
		"event_count":   bson.M{"$sum": 1},
		"input_tokens":  bson.M{"$sum": "$input_tokens"},
		"output_tokens": bson.M{"$sum": "$output_tokens"},
	}
}

// AggregateUsage computes the overall summary for filters.
func (s *Store) AggregateUsage(ctx context.Context, filters Filters) (UsageSummary, error) {
	defer observeLatency("aggregate_usage")()
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filters.buildQuery()}},
		{{Key: "$group", Value: bson.M{
			"_id":                         nil,
			"total_events":                bson.M{"$sum": 1},
			"total_input_tokens":          bson.M{"$sum": "$input_tokens"},
			"total_output_tokens":         bson.M{"$sum": "$output_tokens"},
			"total_cache_creation_tokens": bson.M{"$sum": "$cache_creation_tokens"},
			"total_cache_read_tokens":     bson.M{"$sum": "$cache_read_tokens"},
			"total_estimated_cost":        bson.M{"$sum": "$estimated_cost"},
		}}},
	}
	cursor, err := s.events.Aggregate(ctx, pipeline)
	if err != nil {
		return UsageSummary{}, fmt.Errorf("aggregating usage: %w", err)
	}
	defer cursor.Close(ctx)

	var results []UsageSummary
	if err := cursor.All(ctx, &results); err != nil {
		return UsageSummary{}, fmt.Errorf("decoding usage summary: %w", err)
	}
	if len(results) == 0 {
		return UsageSummary{}, nil
	}
	return results[0], nil
}

// UsageByModel groups matching events by model.
func (s *Store) UsageByModel(ctx context.Context, filters Filters) ([]ModelUsage, error) {
	group := usageGroupStage()
	group["_id"] = "$model"
	group["estimated_cost"] = bson.M{"$sum": "$estimated_cost"}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filters.buildQuery()}},
		{{Key: "$group", Value: group}},
		{{Key: "$sort", Value: bson.M{"input_tokens": -1}}},
	}
	return runGroupPipeline[ModelUsage](ctx, s, pipeline, "by-model usage")
}

// UsageByProgram groups matching events by program.
func (s *Store) UsageByProgram(ctx context.Context, filters Filters) ([]GroupUsage, error) {
	group := usageGroupStage()
	group["_id"] = "$program"

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filters.buildQuery()}},
		{{Key: "$group", Value: group}},
		{{Key: "$sort", Value: bson.M{"input_tokens": -1}}},
	}
	return runGroupPipeline[GroupUsage](ctx, s, pipeline, "by-program usage")
}

// UsageByProject groups matching events by project.
func (s *Store) UsageByProject(ctx context.Context, filters Filters) ([]GroupUsage, error) {
	group := usageGroupStage()
	group["_id"] = "$project"

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filters.buildQuery()}},
		{{Key: "$group", Value: group}},
		{{Key: "$sort", Value: bson.M{"input_tokens": -1}}},
	}
	return runGroupPipeline[GroupUsage](ctx, s, pipeline, "by-project usage")
}

// UsageByDevice groups matching events by device_id. If the caller left
// IsTokenConsuming unset, it defaults to true — device summaries are
// meant to reflect real inference traffic, not telemetry noise that
// happened to carry a device id.
func (s *Store) UsageByDevice(ctx context.Context, filters Filters) ([]GroupUsage, error) {
	if filters.IsTokenConsuming == nil {
		consuming := true
		filters.IsTokenConsuming = &consuming
	}

	group := usageGroupStage()
	group["_id"] = "$device_id"

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filters.buildQuery()}},
		{{Key: "$group", Value: group}},
		{{Key: "$sort", Value: bson.M{"input_tokens": -1}}},
	}
	return runGroupPipeline[GroupUsage](ctx, s, pipeline, "by-device usage")
}

// UsageOverTime buckets matching events by granularity ("hour", "day",
// or "week") using $dateTrunc.
func (s *Store) UsageOverTime(ctx context.Context, filters Filters, granularity string) ([]TimeBucketUsage, error) {
	unit := granularity
	switch unit {
	case "hour", "day", "week":
	default:
		unit = "day"
	}

	group := usageGroupStage()
	group["_id"] = bson.M{"$dateTrunc": bson.M{"date": "$timestamp", "unit": unit}}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filters.buildQuery()}},
		{{Key: "$group", Value: group}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	return runGroupPipeline[TimeBucketUsage](ctx, s, pipeline, "usage over time")
}

func runGroupPipeline[T any](ctx context.Context, s *Store, pipeline mongo.Pipeline, what string) ([]T, error) {
	defer observeLatency(what)()
	cursor, err := s.events.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregating %s: %w", what, err)
	}
	defer cursor.Close(ctx)

	var results []T
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", what, err)
	}
	return results, nil
}

// Package store persists captured events to MongoDB and serves the
// filtered, paginated, and aggregated queries the dashboard needs.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/pedro9bee/tokentap/internal/flow"
	"github.com/pedro9bee/tokentap/internal/metrics"
)

// Store wraps the events and devices collections.
type Store struct {
	client  *mongo.Client
	events  *mongo.Collection
	devices *mongo.Collection
}

// Connect dials uri and returns a Store bound to dbName's "events" and
// "devices" collections.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}
	db := client.Database(dbName)
	return &Store{
		client:  client,
		events:  db.Collection("events"),
		devices: db.Collection("devices"),
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates every index the query surface relies on. Safe
// to call on every startup — existing indexes with matching keys are a
// no-op.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "model", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "device_id", Value: 1}}},
		{Keys: bson.D{{Key: "device_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "device.id", Value: 1}}},
		{Keys: bson.D{{Key: "program", Value: 1}}},
		{Keys: bson.D{{Key: "program", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "project", Value: 1}}},
		{Keys: bson.D{{Key: "project", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "is_token_consuming", Value: 1}}},
		{Keys: bson.D{{Key: "is_token_consuming", Value: 1}, {Key: "timestamp", Value: -1}}},
	}
	_, err := s.events.Indexes().CreateMany(ctx, models)
	if err != nil {
		return fmt.Errorf("ensuring event indexes: %w", err)
	}
	_, err = s.devices.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "last_seen", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("ensuring device indexes: %w", err)
	}
	return nil
}

// InsertEvent stores one captured event.
func (s *Store) InsertEvent(ctx context.Context, event *flow.Event) error {
	defer observeLatency("insert_event")()
	_, err := s.events.InsertOne(ctx, event)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// GetEvent fetches a single event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (*flow.Event, error) {
	defer observeLatency("get_event")()
	var event flow.Event
	err := s.events.FindOne(ctx, bson.M{"_id": id}).Decode(&event)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching event %s: %w", id, err)
	}
	return &event, nil
}

// observeLatency starts a timer for a store operation; call the
// returned func when the operation completes to record it against
// metrics.StoreLatency.
func observeLatency(operation string) func() {
	start := time.Now()
	return func() {
		metrics.StoreLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// HealthCheck pings the underlying client.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

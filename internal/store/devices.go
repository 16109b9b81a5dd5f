package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/pedro9bee/tokentap/internal/identity"
)

// DeviceRecord is a persisted, user-nameable device, keyed by the
// fingerprint or session id identity.Resolve produced.
type DeviceRecord struct {
	ID         string    `json:"id" bson:"_id"`
	Name       string    `json:"name,omitempty" bson:"name,omitempty"`
	OSFamily   string    `json:"os_family,omitempty" bson:"os_family,omitempty"`
	OSVersion  string    `json:"os_version,omitempty" bson:"os_version,omitempty"`
	Browser    string    `json:"browser,omitempty" bson:"browser,omitempty"`
	IsMobile   bool      `json:"is_mobile,omitempty" bson:"is_mobile,omitempty"`
	IsBot      bool      `json:"is_bot,omitempty" bson:"is_bot,omitempty"`
	ClientType string    `json:"client_type,omitempty" bson:"client_type,omitempty"`
	FirstSeen  time.Time `json:"first_seen" bson:"first_seen"`
	LastSeen   time.Time `json:"last_seen" bson:"last_seen"`
}

// UpsertDevice records or refreshes sightings of device, keeping the
// original FirstSeen and any user-assigned Name.
func (s *Store) UpsertDevice(ctx context.Context, device identity.Device, clientType string, seenAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"os_family":   device.OSFamily,
			"os_version":  device.OSVersion,
			"browser":     device.Browser,
			"is_mobile":   device.IsMobile,
			"is_bot":      device.IsBot,
			"client_type": clientType,
			"last_seen":   seenAt,
		},
		"$setOnInsert": bson.M{
			"_id":        device.ID,
			"first_seen": seenAt,
		},
	}
	_, err := s.devices.UpdateOne(ctx, bson.M{"_id": device.ID}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting device %s: %w", device.ID, err)
	}
	return nil
}

// RenameDevice sets a user-supplied display name on a device.
func (s *Store) RenameDevice(ctx context.Context, deviceID, name string) error {
	_, err := s.devices.UpdateOne(ctx, bson.M{"_id": deviceID}, bson.M{"$set": bson.M{"name": name}})
	if err != nil {
		return fmt.Errorf("renaming device %s: %w", deviceID, err)
	}
	return nil
}

// DeleteDevice removes the device record; historical events referencing
// the device_id are left untouched.
func (s *Store) DeleteDevice(ctx context.Context, deviceID string) error {
	_, err := s.devices.DeleteOne(ctx, bson.M{"_id": deviceID})
	if err != nil {
		return fmt.Errorf("deleting device %s: %w", deviceID, err)
	}
	return nil
}

// ListDevices returns every known device, most recently seen first.
func (s *Store) ListDevices(ctx context.Context) ([]DeviceRecord, error) {
	cursor, err := s.devices.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "last_seen", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer cursor.Close(ctx)

	var devices []DeviceRecord
	if err := cursor.All(ctx, &devices); err != nil {
		return nil, fmt.Errorf("decoding devices: %w", err)
	}
	return devices, nil
}

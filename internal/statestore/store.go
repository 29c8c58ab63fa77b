// Package statestore persists the published field set for each device
// so a restarted daemon can seed its counters instead of starting from
// zero. Backends cover retained MQTT topics, a JSON file per device,
// and a Postgres table; all of them are soft dependencies - a failed
// load just means an empty baseline.
package statestore

import "context"

// Store persists published snapshot fields keyed by device.
type Store interface {
	// Load returns the last published fields for the device, or
	// (nil, nil) when the store holds nothing for it.
	Load(ctx context.Context, deviceID string) (map[string]string, error)

	// Publish stores the full field set for the device, replacing any
	// previous values.
	Publish(ctx context.Context, deviceID string, fields map[string]string) error

	// Close releases the backend.
	Close() error
}

package statestore

import (
	"context"
	"sync"
)

// FakeStore is an in-memory Store for tests.
type FakeStore struct {
	mu     sync.Mutex
	fields map[string]map[string]string

	// Publishes counts Publish attempts, including failed ones
	Publishes int

	// PublishError, if set, will be returned by Publish
	PublishError error

	// LoadError, if set, will be returned by Load
	LoadError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{fields: make(map[string]map[string]string)}
}

// Seed pre-loads fields for a device, as if a previous run had
// published them.
func (f *FakeStore) Seed(deviceID string, fields map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields[deviceID] = copyFields(fields)
}

// Load returns the seeded or published fields for the device.
func (f *FakeStore) Load(ctx context.Context, deviceID string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoadError != nil {
		return nil, f.LoadError
	}
	stored, ok := f.fields[deviceID]
	if !ok {
		return nil, nil
	}
	return copyFields(stored), nil
}

// Publish stores the fields for the device.
func (f *FakeStore) Publish(ctx context.Context, deviceID string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Publishes++
	if f.PublishError != nil {
		return f.PublishError
	}
	f.fields[deviceID] = copyFields(fields)
	return nil
}

// Fields returns a copy of the last published fields for the device.
func (f *FakeStore) Fields(deviceID string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyFields(f.fields[deviceID])
}

// Close marks the store as closed.
func (f *FakeStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

func copyFields(fields map[string]string) map[string]string {
	if fields == nil {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

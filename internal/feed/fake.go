package feed

import (
	"time"

	"github.com/sweeney/ontime-tracker/internal/ontime"
)

// FakeSource is a test double that delivers hand-fed events.
type FakeSource struct {
	events chan Event

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeSource creates a FakeSource buffering up to size events.
func NewFakeSource(size int) *FakeSource {
	return &FakeSource{events: make(chan Event, size)}
}

// Emit queues one event.
func (f *FakeSource) Emit(state ontime.State, at time.Time) {
	f.events <- Event{State: state, At: at}
}

// Events returns the event stream.
func (f *FakeSource) Events() <-chan Event {
	return f.events
}

// Close marks the source closed and closes the stream.
func (f *FakeSource) Close() error {
	if !f.Closed {
		f.Closed = true
		close(f.events)
	}
	return nil
}

// Package feed turns external device signals into a stream of ON/OFF
// transition events. Sources wrap a concrete transport (GPIO polling,
// MQTT state topics, Kafka records) behind a common interface so the
// accounting engine never touches hardware or brokers directly.
package feed

import (
	"strings"
	"time"

	"github.com/sweeney/ontime-tracker/internal/ontime"
)

// Event is a single observed state for a device. Sources report the
// device's current state as their first event after start so a tracker
// that missed a transition while down converges on its own.
type Event struct {
	State ontime.State
	At    time.Time
}

// Source delivers state events for one device. The channel is closed
// when the source stops delivering, either after Close or on an
// unrecoverable transport failure.
type Source interface {
	Events() <-chan Event

	// Close stops the source and releases its transport.
	Close() error
}

// MapState maps a raw state payload onto ON/OFF. The comparison with
// the device's configured ON value is case-insensitive; any other
// payload counts as OFF.
func MapState(raw, onState string) ontime.State {
	if strings.EqualFold(strings.TrimSpace(raw), onState) {
		return ontime.StateOn
	}
	return ontime.StateOff
}

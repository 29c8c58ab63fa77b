package feed

import (
	"time"

	"github.com/sweeney/ontime-tracker/internal/ontime"
)

// Detector debounces raw line samples into stable ON/OFF transitions.
// A level has to hold for the debounce duration before it is reported,
// which filters relay chatter and noise on optocoupler inputs.
type Detector struct {
	debounce     time.Duration
	stable       ontime.State
	pending      ontime.State
	pendingSince time.Time
	baselined    bool
}

// NewDetector creates a detector with the given debounce duration.
func NewDetector(debounce time.Duration) *Detector {
	return &Detector{debounce: debounce}
}

// Process takes a raw sample and returns an event when the sample
// settles a change: the first stable level after startup, or a
// debounced transition. Returns nil otherwise.
func (d *Detector) Process(on bool, now time.Time) *Event {
	state := boolToState(on)

	// First establish a baseline so a mid-bounce startup level is
	// never reported.
	if !d.baselined {
		if d.pending == "" {
			// Start observing
			d.pending = state
			d.pendingSince = now
			return nil
		}

		if d.pending != state {
			// Level changed during baseline, restart
			d.pending = state
			d.pendingSince = now
			return nil
		}

		// Check if debounce period has passed
		if now.Sub(d.pendingSince) >= d.debounce {
			d.stable = state
			d.baselined = true
			d.pending = ""
			return &Event{State: d.stable, At: now}
		}
		return nil
	}

	// Already baselined - detect transitions
	if state == d.stable {
		// No change from stable state, clear any pending
		d.pending = ""
		return nil
	}

	// State differs from stable
	if d.pending != state {
		// New pending state
		d.pending = state
		d.pendingSince = now
		return nil
	}

	// Same pending state, check debounce
	if now.Sub(d.pendingSince) >= d.debounce {
		d.stable = state
		d.pending = ""
		return &Event{State: d.stable, At: now}
	}

	return nil
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns the current stable state.
func (d *Detector) CurrentState() ontime.State {
	return d.stable
}

func boolToState(b bool) ontime.State {
	if b {
		return ontime.StateOn
	}
	return ontime.StateOff
}

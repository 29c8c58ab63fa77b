// Package ontime contains pure time-accounting logic for tracked devices:
// the interval history, the rolling-window sums, today/yesterday tracking
// with midnight rollover, and restart baseline handling.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package ontime

import "time"

// State represents the logical state of a tracked device.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// RefreshInterval is the cadence at which engines recompute and publish.
const RefreshInterval = 15 * time.Second

// WindowSpec describes one rolling window ending at "now".
type WindowSpec struct {
	Key      string // field name in the published snapshot
	Label    string
	Duration time.Duration
}

// Windows lists the rolling windows in ascending duration. Keys are
// stable: they name the published fields and restart baselines are read
// back under the same keys, so renaming one orphans stored values.
var Windows = []WindowSpec{
	{Key: "timeon_24hours", Label: "24 hours", Duration: 24 * time.Hour},
	{Key: "timeon_48hours", Label: "48 hours", Duration: 48 * time.Hour},
	{Key: "timeon_72hours", Label: "72 hours", Duration: 72 * time.Hour},
	{Key: "timeon_96hours", Label: "96 hours", Duration: 96 * time.Hour},
	{Key: "timeon_5days", Label: "5 days", Duration: 5 * 24 * time.Hour},
	{Key: "timeon_6days", Label: "6 days", Duration: 6 * 24 * time.Hour},
	{Key: "timeon_1week", Label: "1 week", Duration: 7 * 24 * time.Hour},
	{Key: "timeon_2weeks", Label: "2 weeks", Duration: 14 * 24 * time.Hour},
	{Key: "timeon_3weeks", Label: "3 weeks", Duration: 21 * 24 * time.Hour},
}

// Retention is how long closed intervals are kept. It matches the
// longest rolling window; older history can no longer contribute to any
// published value.
var Retention = Windows[len(Windows)-1].Duration

// Device identifies the monitored target. OnState names the target
// state treated as ON, published alongside the values for display.
type Device struct {
	ID      string
	Name    string
	OnState string
}

// Interval is a half-open [Start, End) range during which the device
// was ON. A zero End means the interval is still open: the device is ON
// right now.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Open reports whether the interval has not been closed yet.
func (iv Interval) Open() bool {
	return iv.End.IsZero()
}

// Clip returns how much of the interval falls inside [from, to). An
// open interval is measured up to now.
func (iv Interval) Clip(from, to, now time.Time) time.Duration {
	end := iv.End
	if iv.Open() {
		end = now
	}
	start := iv.Start
	if start.Before(from) {
		start = from
	}
	if end.After(to) {
		end = to
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

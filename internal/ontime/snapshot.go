package ontime

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Field keys of the published key/value snapshot, alongside the window
// keys in Windows. ParseBaseline reads the same keys back at the next
// startup.
const (
	FieldTodayMinutes     = "timeon_today"
	FieldYesterdayMinutes = "timeon_yesterday"
	FieldTodayCount       = "oncount_today"
	FieldYesterdayCount   = "oncount_yesterday"
	FieldDeviceID         = "target_device_id"
	FieldDeviceName       = "target_device_name"
	FieldOnState          = "target_on_state"
	FieldLastUpdated      = "last_updated"

	displaySuffix = "_display"
)

// WindowValue is one rolling window's published value.
type WindowValue struct {
	Key     string
	Label   string
	Minutes float64 // rounded to 1 decimal place
	Display string
}

// DayValue is a day-bounded minute total and its OFF->ON event count.
type DayValue struct {
	Minutes float64
	Display string
	Count   int
}

// Snapshot is the complete set of published values for one device at
// one instant.
type Snapshot struct {
	Device    Device
	At        time.Time
	On        bool
	Windows   []WindowValue
	Today     DayValue
	Yesterday DayValue
}

// Fields flattens the snapshot into the key/value form written to the
// state store.
func (s Snapshot) Fields() map[string]string {
	f := make(map[string]string, 2*len(s.Windows)+10)
	for _, w := range s.Windows {
		f[w.Key] = fieldMinutes(w.Minutes)
		f[w.Key+displaySuffix] = w.Display
	}
	f[FieldTodayMinutes] = fieldMinutes(s.Today.Minutes)
	f[FieldTodayMinutes+displaySuffix] = s.Today.Display
	f[FieldTodayCount] = strconv.Itoa(s.Today.Count)
	f[FieldYesterdayMinutes] = fieldMinutes(s.Yesterday.Minutes)
	f[FieldYesterdayMinutes+displaySuffix] = s.Yesterday.Display
	f[FieldYesterdayCount] = strconv.Itoa(s.Yesterday.Count)
	f[FieldDeviceID] = s.Device.ID
	f[FieldDeviceName] = s.Device.Name
	f[FieldOnState] = s.Device.OnState
	f[FieldLastUpdated] = s.At.UTC().Format(time.RFC3339)
	return f
}

// Window returns the published value for the given window key.
func (s Snapshot) Window(key string) (WindowValue, bool) {
	for _, w := range s.Windows {
		if w.Key == key {
			return w, true
		}
	}
	return WindowValue{}, false
}

// FormatMinutes renders a minute total in the "X hours and Y mins" form
// published next to each numeric value.
func FormatMinutes(minutes float64) string {
	if minutes < 0 {
		minutes = 0
	}
	whole := int(minutes)
	return fmt.Sprintf("%d hours and %d mins", whole/60, whole%60)
}

// round1 keeps published minute values at 1 decimal place. Full
// precision stays internal to the interval math.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// fieldMinutes encodes a minute value for the state store, always with
// one decimal place so read-back parsing is uniform.
func fieldMinutes(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// Package status provides a thread-safe status tracker for the
// ontime-tracker daemon. It is read by the HTTP handlers.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/ontime-tracker/internal/ontime"
)

// Config contains daemon configuration for display.
type Config struct {
	RefreshSeconds int64
	Broker         string
	HTTPAddr       string
}

// DeviceStatus is a point-in-time view of one tracked device.
type DeviceStatus struct {
	Device   ontime.Device
	On       bool
	Seen     bool             // true once a state event has arrived
	Snapshot *ontime.Snapshot // nil until the first tick
}

// Snapshot is a point-in-time view of daemon state. It is a value
// type, safe to use after the lock is released.
type Snapshot struct {
	Devices       []DeviceStatus // sorted by device ID
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	start   time.Time
	config  Config
	mqttOK  bool
	devices map[string]*DeviceStatus
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		start:   startTime,
		config:  cfg,
		devices: make(map[string]*DeviceStatus),
	}
}

// Register adds a device so it appears in listings before its first
// tick.
func (t *Tracker) Register(dev ontime.Device) {
	t.mu.Lock()
	t.entry(dev)
	t.mu.Unlock()
}

// SetSnapshot stores the latest tick snapshot for its device.
// Snapshots are replaced wholesale each tick, so handing the previous
// one to readers stays safe.
func (t *Tracker) SetSnapshot(snap ontime.Snapshot) {
	t.mu.Lock()
	e := t.entry(snap.Device)
	e.Snapshot = &snap
	e.On = snap.On
	t.mu.Unlock()
}

// SetState records the device's live state from its event feed.
func (t *Tracker) SetState(dev ontime.Device, state ontime.State) {
	t.mu.Lock()
	e := t.entry(dev)
	e.On = state == ontime.StateOn
	e.Seen = true
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.mqttOK = connected
	t.mu.Unlock()
}

// entry returns the device's status entry, creating it on first use.
// Caller must hold the write lock.
func (t *Tracker) entry(dev ontime.Device) *DeviceStatus {
	e, ok := t.devices[dev.ID]
	if !ok {
		e = &DeviceStatus{Device: dev}
		t.devices[dev.ID] = e
	}
	return e
}

// Snapshot returns a point-in-time copy of the daemon state with
// devices sorted by ID. The Now field is set at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	devices := make([]DeviceStatus, 0, len(t.devices))
	for _, e := range t.devices {
		devices = append(devices, *e)
	}
	s := Snapshot{
		Devices:       devices,
		StartTime:     t.start,
		MQTTConnected: t.mqttOK,
		Config:        t.config,
	}
	t.mu.RUnlock()

	sort.Slice(s.Devices, func(i, j int) bool {
		return s.Devices[i].Device.ID < s.Devices[j].Device.ID
	})
	s.Now = time.Now()
	return s
}

// Device returns the status entry for one device ID.
func (t *Tracker) Device(id string) (DeviceStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.devices[id]
	if !ok {
		return DeviceStatus{}, false
	}
	return *e, true
}

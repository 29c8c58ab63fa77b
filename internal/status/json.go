package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/ontime-tracker/internal/ontime"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Devices       []DeviceJSON `json:"devices"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// DeviceJSON is the per-device summary in the index listing.
type DeviceJSON struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	State        string  `json:"state"`
	TodayMinutes float64 `json:"today_minutes"`
	TodayDisplay string  `json:"today_display,omitempty"`
	TodayCount   int     `json:"today_count"`
	Last24h      float64 `json:"last_24h_minutes"`
	LastUpdated  string  `json:"last_updated,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	RefreshSeconds int64  `json:"refresh_s"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
}

// StateLabel returns ON or OFF for a seen device and UNKNOWN before
// the first event.
func StateLabel(d DeviceStatus) string {
	if !d.Seen {
		return "UNKNOWN"
	}
	if d.On {
		return "ON"
	}
	return "OFF"
}

func buildDevice(d DeviceStatus) DeviceJSON {
	out := DeviceJSON{
		ID:    d.Device.ID,
		Name:  d.Device.Name,
		State: StateLabel(d),
	}
	if d.Snapshot == nil {
		return out
	}
	out.TodayMinutes = d.Snapshot.Today.Minutes
	out.TodayDisplay = d.Snapshot.Today.Display
	out.TodayCount = d.Snapshot.Today.Count
	if w, ok := d.Snapshot.Window("timeon_24hours"); ok {
		out.Last24h = w.Minutes
	}
	out.LastUpdated = d.Snapshot.At.UTC().Format(time.RFC3339)
	return out
}

// allSeen reports whether every device has delivered at least one
// state event.
func allSeen(devices []DeviceStatus) bool {
	if len(devices) == 0 {
		return false
	}
	for _, d := range devices {
		if !d.Seen {
			return false
		}
	}
	return true
}

// FormatJSON returns the JSON status document for the index endpoint.
func FormatJSON(snap Snapshot) []byte {
	inner := StatusInner{
		Ready:         allSeen(snap.Devices),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Devices:       make([]DeviceJSON, 0, len(snap.Devices)),
		Config: ConfigJSON{
			RefreshSeconds: snap.Config.RefreshSeconds,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
	for _, d := range snap.Devices {
		inner.Devices = append(inner.Devices, buildDevice(d))
	}

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatDeviceJSON returns the full published field set for one device
// as a flat JSON object, mirroring its state topics. Before the first
// tick only the device metadata fields are present.
func FormatDeviceJSON(d DeviceStatus) []byte {
	var fields map[string]string
	if d.Snapshot != nil {
		fields = d.Snapshot.Fields()
	} else {
		fields = map[string]string{
			ontime.FieldDeviceID:   d.Device.ID,
			ontime.FieldDeviceName: d.Device.Name,
			ontime.FieldOnState:    d.Device.OnState,
		}
	}
	data, _ := json.MarshalIndent(fields, "", "  ")
	return data
}

// Package mqtt provides the broker-facing pieces of the daemon: a
// shared client, transition and lifecycle event publishing, a state
// feed source, and a retained-topic snapshot store.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/ontime-tracker/internal/ontime"
)

// DefaultPrefix is the topic namespace the daemon publishes under.
const DefaultPrefix = "ontime"

// EventsTopic returns the transition event topic for a device.
func EventsTopic(prefix, deviceID string) string {
	return prefix + "/" + deviceID + "/events"
}

// FieldTopic returns the retained topic for one published field.
func FieldTopic(prefix, deviceID, field string) string {
	return prefix + "/" + deviceID + "/" + field
}

// SystemTopic returns the daemon lifecycle topic.
func SystemTopic(prefix string) string {
	return prefix + "/system"
}

// Transition is a settled ON/OFF change ready for publishing.
type Transition struct {
	Device    ontime.Device
	State     ontime.State
	Timestamp time.Time
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishTransition sends a device transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishTransition(tr Transition) error

	// PublishSystem sends a daemon lifecycle event to the broker.
	PublishSystem(event SystemEvent) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a daemon lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp time.Time
	Event     string        // e.g., "STARTUP", "SHUTDOWN"
	Reason    string        // e.g., "SIGTERM", "SIGINT" (shutdown only)
	Config    *SystemConfig // config summary (startup only)
	Retained  bool          // Whether the message should be retained by the broker
}

// SystemConfig summarizes the running configuration for startup events.
type SystemConfig struct {
	RefreshSeconds int    `json:"refresh_s"`
	Devices        int    `json:"devices"`
	Broker         string `json:"broker"`
}

// Payload represents the MQTT message payload for a transition.
type Payload struct {
	Device DevicePayload `json:"device"`
}

// DevicePayload contains the transition details.
type DevicePayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`
}

// FormatTransitionPayload creates the JSON payload for a transition.
func FormatTransitionPayload(tr Transition) ([]byte, error) {
	payload := Payload{
		Device: DevicePayload{
			ID:        tr.Device.ID,
			Name:      tr.Device.Name,
			Timestamp: tr.Timestamp.UTC().Format(time.RFC3339),
			State:     string(tr.State),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string        `json:"timestamp"`
	Event     string        `json:"event"`
	Reason    string        `json:"reason,omitempty"`
	Config    *SystemConfig `json:"config,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
			Config:    event.Config,
		},
	}
	return json.Marshal(payload)
}

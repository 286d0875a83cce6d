// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/hc-receiver/internal/logic"
)

// TopicPrefix is the root of the per-controller reading topics.
const TopicPrefix = "heating/controllers"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "heating/receiver/system"

// ReadingTopic returns the topic readings of a controller are published to.
func ReadingTopic(controller int) string {
	return fmt.Sprintf("%s/%d/state", TopicPrefix, controller)
}

// Publisher publishes readings to MQTT.
type Publisher interface {
	// Publish sends a decoded reading to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(reading logic.Reading) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Reading ReadingPayload `json:"reading"`
}

// ReadingPayload contains one decoded frame.
type ReadingPayload struct {
	Timestamp  string         `json:"timestamp"`
	Controller int            `json:"controller"`
	Device     string         `json:"device"`
	Values     map[string]any `json:"values"`
}

// FormatPayload creates the JSON payload for a reading.
// Numeric values are rounded to two decimals.
func FormatPayload(reading logic.Reading) ([]byte, error) {
	payload := Payload{
		Reading: ReadingPayload{
			Timestamp:  reading.Timestamp.UTC().Format(time.RFC3339),
			Controller: reading.Controller,
			Device:     reading.Record.Device(),
			Values:     reading.Record.Rounded(2),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

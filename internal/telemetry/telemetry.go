// Package telemetry publishes beacon diagnostics over MQTT. Publishing is
// best-effort: failures are reported to the caller for logging but must
// never affect the transmit cycle.
package telemetry

import (
	"encoding/json"
	"time"
)

// Topic is the MQTT topic for beacon cycle and battery events.
const Topic = "radio/beacon/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "radio/beacon/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a beacon event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Event is a diagnostic record: a keyer event or a confirmed battery
// transition, flattened for the wire.
type Event struct {
	Timestamp time.Time
	Event     string  // e.g. "TX_ON", "CYCLE_COMPLETE", "BATTERY_LOW"
	Phase     string  // transmit phase at emission
	Battery   string  // confirmed battery state
	Voltage   float64 // latest reading, volts
	Cycle     int     // completed cycle count
	Reason    string  // optional detail (halt reason, skip cause)
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
	Beacon BeaconPayload `json:"beacon"`
}

// BeaconPayload contains the beacon event details.
type BeaconPayload struct {
	Timestamp string  `json:"timestamp"`
	Event     string  `json:"event"`
	Phase     string  `json:"phase"`
	Battery   string  `json:"battery"`
	Voltage   float64 `json:"voltage"`
	Cycle     int     `json:"cycle"`
	Reason    string  `json:"reason,omitempty"`
}

// FormatPayload creates the JSON payload for a beacon event.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		Beacon: BeaconPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Phase:     event.Phase,
			Battery:   event.Battery,
			Voltage:   event.Voltage,
			Cycle:     event.Cycle,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events that don't carry a full status snapshot.
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

package models

import "time"

// Event types recorded by the controller.
const (
	EventTelemetry      = "TELEMETRY"
	EventModeChange     = "MODE_CHANGE"
	EventSetpointChange = "SETPOINT_CHANGE"
	EventError          = "ERROR"
	EventWarning        = "WARNING"
)

// ThermostatEvent is a single audit log entry.
type ThermostatEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // TELEMETRY | MODE_CHANGE | SETPOINT_CHANGE | ERROR | WARNING
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// IsEventType reports whether t is one of the recorded event types.
func IsEventType(t string) bool {
	switch t {
	case EventTelemetry, EventModeChange, EventSetpointChange, EventError, EventWarning:
		return true
	}
	return false
}

package service

import "time"

// TemperatureParams carries a setpoint request. Nil means "not provided".
type TemperatureParams struct {
	Celsius *int
}

type ModeParams struct {
	Mode string // "heat" | "cool" | "off", any case
}

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "TELEMETRY", "MODE_CHANGE", "SETPOINT_CHANGE", "ERROR", "WARNING"
}

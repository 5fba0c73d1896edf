package models

import (
	"strings"
	"time"
)

// HvacMode is the system-level operating mode requested from the controller.
type HvacMode string

const (
	ModeHeat HvacMode = "heat"
	ModeCool HvacMode = "cool"
	ModeOff  HvacMode = "off"
)

// ParseHvacMode accepts "heat", "cool" or "off" in any case.
func ParseHvacMode(s string) (HvacMode, bool) {
	switch HvacMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeHeat:
		return ModeHeat, true
	case ModeCool:
		return ModeCool, true
	case ModeOff:
		return ModeOff, true
	default:
		return "", false
	}
}

// HvacAction is the observed runtime activity, distinct from the requested mode.
type HvacAction string

const (
	ActionHeating HvacAction = "heating"
	ActionCooling HvacAction = "cooling"
	ActionIdle    HvacAction = "idle"
	ActionOff     HvacAction = "off"
)

// Running reports whether the action means the unit is actively firing.
func (a HvacAction) Running() bool {
	return a == ActionHeating || a == ActionCooling
}

// ThermostatState is the normalized view of the controller.
// Nil pointers mean "not yet known".
type ThermostatState struct {
	Name              string     `json:"name"`
	HvacMode          HvacMode   `json:"hvac_mode"`            // heat | cool | off
	CurrentAction     HvacAction `json:"hvac_action"`          // heating | cooling | idle | off
	TargetTemperature *int       `json:"target_temperature_c"` // °C
	ZoneAActive       *bool      `json:"zone_a_active"`
	ZoneBActive       *bool      `json:"zone_b_active"`
	UpdatedAt         time.Time  `json:"updated_at"`           // last successful refresh
}

// NewThermostatState returns the state of an adapter that has not talked to the controller yet.
func NewThermostatState(name string) ThermostatState {
	return ThermostatState{
		Name:          name,
		HvacMode:      ModeOff,
		CurrentAction: ActionOff,
	}
}

// Clone returns a copy that shares no pointers with s.
func (s ThermostatState) Clone() ThermostatState {
	out := s
	if s.TargetTemperature != nil {
		v := *s.TargetTemperature
		out.TargetTemperature = &v
	}
	if s.ZoneAActive != nil {
		v := *s.ZoneAActive
		out.ZoneAActive = &v
	}
	if s.ZoneBActive != nil {
		v := *s.ZoneBActive
		out.ZoneBActive = &v
	}
	return out
}

// SameReading compares the controller-reported fields, ignoring Name and UpdatedAt.
func (s ThermostatState) SameReading(o ThermostatState) bool {
	return s.HvacMode == o.HvacMode &&
		s.CurrentAction == o.CurrentAction &&
		equalInt(s.TargetTemperature, o.TargetTemperature) &&
		equalBool(s.ZoneAActive, o.ZoneAActive) &&
		equalBool(s.ZoneBActive, o.ZoneBActive)
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Adapter-level limits reported to the host. The controller clamps on its own side.
const (
	MinTemperatureC = 6
	MaxTemperatureC = 30
)

const FeatureTargetTemperature = "target_temperature"

// Capabilities is the static metadata the host needs to render the thermostat.
type Capabilities struct {
	HvacModes       []HvacMode `json:"hvac_modes"`
	Features        []string   `json:"features"`
	MinTemperatureC int        `json:"min_temperature_c"`
	MaxTemperatureC int        `json:"max_temperature_c"`
	TemperatureUnit string     `json:"temperature_unit"`
	PollingRequired bool       `json:"polling_required"`
}

// DefaultCapabilities describes what this adapter exposes.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		HvacModes:       []HvacMode{ModeHeat, ModeCool, ModeOff},
		Features:        []string{FeatureTargetTemperature},
		MinTemperatureC: MinTemperatureC,
		MaxTemperatureC: MaxTemperatureC,
		TemperatureUnit: "celsius",
		PollingRequired: true,
	}
}

// ControllerStats counts transport and mapping outcomes since start.
type ControllerStats struct {
	Refreshes       int64     `json:"refreshes"`
	RefreshFailures int64     `json:"refresh_failures"`
	DecodeFailures  int64     `json:"decode_failures"`
	EmptyResponses  int64     `json:"empty_responses"`
	CommandsSent    int64     `json:"commands_sent"`
	CommandFailures int64     `json:"command_failures"`
	MappingWarnings int64     `json:"mapping_warnings"`
	LastRefreshAt   time.Time `json:"last_refresh_at"`
}

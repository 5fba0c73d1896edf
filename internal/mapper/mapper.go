// Package mapper turns a decoded controller frame into a ThermostatState.
package mapper

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"touch_thermostat/internal/codec"
	"touch_thermostat/internal/models"
)

// Schema describes one operating group. Heat and cool share the same layout
// and differ only in the values held here.
type Schema struct {
	Mode       models.HvacMode
	Group      string            // HGOM | CGOM
	RunningKey string            // leaf under GSS that reports activity
	Running    models.HvacAction // action reported while RunningKey is "Y"
	SystemMode string            // SYST.OSS.MD letter that selects this group
}

// schemas is ordered by precedence: a frame carrying both groups maps as heat.
var schemas = []Schema{
	{Mode: models.ModeHeat, Group: codec.GroupHeat, RunningKey: "HC", Running: models.ActionHeating, SystemMode: codec.SystemModeHeat},
	{Mode: models.ModeCool, Group: codec.GroupCool, RunningKey: "CC", Running: models.ActionCooling, SystemMode: codec.SystemModeCool},
}

// SchemaFor returns the schema for heat or cool. Off has none.
func SchemaFor(mode models.HvacMode) (Schema, bool) {
	for _, s := range schemas {
		if s.Mode == mode {
			return s, true
		}
	}
	return Schema{}, false
}

// Sub-object and leaf keys inside a group.
const (
	keyOperating = "OOP"
	keyStatus    = "GSS"
	keySettings  = "GSO"
	keyZoneA     = "ZAO"
	keyZoneB     = "ZBO"

	leafState    = "ST"
	leafSetpoint = "SP"
	leafEnabled  = "UE"

	flagYes = "Y"
)

var errMissing = errors.New("missing")

// Warning is a non-fatal data quality issue. The field it names was left as it was.
type Warning struct {
	Path   string
	Reason string
}

func (w Warning) String() string {
	return w.Path + ": " + w.Reason
}

func warnf(path, format string, args ...any) Warning {
	return Warning{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Apply returns prev updated with whatever frame carries. prev is not modified.
// Each field is independent: a missing or malformed one is skipped, never fatal.
func Apply(prev models.ThermostatState, frame codec.Frame) (models.ThermostatState, []Warning) {
	out := prev.Clone()
	var warns []Warning

	schema, found := activeSchema(frame)
	if !found {
		out.HvacMode = models.ModeOff
	} else {
		warns = applyGroup(&out, schema, frame[schema.Group])
	}

	if out.HvacMode == models.ModeOff && out.CurrentAction.Running() {
		warns = append(warns, warnf("hvac_action", "%s reported while off, using %s", out.CurrentAction, models.ActionOff))
		out.CurrentAction = models.ActionOff
	}
	return out, warns
}

func activeSchema(frame codec.Frame) (Schema, bool) {
	for _, s := range schemas {
		if frame.Has(s.Group) {
			return s, true
		}
	}
	return Schema{}, false
}

func applyGroup(st *models.ThermostatState, s Schema, raw any) []Warning {
	group, ok := raw.(map[string]any)
	if !ok {
		return []Warning{warnf(s.Group, "is %T, want object", raw)}
	}

	var warns []Warning
	sub := func(key string) (map[string]any, bool) {
		v, present := group[key]
		if !present {
			return nil, false
		}
		m, ok := v.(map[string]any)
		if !ok {
			warns = append(warns, warnf(s.Group+"."+key, "is %T, want object", v))
			return nil, false
		}
		return m, true
	}

	if oop, ok := sub(keyOperating); ok {
		if oop[leafState] == codec.StateOn {
			st.HvacMode = s.Mode
		} else {
			st.HvacMode = models.ModeOff
		}
	}

	if gss, ok := sub(keyStatus); ok {
		running := gss[s.RunningKey] == flagYes
		switch {
		case running && st.HvacMode == s.Mode:
			st.CurrentAction = s.Running
		case st.HvacMode == models.ModeOff:
			st.CurrentAction = models.ActionOff
		default:
			st.CurrentAction = models.ActionIdle
		}
		if running && st.HvacMode != s.Mode {
			warns = append(warns, warnf(s.Group+"."+keyStatus+"."+s.RunningKey,
				"%s reported while mode is %s, using %s", s.Running, st.HvacMode, st.CurrentAction))
		}
	}

	if gso, ok := sub(keySettings); ok {
		path := s.Group + "." + keySettings + "." + leafSetpoint
		if sp, err := parseSetpoint(gso[leafSetpoint]); err != nil {
			warns = append(warns, warnf(path, "%v", err))
		} else {
			st.TargetTemperature = &sp
		}
	}

	if zao, ok := sub(keyZoneA); ok {
		applyZone(&st.ZoneAActive, zao)
	}
	if zbo, ok := sub(keyZoneB); ok {
		applyZone(&st.ZoneBActive, zbo)
	}

	return warns
}

// applyZone sets the flag from UE. A zone object without UE says nothing.
func applyZone(dst **bool, zone map[string]any) {
	v, ok := zone[leafEnabled]
	if !ok {
		return
	}
	on := v == flagYes
	*dst = &on
}

// parseSetpoint accepts "21", " 21 ", "21.0" or the JSON number 21.
func parseSetpoint(v any) (int, error) {
	switch x := v.(type) {
	case nil:
		return 0, errMissing
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as an integer", x)
		}
		return integral(f)
	case float64:
		return integral(x)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// maxSetpoint bounds what is accepted as a setpoint. The controller itself
// clamps to a much narrower range; this only rejects nonsense.
const maxSetpoint = 1000

func integral(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not a whole number", f)
	}
	if math.Abs(f) > maxSetpoint {
		return 0, fmt.Errorf("%v is out of range", f)
	}
	return int(f), nil
}

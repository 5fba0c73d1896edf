package mapper

import (
	"encoding/json"
	"strings"
	"testing"

	"touch_thermostat/internal/codec"
	"touch_thermostat/internal/models"
)

func frame(t *testing.T, body string) codec.Frame {
	t.Helper()
	var f codec.Frame
	if err := json.Unmarshal([]byte(body), &f); err != nil {
		t.Fatalf("bad fixture %s: %v", body, err)
	}
	return f
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func hasWarning(ws []Warning, path string) bool {
	for _, w := range ws {
		if strings.HasPrefix(w.Path, path) {
			return true
		}
	}
	return false
}

func TestApply_HeatBranch(t *testing.T) {
	t.Parallel()

	f := frame(t, `{"HGOM":{
		"OOP":{"ST":"N"},
		"GSS":{"HC":"Y"},
		"GSO":{"SP":"21"},
		"ZAO":{"UE":"Y"},
		"ZBO":{"UE":"N"}}}`)

	got, warns := Apply(models.NewThermostatState("t"), f)
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	want := models.ThermostatState{
		Name:              "t",
		HvacMode:          models.ModeHeat,
		CurrentAction:     models.ActionHeating,
		TargetTemperature: intPtr(21),
		ZoneAActive:       boolPtr(true),
		ZoneBActive:       boolPtr(false),
	}
	if !got.SameReading(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestApply_CoolBranchOffNeverCooling(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		prev models.HvacAction
		body string
	}{
		{name: "running flag set", prev: models.ActionIdle, body: `{"CGOM":{"OOP":{"ST":"F"},"GSS":{"CC":"Y"},"GSO":{"SP":"19"}}}`},
		{name: "no status object", prev: models.ActionCooling, body: `{"CGOM":{"OOP":{"ST":"F"}}}`},
		{name: "odd state value", prev: models.ActionCooling, body: `{"CGOM":{"OOP":{"ST":"Z"},"GSS":{"CC":"N"}}}`},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			prev := models.NewThermostatState("t")
			prev.HvacMode = models.ModeCool
			prev.CurrentAction = c.prev

			got, _ := Apply(prev, frame(t, c.body))
			if got.HvacMode != models.ModeOff {
				t.Fatalf("mode = %s, want off", got.HvacMode)
			}
			if got.CurrentAction == models.ActionCooling || got.CurrentAction == models.ActionHeating {
				t.Fatalf("action %s while off", got.CurrentAction)
			}
		})
	}
}

func TestApply_CoolBranchRunning(t *testing.T) {
	t.Parallel()

	got, _ := Apply(models.NewThermostatState("t"),
		frame(t, `{"CGOM":{"OOP":{"ST":"N"},"GSS":{"CC":"Y","HC":"Y"},"GSO":{"SP":"18"}}}`))
	if got.HvacMode != models.ModeCool || got.CurrentAction != models.ActionCooling {
		t.Fatalf("got mode=%s action=%s", got.HvacMode, got.CurrentAction)
	}
	if got.TargetTemperature == nil || *got.TargetTemperature != 18 {
		t.Fatalf("setpoint = %v", got.TargetTemperature)
	}
}

func TestApply_IdleWhenActiveButNotRunning(t *testing.T) {
	t.Parallel()

	got, _ := Apply(models.NewThermostatState("t"), frame(t, `{"HGOM":{"OOP":{"ST":"N"},"GSS":{"HC":"N"}}}`))
	if got.HvacMode != models.ModeHeat || got.CurrentAction != models.ActionIdle {
		t.Fatalf("got mode=%s action=%s", got.HvacMode, got.CurrentAction)
	}
}

func TestApply_HeatTakesPrecedence(t *testing.T) {
	t.Parallel()

	got, _ := Apply(models.NewThermostatState("t"),
		frame(t, `{"CGOM":{"OOP":{"ST":"N"}},"HGOM":{"OOP":{"ST":"N"}}}`))
	if got.HvacMode != models.ModeHeat {
		t.Fatalf("mode = %s, want heat", got.HvacMode)
	}
}

func TestApply_NoGroupMeansOff(t *testing.T) {
	t.Parallel()

	prev := models.NewThermostatState("t")
	prev.HvacMode = models.ModeHeat
	prev.CurrentAction = models.ActionHeating
	prev.TargetTemperature = intPtr(23)
	prev.ZoneAActive = boolPtr(true)

	got, _ := Apply(prev, frame(t, `{"SYST":{"OSS":{"MD":"H"}}}`))
	if got.HvacMode != models.ModeOff || got.CurrentAction != models.ActionOff {
		t.Fatalf("got mode=%s action=%s", got.HvacMode, got.CurrentAction)
	}
	if *got.TargetTemperature != 23 || !*got.ZoneAActive {
		t.Fatalf("other fields must be unchanged: %+v", got)
	}
}

func TestApply_MissingSubObjectsLeaveFieldsUnchanged(t *testing.T) {
	t.Parallel()

	prev := models.NewThermostatState("t")
	prev.HvacMode = models.ModeHeat
	prev.CurrentAction = models.ActionIdle
	prev.TargetTemperature = intPtr(20)
	prev.ZoneAActive = boolPtr(true)
	prev.ZoneBActive = boolPtr(false)

	got, warns := Apply(prev, frame(t, `{"HGOM":{"GSS":{"HC":"Y"}}}`))
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %v", warns)
	}
	if got.HvacMode != models.ModeHeat || got.CurrentAction != models.ActionHeating {
		t.Fatalf("got mode=%s action=%s", got.HvacMode, got.CurrentAction)
	}
	if *got.TargetTemperature != 20 || !*got.ZoneAActive || *got.ZoneBActive {
		t.Fatalf("untouched fields changed: %+v", got)
	}
}

func TestApply_RunningFlagFromInactiveGroup(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		mode       models.HvacMode
		body       string
		wantAction models.HvacAction
		wantPath   string
	}{
		{name: "heat flag while cool", mode: models.ModeCool, body: `{"HGOM":{"GSS":{"HC":"Y"}}}`, wantAction: models.ActionIdle, wantPath: "HGOM.GSS.HC"},
		{name: "cool flag while heat", mode: models.ModeHeat, body: `{"CGOM":{"GSS":{"CC":"Y"}}}`, wantAction: models.ActionIdle, wantPath: "CGOM.GSS.CC"},
		{name: "heat flag while off", mode: models.ModeOff, body: `{"HGOM":{"GSS":{"HC":"Y"}}}`, wantAction: models.ActionOff, wantPath: "HGOM.GSS.HC"},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			prev := models.NewThermostatState("t")
			prev.HvacMode = c.mode
			prev.CurrentAction = models.ActionIdle

			got, warns := Apply(prev, frame(t, c.body))
			if got.HvacMode != c.mode || got.CurrentAction != c.wantAction {
				t.Fatalf("got mode=%s action=%s, want %s/%s", got.HvacMode, got.CurrentAction, c.mode, c.wantAction)
			}
			if !hasWarning(warns, c.wantPath) {
				t.Fatalf("expected warning on %s, got %v", c.wantPath, warns)
			}
		})
	}
}

func TestApply_ZoneWithoutEnableKeyIsUnchanged(t *testing.T) {
	t.Parallel()

	prev := models.NewThermostatState("t")
	prev.ZoneAActive = boolPtr(true)

	got, _ := Apply(prev, frame(t, `{"HGOM":{"ZAO":{"XX":"1"},"ZBO":{"UE":"maybe"}}}`))
	if got.ZoneAActive == nil || !*got.ZoneAActive {
		t.Fatalf("zone A should keep true, got %v", got.ZoneAActive)
	}
	if got.ZoneBActive == nil || *got.ZoneBActive {
		t.Fatalf("zone B should be false for a non-Y value, got %v", got.ZoneBActive)
	}
}

func TestApply_SetpointParsing(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		sp       string
		want     int
		wantWarn bool
	}{
		{name: "string", sp: `"21"`, want: 21},
		{name: "padded string", sp: `" 22 "`, want: 22},
		{name: "decimal string", sp: `"23.0"`, want: 23},
		{name: "number", sp: `24`, want: 24},
		{name: "fraction", sp: `"21.5"`, want: 17, wantWarn: true},
		{name: "garbage", sp: `"hot"`, want: 17, wantWarn: true},
		{name: "bool", sp: `true`, want: 17, wantWarn: true},
		{name: "null", sp: `null`, want: 17, wantWarn: true},
		{name: "huge number", sp: `1e300`, want: 17, wantWarn: true},
		{name: "huge string", sp: `"-1e19"`, want: 17, wantWarn: true},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			prev := models.NewThermostatState("t")
			prev.TargetTemperature = intPtr(17)

			got, warns := Apply(prev, frame(t, `{"HGOM":{"GSO":{"SP":`+c.sp+`}}}`))
			if *got.TargetTemperature != c.want {
				t.Fatalf("setpoint = %d, want %d", *got.TargetTemperature, c.want)
			}
			if c.wantWarn != hasWarning(warns, "HGOM.GSO.SP") {
				t.Fatalf("warnings = %v, wantWarn=%v", warns, c.wantWarn)
			}
		})
	}
}

func TestApply_MalformedContentIsNonFatal(t *testing.T) {
	t.Parallel()

	prev := models.NewThermostatState("t")
	prev.TargetTemperature = intPtr(20)

	got, warns := Apply(prev, frame(t, `{"HGOM":{"OOP":"N","GSO":[1,2],"ZAO":{"UE":"Y"}}}`))
	if !hasWarning(warns, "HGOM.OOP") || !hasWarning(warns, "HGOM.GSO") {
		t.Fatalf("expected warnings for OOP and GSO, got %v", warns)
	}
	if *got.TargetTemperature != 20 {
		t.Fatalf("setpoint changed: %d", *got.TargetTemperature)
	}
	if got.ZoneAActive == nil || !*got.ZoneAActive {
		t.Fatalf("well formed zone should still apply")
	}

	got, warns = Apply(prev, frame(t, `{"HGOM":"broken"}`))
	if !hasWarning(warns, "HGOM") || !got.SameReading(prev) {
		t.Fatalf("broken group: warns=%v state=%+v", warns, got)
	}
}

func TestApply_DoesNotMutatePrev(t *testing.T) {
	t.Parallel()

	prev := models.NewThermostatState("t")
	prev.TargetTemperature = intPtr(20)
	prev.ZoneAActive = boolPtr(false)

	_, _ = Apply(prev, frame(t, `{"HGOM":{"OOP":{"ST":"N"},"GSO":{"SP":"25"},"ZAO":{"UE":"Y"}}}`))
	if prev.HvacMode != models.ModeOff || *prev.TargetTemperature != 20 || *prev.ZoneAActive {
		t.Fatalf("prev was modified: %+v", prev)
	}
}

func TestSchemaFor(t *testing.T) {
	t.Parallel()

	heat, ok := SchemaFor(models.ModeHeat)
	if !ok || heat.Group != "HGOM" || heat.RunningKey != "HC" || heat.SystemMode != "H" {
		t.Fatalf("heat schema = %+v", heat)
	}
	cool, ok := SchemaFor(models.ModeCool)
	if !ok || cool.Group != "CGOM" || cool.RunningKey != "CC" || cool.SystemMode != "C" {
		t.Fatalf("cool schema = %+v", cool)
	}
	if _, ok := SchemaFor(models.ModeOff); ok {
		t.Fatalf("off must have no schema")
	}
}

package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestThermostatState_TimestampsAlwaysSerialized(t *testing.T) {
	body, err := json.Marshal(NewThermostatState("hall"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(body), `"updated_at":"0001-01-01T00:00:00Z"`) {
		t.Fatalf("zero updated_at missing from %s", body)
	}

	stats, err := json.Marshal(ControllerStats{LastRefreshAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(stats), `"last_refresh_at":"2024-05-01T08:00:00Z"`) {
		t.Fatalf("last_refresh_at missing from %s", stats)
	}
}

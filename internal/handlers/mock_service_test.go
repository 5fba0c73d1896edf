package handlers

import (
	"context"
	"net/http"
	"time"

	"touch_thermostat/internal/models"
	"touch_thermostat/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockThermostat struct {
	state models.ThermostatState
	stats models.ControllerStats

	refreshErr error
	setTempErr error
	setModeErr error

	refreshCalls int
	lastTemp     service.TemperatureParams
	lastMode     service.ModeParams
	setTempCalls int
	setModeCalls int
}

func (m *mockThermostat) Refresh(ctx context.Context) error {
	m.refreshCalls++
	return m.refreshErr
}
func (m *mockThermostat) CurrentState() models.ThermostatState { return m.state }
func (m *mockThermostat) Capabilities() models.Capabilities    { return models.DefaultCapabilities() }
func (m *mockThermostat) Stats() models.ControllerStats        { return m.stats }
func (m *mockThermostat) OnChange(fn func(models.ThermostatState)) {}
func (m *mockThermostat) SetTargetTemperature(ctx context.Context, p service.TemperatureParams) error {
	m.setTempCalls++
	m.lastTemp = p
	return m.setTempErr
}
func (m *mockThermostat) SetHvacMode(ctx context.Context, p service.ModeParams) error {
	m.setModeCalls++
	m.lastMode = p
	return m.setModeErr
}

type mockEventLog struct {
	resp     []models.ThermostatEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.ThermostatEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}
func (m *mockEventLog) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	return 0, nil
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

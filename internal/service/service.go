package service

import (
	"context"
	"time"

	"touch_thermostat/internal/logger"
	"touch_thermostat/internal/models"
	"touch_thermostat/internal/repository"
	"touch_thermostat/internal/transport"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Thermostat is the host-facing contract of one controller.
type Thermostat interface {
	Refresh(ctx context.Context) error
	CurrentState() models.ThermostatState
	Capabilities() models.Capabilities
	SetTargetTemperature(ctx context.Context, p TemperatureParams) error
	SetHvacMode(ctx context.Context, p ModeParams) error
	OnChange(fn func(models.ThermostatState))
	Stats() models.ControllerStats
}

// EventLog exposes the append-only audit log.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ThermostatEvent, error)
	Prune(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Poller runs the background refresh loop.
// Stop via context cancellation for graceful shutdown.
type Poller interface {
	Run(ctx context.Context, interval time.Duration)
}

// Service aggregates all sub-services.
type Service struct {
	Thermostat
	EventLog
	Poller
	Authorization
}

// Config carries the settings the services need from the outside.
type Config struct {
	Thermostat ThermostatConfig
	Auth       AuthConfig
	Poller     PollerConfig
}

// NewService wires the repository layer and the controller transport into concrete services.
func NewService(repos *repository.Repository, dialer transport.Dialer, cfg Config, log *logger.Logger) *Service {
	thermostat := NewThermostatService(cfg.Thermostat, dialer, repos.EventRepo, log)
	eventLog := NewEventLogService(repos.EventRepo)
	return &Service{
		Thermostat:    thermostat,
		EventLog:      eventLog,
		Poller:        NewPollerService(thermostat, eventLog, cfg.Poller, log),
		Authorization: NewAuthService(repos.Auth, cfg.Auth),
	}
}

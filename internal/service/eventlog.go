package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"touch_thermostat/internal/models"
	"touch_thermostat/internal/repository"
)

type EventLogService struct {
	eventRepo repository.EventRepo
	now       func() time.Time
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo, now: time.Now}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errInvalidMaxAge    = errors.New("retention must be positive")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	return from, to, normalizeEventType(f.Type), nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.ThermostatEvent, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, from, to, typ)
}

// Prune deletes events older than maxAge.
func (s *EventLogService) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, errInvalidMaxAge
	}
	return s.eventRepo.DeleteBefore(ctx, s.now().Add(-maxAge).UTC())
}

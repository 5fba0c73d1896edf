package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"touch_thermostat/internal/codec"
	"touch_thermostat/internal/logger"
	"touch_thermostat/internal/mapper"
	"touch_thermostat/internal/models"
	"touch_thermostat/internal/repository"
	"touch_thermostat/internal/transport"

	"github.com/google/uuid"
)

var (
	ErrNotActive   = errors.New("thermostat is off: no active group to address")
	ErrInvalidMode = errors.New("invalid mode: must be heat, cool, or off")
)

// defaultCommandSettle is how long the controller needs to apply one write.
const defaultCommandSettle = 2 * time.Second

// ThermostatConfig holds the host-supplied settings of one controller.
type ThermostatConfig struct {
	Name          string
	CommandSettle time.Duration // wait between and after command writes
}

// ThermostatService owns the state of one controller.
//
// ioMu serializes every connection to the device, including the settle
// between the two writes of a mode change. mu guards state, stats and
// listeners and is never held during I/O.
type ThermostatService struct {
	dialer transport.Dialer
	events repository.EventRepo
	log    *logger.Logger

	commandSettle time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
	now           func() time.Time

	ioMu sync.Mutex

	mu        sync.RWMutex
	state     models.ThermostatState
	stats     models.ControllerStats
	listeners []func(models.ThermostatState)
}

// NewThermostatService builds a controller in its initial state (off, nothing known).
// events may be nil when no audit log is wanted.
func NewThermostatService(cfg ThermostatConfig, dialer transport.Dialer, events repository.EventRepo, log *logger.Logger) *ThermostatService {
	if log == nil {
		log = logger.Nop()
	}
	settle := cfg.CommandSettle
	if settle < 0 {
		settle = 0
	} else if settle == 0 {
		settle = defaultCommandSettle
	}
	return &ThermostatService{
		dialer:        dialer,
		events:        events,
		log:           log.Named("thermostat"),
		commandSettle: settle,
		sleep:         transport.Sleep,
		now:           time.Now,
		state:         models.NewThermostatState(cfg.Name),
	}
}

// -------- Read path --------

// Refresh reads one frame from the controller and folds it into the state.
// On failure the state is left as it was and the error is returned for reporting.
func (s *ThermostatService) Refresh(ctx context.Context) error {
	return s.withIO(func() (*models.ThermostatState, error) {
		return s.refresh(ctx)
	})
}

func (s *ThermostatService) refresh(ctx context.Context) (*models.ThermostatState, error) {
	s.mu.Lock()
	s.stats.Refreshes++
	s.mu.Unlock()

	frame, err := s.readFrame(ctx)
	if err != nil {
		s.mu.Lock()
		s.stats.RefreshFailures++
		switch {
		case errors.Is(err, codec.ErrDecode):
			s.stats.DecodeFailures++
		case errors.Is(err, transport.ErrEmptyResponse):
			s.stats.EmptyResponses++
		}
		s.mu.Unlock()

		s.recordFailure(ctx, "refresh", err)
		return nil, fmt.Errorf("refresh: %w", err)
	}

	now := s.now().UTC()
	if frame == nil {
		s.log.Debugw("refresh_no_data")
		s.mu.Lock()
		s.stats.LastRefreshAt = now
		s.mu.Unlock()
		return nil, nil
	}

	s.mu.Lock()
	prev := s.state
	next, warns := mapper.Apply(prev, frame)
	next.UpdatedAt = now
	s.state = next
	s.stats.LastRefreshAt = now
	s.stats.MappingWarnings += int64(len(warns))
	s.mu.Unlock()

	for _, w := range warns {
		s.log.Warnw("mapping_warning", "path", w.Path, "reason", w.Reason)
		s.appendEvent(ctx, models.EventWarning, w.String(), map[string]any{"path": w.Path})
	}

	if next.SameReading(prev) {
		return nil, nil
	}
	s.log.Debugw("state_changed",
		"hvac_mode", next.HvacMode,
		"hvac_action", next.CurrentAction,
	)
	s.appendEvent(ctx, models.EventTelemetry, "controller state changed", telemetryMeta(next))
	changed := next.Clone()
	return &changed, nil
}

func (s *ThermostatService) readFrame(ctx context.Context) (codec.Frame, error) {
	conn, err := s.dialer.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer s.closeConn(conn)

	raw, err := conn.ReadFrame(ctx)
	if err != nil {
		return nil, err
	}
	return codec.Decode(raw)
}

// CurrentState returns a copy of the last known state.
func (s *ThermostatService) CurrentState() models.ThermostatState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Capabilities is static metadata about what this adapter supports.
func (s *ThermostatService) Capabilities() models.Capabilities {
	return models.DefaultCapabilities()
}

// Stats returns a snapshot of the counters.
func (s *ThermostatService) Stats() models.ControllerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// OnChange registers fn to be called with the new state after every change.
// fn runs on the goroutine that caused the change, after the device
// connection has been released. A slow fn delays only that caller.
func (s *ThermostatService) OnChange(fn func(models.ThermostatState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// -------- Write path --------

// SetTargetTemperature writes the setpoint of the active group.
// A nil value is a no-op. While off there is no group to address and
// nothing is sent. The value is not range checked; the controller clamps it.
func (s *ThermostatService) SetTargetTemperature(ctx context.Context, p TemperatureParams) error {
	if p.Celsius == nil {
		return nil
	}
	celsius := *p.Celsius

	return s.withIO(func() (*models.ThermostatState, error) {
		schema, ok := mapper.SchemaFor(s.CurrentState().HvacMode)
		if !ok {
			return nil, ErrNotActive
		}

		if err := s.send(ctx, codec.SetpointCommand(schema.Group, celsius)); err != nil {
			s.recordFailure(ctx, "set_temperature", err)
			return nil, fmt.Errorf("set temperature: %w", err)
		}

		// No read-back exists; the next refresh may override this.
		next := s.update(func(st *models.ThermostatState) {
			st.TargetTemperature = &celsius
		})
		s.appendEvent(ctx, models.EventSetpointChange, fmt.Sprintf("target temperature set to %d", celsius),
			map[string]any{"group": schema.Group, "target_temperature_c": celsius})
		s.settle(ctx)
		return &next, nil
	})
}

// SetHvacMode switches the controller to heat, cool or off.
//
// heat/cool: SYST.OSS.MD first, then after the settle delay {GROUP}.OOP.ST=N.
// off: {GROUP}.OOP.ST=F for the group that was active; nothing when already off.
func (s *ThermostatService) SetHvacMode(ctx context.Context, p ModeParams) error {
	mode, ok := models.ParseHvacMode(p.Mode)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidMode, p.Mode)
	}

	return s.withIO(func() (*models.ThermostatState, error) {
		return s.setHvacMode(ctx, mode)
	})
}

func (s *ThermostatService) setHvacMode(ctx context.Context, mode models.HvacMode) (*models.ThermostatState, error) {
	prev := s.CurrentState()

	var cmds []codec.Command
	if mode == models.ModeOff {
		active, ok := mapper.SchemaFor(prev.HvacMode)
		if !ok {
			s.log.Debugw("mode_unchanged", "hvac_mode", mode)
			return nil, nil
		}
		cmds = []codec.Command{codec.OperatingStateCommand(active.Group, false)}
	} else {
		target, _ := mapper.SchemaFor(mode)
		cmds = []codec.Command{
			codec.SystemModeCommand(target.SystemMode),
			codec.OperatingStateCommand(target.Group, true),
		}
	}

	for i, cmd := range cmds {
		if i > 0 {
			if err := s.sleep(ctx, s.commandSettle); err != nil {
				return nil, fmt.Errorf("set mode %s: %w", mode, err)
			}
		}
		if err := s.send(ctx, cmd); err != nil {
			s.recordFailure(ctx, "set_mode", err)
			return nil, fmt.Errorf("set mode %s: %w", mode, err)
		}
	}

	next := s.update(func(st *models.ThermostatState) {
		st.HvacMode = mode
		running, _ := mapper.SchemaFor(mode)
		if st.CurrentAction.Running() && st.CurrentAction != running.Running {
			st.CurrentAction = models.ActionOff
			if mode != models.ModeOff {
				st.CurrentAction = models.ActionIdle
			}
		}
	})
	s.appendEvent(ctx, models.EventModeChange, fmt.Sprintf("mode changed to %s", mode),
		map[string]any{"from": prev.HvacMode, "to": mode})
	s.settle(ctx)
	return &next, nil
}

// send writes one command over its own connection.
func (s *ThermostatService) send(ctx context.Context, cmd codec.Command) error {
	frame, err := cmd.Encode()
	if err != nil {
		return err
	}

	conn, err := s.dialer.Open(ctx)
	if err != nil {
		s.countCommand(false)
		return err
	}
	defer s.closeConn(conn)

	if err := conn.SendFrame(ctx, frame); err != nil {
		s.countCommand(false)
		return err
	}
	s.countCommand(true)
	s.log.Infow("command_sent", "command", cmd.String())
	return nil
}

// settle gives the controller time to apply a write before the next poll.
// ioMu is still held by the caller.
func (s *ThermostatService) settle(ctx context.Context) {
	if err := s.sleep(ctx, s.commandSettle); err != nil {
		s.log.Debugw("settle_interrupted", "err", err)
	}
}

// -------- helpers --------

// withIO runs fn while holding the device lock and notifies listeners
// with the state fn returns once the lock is released. A nil state means
// nothing changed.
func (s *ThermostatService) withIO(fn func() (*models.ThermostatState, error)) error {
	next, err := func() (*models.ThermostatState, error) {
		s.ioMu.Lock()
		defer s.ioMu.Unlock()
		return fn()
	}()
	if next != nil {
		s.notify(*next)
	}
	return err
}

func (s *ThermostatService) update(fn func(*models.ThermostatState)) models.ThermostatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	return s.state.Clone()
}

func (s *ThermostatService) notify(st models.ThermostatState) {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(st.Clone())
	}
}

func (s *ThermostatService) countCommand(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.stats.CommandsSent++
	} else {
		s.stats.CommandFailures++
	}
}

func (s *ThermostatService) closeConn(c transport.Conn) {
	if err := c.Close(); err != nil {
		s.log.Debugw("close_failed", "err", err)
	}
}

func (s *ThermostatService) recordFailure(ctx context.Context, op string, err error) {
	s.log.Errorw(op+"_failed", "err", err)
	s.appendEvent(ctx, models.EventError, op+" failed", map[string]any{
		"operation": op,
		"error":     err.Error(),
	})
}

// appendEvent writes to the audit log. A failing log never fails the operation.
func (s *ThermostatService) appendEvent(ctx context.Context, typ, desc string, meta map[string]any) {
	if s.events == nil {
		return
	}
	// Detached so a cancelled request still leaves its trace.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	err := s.events.Append(ctx, models.ThermostatEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  s.now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	})
	if err != nil {
		s.log.Warnw("event_append_failed", "type", typ, "err", err)
	}
}

func telemetryMeta(st models.ThermostatState) map[string]any {
	m := map[string]any{
		"hvac_mode":   st.HvacMode,
		"hvac_action": st.CurrentAction,
	}
	if st.TargetTemperature != nil {
		m["target_temperature_c"] = *st.TargetTemperature
	}
	if st.ZoneAActive != nil {
		m["zone_a_active"] = *st.ZoneAActive
	}
	if st.ZoneBActive != nil {
		m["zone_b_active"] = *st.ZoneBActive
	}
	return m
}

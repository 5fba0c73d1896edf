package service

import (
	"context"
	"time"

	"touch_thermostat/internal/logger"
)

// defaultPruneEvery is how often the poller trims the event log.
const defaultPruneEvery = time.Hour

type refresher interface {
	Refresh(ctx context.Context) error
}

type pruner interface {
	Prune(ctx context.Context, maxAge time.Duration) (int64, error)
}

// PollerConfig controls background maintenance done alongside polling.
type PollerConfig struct {
	Retention  time.Duration // zero keeps events forever
	PruneEvery time.Duration
}

// PollerService keeps the controller state fresh. The controller only answers
// when asked, so someone has to ask on a schedule.
type PollerService struct {
	thermostat refresher
	events     pruner
	cfg        PollerConfig
	log        *logger.Logger
}

func NewPollerService(thermostat refresher, events pruner, cfg PollerConfig, log *logger.Logger) *PollerService {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.PruneEvery <= 0 {
		cfg.PruneEvery = defaultPruneEvery
	}
	return &PollerService{thermostat: thermostat, events: events, cfg: cfg, log: log.Named("poller")}
}

// Run refreshes immediately and then every interval until ctx is cancelled.
// Refresh errors are already logged by the controller; the loop just carries on.
func (p *PollerService) Run(ctx context.Context, interval time.Duration) {
	p.log.Infow("poller_started", "interval", interval.String())
	defer p.log.Infow("poller_stopped")

	p.tick(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()

	var lastPrune time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			p.tick(ctx)
			if p.cfg.Retention > 0 && now.Sub(lastPrune) >= p.cfg.PruneEvery {
				p.prune(ctx)
				lastPrune = now
			}
		}
	}
}

func (p *PollerService) tick(ctx context.Context) {
	if err := p.thermostat.Refresh(ctx); err != nil {
		p.log.Debugw("poll_failed", "err", err)
	}
}

func (p *PollerService) prune(ctx context.Context) {
	if p.events == nil {
		return
	}
	n, err := p.events.Prune(ctx, p.cfg.Retention)
	if err != nil {
		p.log.Warnw("event_prune_failed", "err", err)
		return
	}
	if n > 0 {
		p.log.Infow("events_pruned", "count", n)
	}
}

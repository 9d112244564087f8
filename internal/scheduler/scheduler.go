// Package scheduler implements the poll-driven ongoing-sync trigger named
// by an adapter's syncConfig.pollIntervalMinutes (spec.md §6): the engine
// itself never streams, so something has to tick and call
// StartOngoingSync on each adapter's own cadence. This is the one
// tick-driven component in an otherwise message-driven engine, kept
// separate from the queue worker rather than folded into it.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/orchestrator"
	"github.com/acme/crm-telephony-sync/pkg/logger"
)

// IntegrationLister enumerates the integrations eligible for polling.
type IntegrationLister interface {
	ListEnabled(ctx context.Context) ([]string, error)
}

// Config governs the poller's own tick cadence, independent of any single
// adapter's pollIntervalMinutes (which only gates whether a given
// integration is due on a given tick).
type Config struct {
	TickInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Minute
	}
	return c
}

// Poller ticks on Config.TickInterval and, for every ENABLED integration
// whose adapter reports it is due (now >= lastTriggered +
// pollIntervalMinutes), calls StartOngoingSync. Due-ness is tracked
// in-memory per scheduler process; running more than one replica simply
// means an integration may be triggered more than once per window, which
// startOngoingSync's idempotent mapping upserts tolerate (spec.md §5, §9).
type Poller struct {
	integrations IntegrationLister
	adapters     crm.Resolver
	orchestrator Orchestrator
	cfg          Config
	log          *logger.Logger

	lastRun map[string]time.Time
}

// Orchestrator is the narrow surface the poller needs from
// internal/orchestrator.Orchestrator.
type Orchestrator interface {
	StartOngoingSync(ctx context.Context, integrationID, userID string, adapter crm.Adapter) (orchestrator.StartResult, error)
}

func New(integrations IntegrationLister, adapters crm.Resolver, orch Orchestrator, cfg Config, log *logger.Logger) *Poller {
	return &Poller{
		integrations: integrations,
		adapters:     adapters,
		orchestrator: orch,
		cfg:          cfg.withDefaults(),
		log:          log,
		lastRun:      map[string]time.Time{},
	}
}

// Run blocks, ticking until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		p.tick(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	ids, err := p.integrations.ListEnabled(ctx)
	if err != nil {
		if p.log != nil {
			p.log.Error("scheduler: list enabled integrations", zap.Error(err))
		}
		return
	}

	now := time.Now().UTC()
	for _, integrationID := range ids {
		adapter, err := p.adapters.Resolve(ctx, integrationID)
		if err != nil {
			if p.log != nil {
				p.log.WithIntegration(integrationID).Warn("scheduler: resolve adapter", zap.Error(err))
			}
			continue
		}

		interval := time.Duration(adapter.Config().PollIntervalMinutes) * time.Minute
		if interval <= 0 {
			continue
		}

		last, seen := p.lastRun[integrationID]
		if seen && now.Sub(last) < interval {
			continue
		}

		result, err := p.orchestrator.StartOngoingSync(ctx, integrationID, "", adapter)
		if err != nil {
			if p.log != nil {
				p.log.WithIntegration(integrationID).Error("scheduler: start ongoing sync", zap.Error(err))
			}
			continue
		}

		p.lastRun[integrationID] = now
		if p.log != nil {
			p.log.WithIntegration(integrationID).Info("scheduler: ongoing sync triggered",
				zap.Duration("poll_interval", interval), zap.Int("processes", len(result.ProcessIDs)))
		}
	}
}

// Package orchestrator seeds one Process and one initial queue message per
// person object type, then gets out of the way — the pagination engine
// drives every subsequent step.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/domain"
	"github.com/acme/crm-telephony-sync/internal/queue"
	"github.com/acme/crm-telephony-sync/internal/store/process"
	"github.com/acme/crm-telephony-sync/pkg/logger"
)

// Config governs orchestrator-level defaults (SPEC_FULL.md §5.3).
type Config struct {
	DefaultDeltaLookback time.Duration
}

type Orchestrator struct {
	processes ProcessStore
	queue     Queue
	queueURL  string
	cfg       Config
	log       *logger.Logger
}

func New(processes ProcessStore, q Queue, queueURL string, cfg Config, log *logger.Logger) *Orchestrator {
	if cfg.DefaultDeltaLookback <= 0 {
		cfg.DefaultDeltaLookback = 24 * time.Hour
	}
	return &Orchestrator{processes: processes, queue: q, queueURL: queueURL, cfg: cfg, log: log}
}

// StartResult is the handle returned to the caller: one Process per synced
// person object type.
type StartResult struct {
	ProcessIDs []string
}

// StartInitialSync creates one Process per person object type in
// INITIALIZING with syncType=INITIAL and enqueues the seed
// FETCH_PERSON_PAGE message for each.
func (o *Orchestrator) StartInitialSync(ctx context.Context, integrationID, userID string, adapter crm.Adapter) (StartResult, error) {
	return o.start(ctx, integrationID, userID, adapter, domain.SyncTypeInitial, nil)
}

// StartOngoingSync is the same seeding, but syncType=DELTA and with a
// computed modifiedSince watermark: the updatedAt of the most recent prior
// COMPLETED process for the same (integration, type), or now-24h when none
// exists.
func (o *Orchestrator) StartOngoingSync(ctx context.Context, integrationID, userID string, adapter crm.Adapter) (StartResult, error) {
	return o.start(ctx, integrationID, userID, adapter, domain.SyncTypeDelta, o.watermark)
}

type watermarkFunc func(ctx context.Context, integrationID, objectType string) (time.Time, error)

func (o *Orchestrator) start(ctx context.Context, integrationID, userID string, adapter crm.Adapter, syncType domain.SyncType, watermark watermarkFunc) (StartResult, error) {
	cfg := adapter.Config()
	types := adapter.PersonObjectTypes()
	if len(types) == 0 {
		return StartResult{}, fmt.Errorf("orchestrator: adapter has no person object types")
	}

	batchSize := cfg.InitialBatchSize
	if syncType == domain.SyncTypeDelta {
		batchSize = cfg.OngoingBatchSize
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	result := StartResult{}
	for _, pt := range types {
		var modifiedSince *time.Time
		if watermark != nil {
			ts, err := watermark(ctx, integrationID, pt.CRMObjectName)
			if err != nil {
				return StartResult{}, fmt.Errorf("orchestrator: watermark for %s: %w", pt.CRMObjectName, err)
			}
			modifiedSince = &ts
		}

		proc, err := o.processes.Create(ctx, process.CreateParams{
			IntegrationID:    integrationID,
			UserID:           userID,
			Name:             fmt.Sprintf("%s sync: %s", syncType, pt.CRMObjectName),
			SyncType:         syncType,
			PersonObjectType: pt.CRMObjectName,
			PageSize:         batchSize,
		})
		if err != nil {
			return StartResult{}, fmt.Errorf("orchestrator: create process: %w", err)
		}

		msg := queue.FetchPersonPageMessage{
			ProcessID:        proc.ID.String(),
			PersonObjectType: pt.CRMObjectName,
			Limit:            batchSize,
			ModifiedSince:    modifiedSince,
			SortDesc:         cfg.ReverseChronological,
		}
		if cfg.PaginationType == crm.PaginationPageBased {
			page := 0
			msg.Page = &page
		}

		if err := o.queue.Send(ctx, o.queueURL, queue.Message{Event: queue.EventFetchPersonPage, Body: msg}); err != nil {
			return StartResult{}, fmt.Errorf("orchestrator: enqueue seed fetch: %w", err)
		}

		if o.log != nil {
			o.log.WithProcess(proc.ID.String()).Info("sync started")
		}
		result.ProcessIDs = append(result.ProcessIDs, proc.ID.String())
	}

	return result, nil
}

// watermark resolves modifiedSince for a delta sync: the updatedAt of the
// most recent COMPLETED process for (integrationID, objectType), or
// now-DefaultDeltaLookback when none exists.
func (o *Orchestrator) watermark(ctx context.Context, integrationID, objectType string) (time.Time, error) {
	procs, err := o.processes.GetByIntegration(ctx, integrationID, objectType, 20)
	if err != nil {
		return time.Time{}, err
	}
	for _, p := range procs {
		if p.State == domain.ProcessStateCompleted {
			return p.UpdatedAt, nil
		}
	}
	return time.Now().UTC().Add(-o.cfg.DefaultDeltaLookback), nil
}

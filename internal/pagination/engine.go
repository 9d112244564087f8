// Package pagination drives a sync run page by page: on each
// FETCH_PERSON_PAGE dequeue it fetches a page, updates Process state,
// dispatches records to the upsert loop, and either fans out or enqueues the
// next step.
package pagination

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/domain"
	"github.com/acme/crm-telephony-sync/internal/queue"
	syncengine "github.com/acme/crm-telephony-sync/internal/sync"
	"github.com/acme/crm-telephony-sync/pkg/logger"
	"github.com/google/uuid"
)

// Config governs fan-out chunking and the completion-barrier retry bound.
type Config struct {
	FanOutChunkSize    int
	MaxConcurrentFlush int
	MaxCompleteRetries int
	CompleteRetryDelay time.Duration
	MaxBatchRedeliveries int
}

func (c Config) withDefaults() Config {
	if c.FanOutChunkSize <= 0 {
		c.FanOutChunkSize = 100
	}
	if c.MaxConcurrentFlush <= 0 {
		c.MaxConcurrentFlush = 4
	}
	if c.MaxCompleteRetries <= 0 {
		c.MaxCompleteRetries = 5
	}
	if c.CompleteRetryDelay <= 0 {
		c.CompleteRetryDelay = 10 * time.Second
	}
	if c.MaxBatchRedeliveries <= 0 {
		c.MaxBatchRedeliveries = 5
	}
	return c
}

// Engine drives both pagination strategies.
type Engine struct {
	processes   ProcessStore
	queue       Queue
	queueURL    string
	adapters    crm.Resolver
	reconciler  *syncengine.Reconciler
	cfg         Config
	log         *logger.Logger
}

func New(processes ProcessStore, q Queue, queueURL string, adapters crm.Resolver, reconciler *syncengine.Reconciler, cfg Config, log *logger.Logger) *Engine {
	return &Engine{
		processes:  processes,
		queue:      q,
		queueURL:   queueURL,
		adapters:   adapters,
		reconciler: reconciler,
		cfg:        cfg.withDefaults(),
		log:        log,
	}
}

// HandleFetchPersonPage dequeues one FETCH_PERSON_PAGE message and dispatches
// to the strategy selected by the integration's adapter config.
func (e *Engine) HandleFetchPersonPage(ctx context.Context, msg queue.FetchPersonPageMessage) error {
	procID, err := uuid.Parse(msg.ProcessID)
	if err != nil {
		return fmt.Errorf("pagination: invalid processId: %w", err)
	}

	proc, err := e.processes.GetByID(ctx, procID)
	if err != nil {
		return fmt.Errorf("pagination: load process: %w", err)
	}
	if proc.State == domain.ProcessStateFailed {
		// Out-of-band cancellation: short-circuit, no further work.
		return nil
	}

	adapter, err := e.adapters.Resolve(ctx, proc.IntegrationID)
	if err != nil {
		return fmt.Errorf("pagination: resolve adapter: %w", err)
	}

	switch adapter.Config().PaginationType {
	case crm.PaginationCursorBased:
		return e.cursorStep(ctx, proc, adapter, msg)
	default:
		return e.pageStep(ctx, proc, adapter, msg)
	}
}

// pageStep walks the PAGE_BASED strategy: fetch a page, fan out once the
// total is known, dispatch a batch for whatever this page returned.
func (e *Engine) pageStep(ctx context.Context, proc *domain.Process, adapter crm.Adapter, msg queue.FetchPersonPageMessage) error {
	page := 0
	if msg.Page != nil {
		page = *msg.Page
	}

	// Step 1: transition to FETCHING_TOTAL, guarded so redelivered or
	// fanned-out page messages (already past INITIALIZING) don't attempt an
	// illegal transition back.
	if page == 0 && proc.State == domain.ProcessStateInitializing {
		if err := e.processes.UpdateState(ctx, proc.ID, domain.ProcessStateFetchingTotal); err != nil {
			return fmt.Errorf("pagination: transition to fetching_total: %w", err)
		}
	}

	result, err := adapter.FetchPersonPage(ctx, crm.FetchPageParams{
		ObjectType:    proc.Context.PersonObjectType,
		Page:          &page,
		Limit:         msg.Limit,
		ModifiedSince: msg.ModifiedSince,
		SortDesc:      msg.SortDesc,
	})
	if err != nil {
		_ = e.processes.HandleError(ctx, proc.ID, domain.ErrorDetail{
			Error:      fmt.Sprintf("fetchPersonPage page %d: %v", page, err),
			OccurredAt: time.Now().UTC(),
		}, false)
		return err // propagate: queue redelivers
	}

	if page == 0 && result.Total > 0 {
		if err := e.fanOut(ctx, proc, msg, result.Total); err != nil {
			return err
		}
	}

	if len(result.Data) > 0 {
		ids := personIDs(result.Data)
		total := len(ids)
		batchMsg := queue.ProcessPersonBatchMessage{
			ProcessID:    proc.ID.String(),
			CRMPersonIDs: ids,
			Page:         &page,
			TotalInPage:  &total,
		}
		if err := e.queue.Send(ctx, e.queueURL, queue.Message{Event: queue.EventProcessPersonBatch, Body: batchMsg}); err != nil {
			return fmt.Errorf("pagination: enqueue process batch: %w", err)
		}
	}

	return e.pageTermination(ctx, proc, page, msg.Limit, result)
}

// fanOut computes totalPages from the first page's reported total, persists
// it, then enqueues pages 1..totalPages-1. Guarded against duplicate fan-out
// on redelivery by re-checking the Process is still in FETCHING_TOTAL before
// moving to QUEUING_PAGES.
func (e *Engine) fanOut(ctx context.Context, proc *domain.Process, seed queue.FetchPersonPageMessage, total int) error {
	limit := seed.Limit
	if limit <= 0 {
		limit = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(limit)))

	if err := e.processes.UpdateTotal(ctx, proc.ID, total, totalPages); err != nil {
		return fmt.Errorf("pagination: update total: %w", err)
	}

	current, err := e.processes.GetByID(ctx, proc.ID)
	if err != nil {
		return fmt.Errorf("pagination: reload process: %w", err)
	}
	if current.State != domain.ProcessStateFetchingTotal {
		// Another delivery already fanned out; redelivery-safe no-op.
		return nil
	}

	if err := e.processes.UpdateState(ctx, proc.ID, domain.ProcessStateQueuingPages); err != nil {
		return fmt.Errorf("pagination: transition to queuing_pages: %w", err)
	}

	messages := make([]queue.Message, 0, totalPages-1)
	for p := 1; p < totalPages; p++ {
		p := p
		m := queue.FetchPersonPageMessage{
			ProcessID:        proc.ID.String(),
			PersonObjectType: seed.PersonObjectType,
			Page:             &p,
			Limit:            seed.Limit,
			ModifiedSince:    seed.ModifiedSince,
			SortDesc:         seed.SortDesc,
		}
		messages = append(messages, queue.Message{Event: queue.EventFetchPersonPage, Body: m})
	}
	for start := 0; start < len(messages); start += e.cfg.FanOutChunkSize {
		end := start + e.cfg.FanOutChunkSize
		if end > len(messages) {
			end = len(messages)
		}
		if err := e.queue.BatchSend(ctx, e.queueURL, messages[start:end], e.cfg.MaxConcurrentFlush); err != nil {
			return fmt.Errorf("pagination: fan out pages: %w", err)
		}
	}

	if err := e.processes.UpdateState(ctx, proc.ID, domain.ProcessStateProcessingBatches); err != nil {
		return fmt.Errorf("pagination: transition to processing_batches: %w", err)
	}
	return nil
}

// pageTermination decides whether this page ends the walk. When a total is
// known (reported with this page, or persisted by the page-0 fan-out), page
// totalPages-1 enqueues COMPLETE_SYNC. Otherwise it applies the short-page
// heuristic: an empty first page, or a later page shorter than the
// requested limit, signals the walk is done.
func (e *Engine) pageTermination(ctx context.Context, proc *domain.Process, page, limit int, result crm.FetchPageResult) error {
	total := result.Total
	if total <= 0 {
		total = proc.Context.TotalRecords
	}
	if total > 0 {
		pageLimit := limit
		if pageLimit <= 0 {
			pageLimit = 1
		}
		if page == int(math.Ceil(float64(total)/float64(pageLimit)))-1 {
			return e.enqueueComplete(ctx, proc.ID.String())
		}
		return nil
	}
	noTotalKnown := total <= 0

	switch {
	case page == 0 && noTotalKnown && len(result.Data) == 0:
		return e.enqueueComplete(ctx, proc.ID.String())
	case page > 0 && noTotalKnown && len(result.Data) < limit:
		return e.enqueueComplete(ctx, proc.ID.String())
	}
	return nil
}

func (e *Engine) enqueueComplete(ctx context.Context, processID string) error {
	msg := queue.CompleteSyncMessage{ProcessID: processID}
	if err := e.queue.Send(ctx, e.queueURL, queue.Message{Event: queue.EventCompleteSync, Body: msg}); err != nil {
		return fmt.Errorf("pagination: enqueue complete_sync: %w", err)
	}
	return nil
}

func personIDs(people []crm.Person) []string {
	ids := make([]string, 0, len(people))
	for _, p := range people {
		ids = append(ids, p.ID)
	}
	return ids
}

package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/domain"
	"github.com/acme/crm-telephony-sync/internal/queue"
	"github.com/acme/crm-telephony-sync/internal/store/process"
	syncengine "github.com/acme/crm-telephony-sync/internal/sync"
)

// HandleProcessPersonBatch hydrates, transforms and upserts one PAGE_BASED
// batch of person IDs, then records the outcome on the Process. receiveCount
// is the queue redelivery count; a batch whose FetchPersonsByIds call fails
// after more than MaxBatchRedeliveries deliveries is recorded as a fatal
// error instead of retried indefinitely. Transform and bulk-upsert failures
// are not counted against that bound: they are recorded as non-fatal and
// returned for redelivery every time.
func (e *Engine) HandleProcessPersonBatch(ctx context.Context, msg queue.ProcessPersonBatchMessage, receiveCount int) error {
	procID, err := uuid.Parse(msg.ProcessID)
	if err != nil {
		return fmt.Errorf("pagination: invalid processId: %w", err)
	}

	proc, err := e.processes.GetByID(ctx, procID)
	if err != nil {
		return fmt.Errorf("pagination: load process: %w", err)
	}
	if proc.State == domain.ProcessStateFailed {
		return nil
	}

	adapter, err := e.adapters.Resolve(ctx, proc.IntegrationID)
	if err != nil {
		return fmt.Errorf("pagination: resolve adapter: %w", err)
	}

	people, err := adapter.FetchPersonsByIds(ctx, proc.Context.PersonObjectType, msg.CRMPersonIDs)
	if err != nil {
		if receiveCount > e.cfg.MaxBatchRedeliveries {
			_ = e.processes.HandleError(ctx, proc.ID, domain.ErrorDetail{
				Error:      fmt.Sprintf("batch abandoned after %d redeliveries: %v", receiveCount, err),
				OccurredAt: time.Now().UTC(),
			}, true)
			return nil // drop: further redelivery would loop forever
		}
		_ = e.processes.HandleError(ctx, proc.ID, domain.ErrorDetail{
			Error:      fmt.Sprintf("fetchPersonsByIds: %v", err),
			OccurredAt: time.Now().UTC(),
		}, false)
		return fmt.Errorf("pagination: fetch persons by ids: %w", err)
	}

	contacts, err := crm.TransformPersonsToQuo(ctx, adapter, people)
	if err != nil {
		_ = e.processes.HandleError(ctx, proc.ID, domain.ErrorDetail{
			Error:      fmt.Sprintf("transformPersonsToQuo: %v", err),
			OccurredAt: time.Now().UTC(),
		}, false)
		return fmt.Errorf("pagination: transform persons: %w", err)
	}

	result, err := e.reconciler.BulkUpsert(ctx, contacts)
	if err != nil {
		_ = e.processes.HandleError(ctx, proc.ID, domain.ErrorDetail{
			Error:      fmt.Sprintf("bulkUpsertToQuo: %v", err),
			OccurredAt: time.Now().UTC(),
		}, false)
		return fmt.Errorf("pagination: bulk upsert: %w", err)
	}

	return e.processes.UpdateMetrics(ctx, proc.ID, processStoreDelta(result))
}

func processStoreDelta(result syncengine.BulkResult) process.MetricsDelta {
	return process.MetricsDelta{
		Processed:    result.SuccessCount + result.ErrorCount,
		Success:      result.SuccessCount,
		Errors:       result.ErrorCount,
		ErrorDetails: result.Errors,
	}
}

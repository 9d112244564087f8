package pagination

import (
	"fmt"
	"time"

	"context"

	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/domain"
	"github.com/acme/crm-telephony-sync/internal/queue"
)

// cursorStep implements the CURSOR_BASED strategy: fetch, track running
// totals in the metadata bag, process inline, then enqueue the next cursor
// or signal completion.
func (e *Engine) cursorStep(ctx context.Context, proc *domain.Process, adapter crm.Adapter, msg queue.FetchPersonPageMessage) error {
	if proc.State == domain.ProcessStateInitializing {
		if err := e.processes.UpdateState(ctx, proc.ID, domain.ProcessStateFetchingPage); err != nil {
			return fmt.Errorf("pagination: transition to fetching_page: %w", err)
		}
	}

	result, err := adapter.FetchPersonPage(ctx, crm.FetchPageParams{
		ObjectType:    proc.Context.PersonObjectType,
		Cursor:        msg.Cursor,
		Limit:         msg.Limit,
		ModifiedSince: msg.ModifiedSince,
		SortDesc:      msg.SortDesc,
	})
	if err != nil {
		_ = e.processes.HandleError(ctx, proc.ID, domain.ErrorDetail{
			Error:      fmt.Sprintf("fetchPersonPage cursor=%v: %v", derefStr(msg.Cursor), err),
			OccurredAt: time.Now().UTC(),
		}, false)
		return err
	}

	if msg.Cursor == nil && len(result.Data) == 0 {
		if err := e.processes.UpdateTotal(ctx, proc.ID, 0, 0); err != nil {
			return err
		}
		return e.enqueueComplete(ctx, proc.ID.String())
	}

	meta, err := e.processes.GetMetadata(ctx, proc.ID)
	if err != nil {
		return fmt.Errorf("pagination: load metadata: %w", err)
	}
	cm := metadataToCursor(meta)
	cm.TotalFetched += len(result.Data)
	cm.PageCount++
	if result.NextCursor != nil {
		cm.LastCursor = *result.NextCursor
	}

	if err := e.processes.UpdateMetadata(ctx, proc.ID, cursorToMetadata(cm)); err != nil {
		return fmt.Errorf("pagination: update metadata: %w", err)
	}

	if cm.PageCount == 1 {
		if err := e.processes.UpdateTotal(ctx, proc.ID, cm.TotalFetched, 1); err != nil {
			return err
		}
		if err := e.processes.UpdateState(ctx, proc.ID, domain.ProcessStateProcessingBatches); err != nil {
			return fmt.Errorf("pagination: transition to processing_batches: %w", err)
		}
	} else {
		if err := e.processes.UpdateTotal(ctx, proc.ID, cm.TotalFetched, cm.PageCount); err != nil {
			return err
		}
	}

	// Processing errors are recorded but must not abort the cursor walk —
	// the next cursor is still enqueued (spec.md §4.4.2 step 6).
	if err := e.processInline(ctx, proc, adapter, result.Data); err != nil {
		_ = e.processes.HandleError(ctx, proc.ID, domain.ErrorDetail{
			Error:      fmt.Sprintf("processInline cursor=%v: %v", derefStr(msg.Cursor), err),
			OccurredAt: time.Now().UTC(),
		}, false)
	}

	if result.HasMore && result.NextCursor != nil {
		next := queue.FetchPersonPageMessage{
			ProcessID:        proc.ID.String(),
			PersonObjectType: msg.PersonObjectType,
			Cursor:           result.NextCursor,
			Limit:            msg.Limit,
			ModifiedSince:    msg.ModifiedSince,
			SortDesc:         msg.SortDesc,
		}
		if err := e.queue.Send(ctx, e.queueURL, queue.Message{Event: queue.EventFetchPersonPage, Body: next}); err != nil {
			return fmt.Errorf("pagination: enqueue next cursor page: %w", err)
		}
		return nil
	}

	return e.enqueueComplete(ctx, proc.ID.String())
}

// processInline hydrates full records when the adapter only returns IDs,
// transforms them, upserts downstream, and applies metrics in one shot —
// the CURSOR_BASED strategy has no separate batch-processing message.
func (e *Engine) processInline(ctx context.Context, proc *domain.Process, adapter crm.Adapter, people []crm.Person) error {
	if len(people) == 0 {
		return nil
	}

	if !adapter.Config().ReturnFullRecords {
		ids := personIDs(people)
		full, err := adapter.FetchPersonsByIds(ctx, proc.Context.PersonObjectType, ids)
		if err != nil {
			return fmt.Errorf("pagination: fetch persons by ids: %w", err)
		}
		people = full
	}

	contacts, err := crm.TransformPersonsToQuo(ctx, adapter, people)
	if err != nil {
		return fmt.Errorf("pagination: transform persons: %w", err)
	}

	result, err := e.reconciler.BulkUpsert(ctx, contacts)
	if err != nil {
		return fmt.Errorf("pagination: bulk upsert: %w", err)
	}

	return e.processes.UpdateMetrics(ctx, proc.ID, processStoreDelta(result))
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func metadataToCursor(meta map[string]any) domain.CursorMetadata {
	var cm domain.CursorMetadata
	switch v := meta["totalFetched"].(type) {
	case float64:
		cm.TotalFetched = int(v)
	case int:
		cm.TotalFetched = v
	}
	switch v := meta["pageCount"].(type) {
	case float64:
		cm.PageCount = int(v)
	case int:
		cm.PageCount = v
	}
	if v, ok := meta["lastCursor"].(string); ok {
		cm.LastCursor = v
	}
	return cm
}

func cursorToMetadata(cm domain.CursorMetadata) map[string]any {
	return map[string]any{
		"totalFetched": cm.TotalFetched,
		"pageCount":    cm.PageCount,
		"lastCursor":   cm.LastCursor,
	}
}

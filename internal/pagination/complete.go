package pagination

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/acme/crm-telephony-sync/internal/queue"
)

// HandleCompleteSync finalizes a Process. Because PAGE_BASED fans pages out
// in parallel, COMPLETE_SYNC can arrive before every batch has posted its
// metrics. When the total is known and not yet reached, the message is
// re-enqueued with a short delay instead of completing early; after
// MaxCompleteRetries attempts it completes regardless so a stuck adapter
// doesn't wedge the Process forever.
func (e *Engine) HandleCompleteSync(ctx context.Context, msg queue.CompleteSyncMessage, attempt int) error {
	procID, err := uuid.Parse(msg.ProcessID)
	if err != nil {
		return fmt.Errorf("pagination: invalid processId: %w", err)
	}

	proc, err := e.processes.GetByID(ctx, procID)
	if err != nil {
		return fmt.Errorf("pagination: load process: %w", err)
	}
	if proc.State.Terminal() {
		return nil
	}

	total := proc.Context.TotalRecords
	processed := proc.Context.ProcessedRecords
	notYetDone := total > 0 && processed < total

	if notYetDone && attempt < e.cfg.MaxCompleteRetries {
		delay := e.cfg.CompleteRetryDelay
		if err := e.queue.Send(ctx, e.queueURL, queue.Message{
			Event: queue.EventCompleteSync,
			Body:  msg,
			Delay: &delay,
		}); err != nil {
			return fmt.Errorf("pagination: re-enqueue complete_sync: %w", err)
		}
		return nil
	}

	return e.processes.CompleteProcess(ctx, procID)
}

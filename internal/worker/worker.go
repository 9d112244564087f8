// Package worker runs the stateless queue-worker pool named in SPEC_FULL.md
// §5: long-poll the queue, dispatch each message by its event discriminant
// to the component that owns it, delete on success, and let the queue's own
// visibility timeout redeliver on failure. Workers are bounded only by
// maxConcurrency; a single Process is routinely mutated by many concurrent
// deliveries, so every handler downstream of here is written to be safe
// under that.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/acme/crm-telephony-sync/internal/activity"
	"github.com/acme/crm-telephony-sync/internal/lifecycle"
	"github.com/acme/crm-telephony-sync/internal/pagination"
	"github.com/acme/crm-telephony-sync/internal/queue"
	"github.com/acme/crm-telephony-sync/pkg/logger"
)

// Config governs the poll loop: how many messages to long-poll per
// Receive, how long to wait, the per-message visibility timeout, and how
// many deliveries may be handled concurrently.
type Config struct {
	QueueURL           string
	MaxMessages        int32
	WaitSeconds        int32
	VisibilityTimeout  int32
	MaxConcurrency     int
	HandlerTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxMessages <= 0 {
		c.MaxMessages = 10
	}
	if c.WaitSeconds <= 0 {
		c.WaitSeconds = 20
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 120
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 8
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 600 * time.Second
	}
	return c
}

// Dispatcher routes a dequeued message to the component that owns its
// event. It holds no Process-scoped state of its own — every handler
// re-resolves whatever it needs from the message's processId/integrationId,
// per spec.md §9's "cyclic concerns -> message passing" redesign note.
type Dispatcher struct {
	pagination *pagination.Engine
	lifecycle  *lifecycle.Manager
	activity   *activity.Consumer
	queue      *queue.Client
	cfg        Config
	log        *logger.Logger
}

func New(pag *pagination.Engine, lc *lifecycle.Manager, act *activity.Consumer, q *queue.Client, cfg Config, log *logger.Logger) *Dispatcher {
	return &Dispatcher{pagination: pag, lifecycle: lc, activity: act, queue: q, cfg: cfg.withDefaults(), log: log}
}

// Run long-polls the queue until ctx is canceled, fanning each batch of
// received messages out to Dispatch with MaxConcurrency in flight at once.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		messages, err := d.queue.Receive(ctx, d.cfg.QueueURL, d.cfg.MaxMessages, d.cfg.WaitSeconds, d.cfg.VisibilityTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.log != nil {
				d.log.Error("worker: receive failed", zap.Error(err))
			}
			continue
		}
		if len(messages) == 0 {
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.cfg.MaxConcurrency)
		for _, m := range messages {
			m := m
			g.Go(func() error {
				d.handleOne(gctx, m)
				return nil
			})
		}
		_ = g.Wait()
	}
}

// handleOne dispatches a single delivery under its own wall-clock budget
// and deletes it on success. A handler error is logged and left for the
// queue to redeliver; it is not propagated further since one bad message
// must not interrupt the rest of the batch.
func (d *Dispatcher) handleOne(ctx context.Context, m queue.ReceivedMessage) {
	hctx, cancel := context.WithTimeout(ctx, d.cfg.HandlerTimeout)
	defer cancel()

	if err := d.Dispatch(hctx, m); err != nil {
		if d.log != nil {
			d.log.Error("worker: handler failed, leaving for redelivery", zap.Error(err))
		}
		return
	}

	if err := d.queue.Delete(ctx, d.cfg.QueueURL, m.ReceiptHandle); err != nil {
		if d.log != nil {
			d.log.Error("worker: delete failed", zap.Error(err))
		}
	}
}

// Dispatch decodes one message's event discriminant and routes it to the
// owning component. Unknown events are dropped (logged, not errored) since
// a newer producer's message kind should never wedge an older consumer
// fleet during a rolling deploy.
func (d *Dispatcher) Dispatch(ctx context.Context, m queue.ReceivedMessage) error {
	event, err := queue.DecodeEvent(m.Body)
	if err != nil {
		return err
	}

	switch event {
	case queue.EventFetchPersonPage:
		var msg queue.FetchPersonPageMessage
		if err := queue.DecodeData(m.Body, &msg); err != nil {
			return err
		}
		return d.pagination.HandleFetchPersonPage(ctx, msg)

	case queue.EventProcessPersonBatch:
		var msg queue.ProcessPersonBatchMessage
		if err := queue.DecodeData(m.Body, &msg); err != nil {
			return err
		}
		return d.pagination.HandleProcessPersonBatch(ctx, msg, m.ApproximateReceiveCount)

	case queue.EventCompleteSync:
		var msg queue.CompleteSyncMessage
		if err := queue.DecodeData(m.Body, &msg); err != nil {
			return err
		}
		return d.pagination.HandleCompleteSync(ctx, msg, m.ApproximateReceiveCount)

	case queue.EventPostCreateSetup:
		var msg queue.PostCreateSetupMessage
		if err := queue.DecodeData(m.Body, &msg); err != nil {
			return err
		}
		_, err := d.lifecycle.HandlePostCreateSetup(ctx, msg)
		return err

	case queue.EventLogSMS:
		var msg queue.LogSMSMessage
		if err := queue.DecodeData(m.Body, &msg); err != nil {
			return err
		}
		return d.activity.HandleLogSMS(ctx, msg)

	case queue.EventLogCall:
		var msg queue.LogCallMessage
		if err := queue.DecodeData(m.Body, &msg); err != nil {
			return err
		}
		return d.activity.HandleLogCall(ctx, msg)

	default:
		if d.log != nil {
			d.log.Warn("worker: dropping unknown event", zap.String("event", string(event)))
		}
		return nil
	}
}

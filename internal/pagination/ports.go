package pagination

import (
	"context"

	"github.com/google/uuid"

	"github.com/acme/crm-telephony-sync/internal/domain"
	"github.com/acme/crm-telephony-sync/internal/queue"
	"github.com/acme/crm-telephony-sync/internal/store/process"
)

// ProcessStore is the subset of the Process Store (spec.md §4.2) the
// Pagination Engine drives. Declared here, not in internal/store/process, so
// the engine depends on the capability it needs rather than the concrete
// Postgres implementation — *process.Store satisfies this interface
// unchanged.
type ProcessStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Process, error)
	UpdateState(ctx context.Context, id uuid.UUID, newState domain.ProcessState) error
	UpdateTotal(ctx context.Context, id uuid.UUID, total, totalPages int) error
	UpdateMetrics(ctx context.Context, id uuid.UUID, delta process.MetricsDelta) error
	UpdateMetadata(ctx context.Context, id uuid.UUID, patch map[string]any) error
	GetMetadata(ctx context.Context, id uuid.UUID) (map[string]any, error)
	CompleteProcess(ctx context.Context, id uuid.UUID) error
	HandleError(ctx context.Context, id uuid.UUID, detail domain.ErrorDetail, fatal bool) error
}

// Queue is the subset of the Durable Queue Client (spec.md §4.1) the
// Pagination Engine needs to enqueue the next step.
type Queue interface {
	Send(ctx context.Context, queueURL string, msg queue.Message) error
	BatchSend(ctx context.Context, queueURL string, messages []queue.Message, maxConcurrentFlush int) error
}

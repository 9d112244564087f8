package orchestrator

import (
	"context"

	"github.com/acme/crm-telephony-sync/internal/domain"
	"github.com/acme/crm-telephony-sync/internal/queue"
	"github.com/acme/crm-telephony-sync/internal/store/process"
)

// ProcessStore is the subset of the Process Store the orchestrator needs to
// seed a sync run.
type ProcessStore interface {
	Create(ctx context.Context, p process.CreateParams) (*domain.Process, error)
	GetByIntegration(ctx context.Context, integrationID, personObjectType string, limit int) ([]*domain.Process, error)
}

// Queue is the subset of the Durable Queue Client the orchestrator needs to
// enqueue the seed fetch message.
type Queue interface {
	Send(ctx context.Context, queueURL string, msg queue.Message) error
}

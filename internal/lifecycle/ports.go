package lifecycle

import (
	"context"

	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/domain"
	"github.com/acme/crm-telephony-sync/internal/orchestrator"
	"github.com/acme/crm-telephony-sync/internal/queue"
	"github.com/acme/crm-telephony-sync/internal/webhook"
)

// ConfigStore is the subset of the IntegrationConfig store the lifecycle
// manager needs to read and persist status/webhook fields.
type ConfigStore interface {
	Get(ctx context.Context, integrationID string) (*domain.IntegrationConfig, error)
	Upsert(ctx context.Context, cfg *domain.IntegrationConfig) error
}

// WebhookManager is the subset of the Webhook Subscription Manager the
// POST_CREATE_SETUP handler drives.
type WebhookManager interface {
	FetchPhoneMetadataForIds(ctx context.Context, integrationID string, ids []string) (map[string]domain.PhoneMetadata, error)
	CreateAll(ctx context.Context, integrationID, webhookURL string, phoneIDs []string) (webhook.Result, error)
}

// SyncOrchestrator is the subset of the Sync Orchestrator the
// POST_CREATE_SETUP handler drives.
type SyncOrchestrator interface {
	StartInitialSync(ctx context.Context, integrationID, userID string, adapter crm.Adapter) (orchestrator.StartResult, error)
}

// Queue is the subset of the Durable Queue Client needed to schedule the
// deferred POST_CREATE_SETUP message.
type Queue interface {
	Send(ctx context.Context, queueURL string, msg queue.Message) error
}

// Package lifecycle implements the Integration Lifecycle (spec.md §4.7):
// onCreate marks a newly connected integration NEEDS_CONFIG or ENABLED and,
// once enabled, schedules the deferred POST_CREATE_SETUP message that wires
// up webhooks and kicks off the initial sync.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/domain"
	"github.com/acme/crm-telephony-sync/internal/queue"
	"github.com/acme/crm-telephony-sync/pkg/logger"
)

// Config governs the deferred setup delay (spec.md §4.7: "workaround for
// credential propagation latency in the downstream platform").
type Config struct {
	OnCreateDelay time.Duration
	WebhookURL    string
}

func (c Config) withDefaults() Config {
	if c.OnCreateDelay <= 0 {
		c.OnCreateDelay = 35 * time.Second
	}
	return c
}

// NeedsConfigFunc reports whether an integration still requires manual
// configuration before it can be enabled. It is supplied by the caller
// rather than hard-coded here, since "configuration needed" is a
// per-adapter notion this package has no visibility into.
type NeedsConfigFunc func(ctx context.Context, integrationID string) (bool, error)

type Manager struct {
	integrations ConfigStore
	adapters     crm.Resolver
	webhooks     WebhookManager
	orchestrator SyncOrchestrator
	queue        Queue
	queueURL     string
	needsConfig  NeedsConfigFunc
	cfg          Config
	log          *logger.Logger
}

func New(integrations ConfigStore, adapters crm.Resolver, webhooks WebhookManager, orch SyncOrchestrator, q Queue, queueURL string, needsConfig NeedsConfigFunc, cfg Config, log *logger.Logger) *Manager {
	return &Manager{
		integrations: integrations,
		adapters:     adapters,
		webhooks:     webhooks,
		orchestrator: orch,
		queue:        q,
		queueURL:     queueURL,
		needsConfig:  needsConfig,
		cfg:          cfg.withDefaults(),
		log:          log,
	}
}

// OnCreate implements spec.md §4.7's onCreate: mark NEEDS_CONFIG and stop,
// or mark ENABLED and schedule the deferred POST_CREATE_SETUP message.
func (m *Manager) OnCreate(ctx context.Context, integrationID string) error {
	cfg, err := m.integrations.Get(ctx, integrationID)
	if err != nil {
		return fmt.Errorf("lifecycle: load config: %w", err)
	}

	needsConfig := false
	if m.needsConfig != nil {
		needsConfig, err = m.needsConfig(ctx, integrationID)
		if err != nil {
			return fmt.Errorf("lifecycle: check needs-config: %w", err)
		}
	}

	if needsConfig {
		cfg.Status = domain.IntegrationStatusNeedsConfig
		if err := m.integrations.Upsert(ctx, cfg); err != nil {
			return fmt.Errorf("lifecycle: persist needs-config status: %w", err)
		}
		if m.log != nil {
			m.log.WithIntegration(integrationID).Info("integration needs configuration")
		}
		return nil
	}

	cfg.Status = domain.IntegrationStatusEnabled
	if err := m.integrations.Upsert(ctx, cfg); err != nil {
		return fmt.Errorf("lifecycle: persist enabled status: %w", err)
	}

	delay := m.cfg.OnCreateDelay
	msg := queue.PostCreateSetupMessage{IntegrationID: integrationID}
	if err := m.queue.Send(ctx, m.queueURL, queue.Message{Event: queue.EventPostCreateSetup, Body: msg, Delay: &delay}); err != nil {
		return fmt.Errorf("lifecycle: enqueue post-create setup: %w", err)
	}

	if m.log != nil {
		m.log.WithIntegration(integrationID).Info("integration enabled, post-create setup scheduled", zap.Duration("delay", delay))
	}
	return nil
}

// StepResult is the outcome of one POST_CREATE_SETUP sub-operation: either
// completed with a status, or nil if the step never ran.
type StepResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// SetupResult is the structured result spec.md §4.7 requires:
// {webhooks: {status, ...} | null, initialSync: {status, ...} | null}.
type SetupResult struct {
	Webhooks    *StepResult `json:"webhooks"`
	InitialSync *StepResult `json:"initialSync"`
}

// HandlePostCreateSetup implements the POST_CREATE_SETUP handler: webhook
// setup failure is non-fatal and recorded in the result; startInitialSync
// always runs regardless of the webhook outcome. The handler accepts only
// an integrationId and rehydrates everything else it needs, per spec.md
// §4.7 ("runs without integration hydration").
func (m *Manager) HandlePostCreateSetup(ctx context.Context, msg queue.PostCreateSetupMessage) (SetupResult, error) {
	result := SetupResult{}

	result.Webhooks = m.setupWebhooks(ctx, msg.IntegrationID)
	result.InitialSync = m.startInitialSync(ctx, msg.IntegrationID)

	return result, nil
}

func (m *Manager) setupWebhooks(ctx context.Context, integrationID string) *StepResult {
	if m.webhooks == nil {
		return nil
	}

	cfg, err := m.integrations.Get(ctx, integrationID)
	if err != nil {
		return &StepResult{Status: "failed", Error: err.Error()}
	}
	if len(cfg.EnabledPhoneIDs) == 0 {
		return &StepResult{Status: "skipped"}
	}

	meta, err := m.webhooks.FetchPhoneMetadataForIds(ctx, integrationID, cfg.EnabledPhoneIDs)
	if err != nil {
		m.logWebhookFailure(integrationID, err)
		return &StepResult{Status: "failed", Error: err.Error()}
	}

	createResult, err := m.webhooks.CreateAll(ctx, integrationID, m.cfg.WebhookURL, cfg.EnabledPhoneIDs)
	if err != nil {
		m.logWebhookFailure(integrationID, err)
		return &StepResult{Status: "failed", Error: err.Error()}
	}

	now := time.Now().UTC()
	cfg.PhoneNumbersMetadata = meta
	cfg.PhoneNumbersFetchedAt = &now
	cfg.QuoMessageWebhooks = createResult.Message
	cfg.QuoCallWebhooks = createResult.Call
	cfg.QuoCallSummaryWebhooks = createResult.CallSummary
	cfg.QuoWebhooksCreatedAt = &now
	cfg.StripLegacyFields()

	if err := m.integrations.Upsert(ctx, cfg); err != nil {
		m.logWebhookFailure(integrationID, err)
		return &StepResult{Status: "failed", Error: err.Error()}
	}

	return &StepResult{Status: "completed"}
}

func (m *Manager) logWebhookFailure(integrationID string, err error) {
	if m.log != nil {
		m.log.WithIntegration(integrationID).Warn("post-create webhook setup failed, continuing to initial sync", zap.Error(err))
	}
}

func (m *Manager) startInitialSync(ctx context.Context, integrationID string) *StepResult {
	if m.orchestrator == nil {
		return nil
	}

	adapter, err := m.adapters.Resolve(ctx, integrationID)
	if err != nil {
		return &StepResult{Status: "failed", Error: err.Error()}
	}

	if _, err := m.orchestrator.StartInitialSync(ctx, integrationID, "", adapter); err != nil {
		return &StepResult{Status: "failed", Error: err.Error()}
	}

	return &StepResult{Status: "completed"}
}

package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/domain"
	"github.com/acme/crm-telephony-sync/internal/orchestrator"
	"github.com/acme/crm-telephony-sync/internal/queue"
	"github.com/acme/crm-telephony-sync/internal/webhook"
)

type fakeConfigStore struct {
	cfg       *domain.IntegrationConfig
	upserted  []*domain.IntegrationConfig
	getErr    error
	upsertErr error
}

func (f *fakeConfigStore) Get(ctx context.Context, integrationID string) (*domain.IntegrationConfig, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.cfg == nil {
		return &domain.IntegrationConfig{IntegrationID: integrationID}, nil
	}
	cp := *f.cfg
	return &cp, nil
}

func (f *fakeConfigStore) Upsert(ctx context.Context, cfg *domain.IntegrationConfig) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.cfg = cfg
	f.upserted = append(f.upserted, cfg)
	return nil
}

type fakeQueue struct {
	sent []queue.Message
}

func (q *fakeQueue) Send(ctx context.Context, queueURL string, msg queue.Message) error {
	q.sent = append(q.sent, msg)
	return nil
}

type fakeWebhookManager struct {
	result    webhook.Result
	createErr error
	meta      map[string]domain.PhoneMetadata
	metaErr   error
}

func (f *fakeWebhookManager) FetchPhoneMetadataForIds(ctx context.Context, integrationID string, ids []string) (map[string]domain.PhoneMetadata, error) {
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	return f.meta, nil
}

func (f *fakeWebhookManager) CreateAll(ctx context.Context, integrationID, webhookURL string, phoneIDs []string) (webhook.Result, error) {
	if f.createErr != nil {
		return webhook.Result{}, f.createErr
	}
	return f.result, nil
}

type fakeSyncOrchestrator struct {
	called bool
	err    error
}

func (f *fakeSyncOrchestrator) StartInitialSync(ctx context.Context, integrationID, userID string, adapter crm.Adapter) (orchestrator.StartResult, error) {
	f.called = true
	if f.err != nil {
		return orchestrator.StartResult{}, f.err
	}
	return orchestrator.StartResult{ProcessIDs: []string{"p-1"}}, nil
}

func newManager(configs *fakeConfigStore, q *fakeQueue, webhooks WebhookManager, orch SyncOrchestrator, needsConfig NeedsConfigFunc) *Manager {
	adapter := crm.NewFakeAdapter(crm.SyncConfig{PaginationType: crm.PaginationPageBased}, []crm.PersonObjectType{{CRMObjectName: "contact"}})
	resolver := crm.ResolverFunc(func(ctx context.Context, integrationID string) (crm.Adapter, error) {
		return adapter, nil
	})
	return New(configs, resolver, webhooks, orch, q, "queue-url", needsConfig, Config{OnCreateDelay: time.Second}, nil)
}

func TestOnCreateMarksNeedsConfigAndSkipsEnqueue(t *testing.T) {
	configs := &fakeConfigStore{}
	q := &fakeQueue{}
	needsConfig := func(ctx context.Context, integrationID string) (bool, error) { return true, nil }

	m := newManager(configs, q, nil, nil, needsConfig)
	if err := m.OnCreate(context.Background(), "int-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if configs.cfg.Status != domain.IntegrationStatusNeedsConfig {
		t.Errorf("expected status NEEDS_CONFIG, got %s", configs.cfg.Status)
	}
	if len(q.sent) != 0 {
		t.Errorf("expected no POST_CREATE_SETUP enqueue when config is needed, got %d", len(q.sent))
	}
}

func TestOnCreateEnablesAndSchedulesPostCreateSetup(t *testing.T) {
	configs := &fakeConfigStore{}
	q := &fakeQueue{}
	needsConfig := func(ctx context.Context, integrationID string) (bool, error) { return false, nil }

	m := newManager(configs, q, nil, nil, needsConfig)
	if err := m.OnCreate(context.Background(), "int-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if configs.cfg.Status != domain.IntegrationStatusEnabled {
		t.Errorf("expected status ENABLED, got %s", configs.cfg.Status)
	}
	if len(q.sent) != 1 || q.sent[0].Event != queue.EventPostCreateSetup {
		t.Fatalf("expected one POST_CREATE_SETUP enqueue, got %+v", q.sent)
	}
	if q.sent[0].Delay == nil || *q.sent[0].Delay != time.Second {
		t.Errorf("expected the configured OnCreateDelay to be applied, got %v", q.sent[0].Delay)
	}
}

func TestHandlePostCreateSetupRunsBothStepsRegardlessOfWebhookOutcome(t *testing.T) {
	configs := &fakeConfigStore{cfg: &domain.IntegrationConfig{EnabledPhoneIDs: []string{"phone-1"}}}
	webhooks := &fakeWebhookManager{createErr: errors.New("downstream unavailable")}
	orch := &fakeSyncOrchestrator{}

	m := newManager(configs, &fakeQueue{}, webhooks, orch, nil)

	result, err := m.HandlePostCreateSetup(context.Background(), queue.PostCreateSetupMessage{IntegrationID: "int-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Webhooks == nil || result.Webhooks.Status != "failed" {
		t.Fatalf("expected webhook step to report failed, got %+v", result.Webhooks)
	}
	if result.InitialSync == nil || result.InitialSync.Status != "completed" {
		t.Fatalf("expected initial sync step to still run and complete, got %+v", result.InitialSync)
	}
	if !orch.called {
		t.Errorf("expected StartInitialSync to be called even though webhook setup failed")
	}
}

func TestHandlePostCreateSetupSkipsWebhooksWhenNoPhonesEnabled(t *testing.T) {
	configs := &fakeConfigStore{cfg: &domain.IntegrationConfig{}}
	webhooks := &fakeWebhookManager{}
	orch := &fakeSyncOrchestrator{}

	m := newManager(configs, &fakeQueue{}, webhooks, orch, nil)

	result, err := m.HandlePostCreateSetup(context.Background(), queue.PostCreateSetupMessage{IntegrationID: "int-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Webhooks == nil || result.Webhooks.Status != "skipped" {
		t.Fatalf("expected webhook step to be skipped when no phone ids are enabled, got %+v", result.Webhooks)
	}
}

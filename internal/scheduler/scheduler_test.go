package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/orchestrator"
)

type fakeLister struct {
	ids []string
	err error
}

func (f *fakeLister) ListEnabled(ctx context.Context) ([]string, error) {
	return f.ids, f.err
}

type fakeResolver struct {
	adapters map[string]crm.Adapter
}

func (f *fakeResolver) Resolve(ctx context.Context, integrationID string) (crm.Adapter, error) {
	a, ok := f.adapters[integrationID]
	if !ok {
		return nil, fmt.Errorf("no adapter for %s", integrationID)
	}
	return a, nil
}

type fakeOrchestrator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeOrchestrator) StartOngoingSync(ctx context.Context, integrationID, userID string, adapter crm.Adapter) (orchestrator.StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return orchestrator.StartResult{}, f.err
	}
	f.calls = append(f.calls, integrationID)
	return orchestrator.StartResult{ProcessIDs: []string{"p-" + integrationID}}, nil
}

func newAdapter(pollMinutes int) *crm.FakeAdapter {
	return crm.NewFakeAdapter(crm.SyncConfig{
		PaginationType:      crm.PaginationPageBased,
		PollIntervalMinutes: pollMinutes,
	}, []crm.PersonObjectType{{CRMObjectName: "contact", QuoContactType: "Contact"}})
}

func TestTickTriggersOnFirstSight(t *testing.T) {
	lister := &fakeLister{ids: []string{"int-1"}}
	resolver := &fakeResolver{adapters: map[string]crm.Adapter{"int-1": newAdapter(30)}}
	orch := &fakeOrchestrator{}

	p := New(lister, resolver, orch, Config{}, nil)
	p.tick(context.Background())

	if len(orch.calls) != 1 || orch.calls[0] != "int-1" {
		t.Fatalf("expected one ongoing sync call for int-1, got %v", orch.calls)
	}
}

func TestTickSkipsUntilIntervalElapses(t *testing.T) {
	lister := &fakeLister{ids: []string{"int-1"}}
	resolver := &fakeResolver{adapters: map[string]crm.Adapter{"int-1": newAdapter(30)}}
	orch := &fakeOrchestrator{}

	p := New(lister, resolver, orch, Config{}, nil)
	p.tick(context.Background())
	p.tick(context.Background())

	if len(orch.calls) != 1 {
		t.Fatalf("expected exactly one trigger before the interval elapses, got %d", len(orch.calls))
	}

	p.lastRun["int-1"] = time.Now().UTC().Add(-31 * time.Minute)
	p.tick(context.Background())

	if len(orch.calls) != 2 {
		t.Fatalf("expected a second trigger once the interval elapsed, got %d", len(orch.calls))
	}
}

func TestTickSkipsZeroPollInterval(t *testing.T) {
	lister := &fakeLister{ids: []string{"int-1"}}
	resolver := &fakeResolver{adapters: map[string]crm.Adapter{"int-1": newAdapter(0)}}
	orch := &fakeOrchestrator{}

	p := New(lister, resolver, orch, Config{}, nil)
	p.tick(context.Background())

	if len(orch.calls) != 0 {
		t.Fatalf("expected no trigger for a zero poll interval, got %d", len(orch.calls))
	}
}

func TestTickContinuesPastUnresolvableAdapter(t *testing.T) {
	lister := &fakeLister{ids: []string{"int-missing", "int-1"}}
	resolver := &fakeResolver{adapters: map[string]crm.Adapter{"int-1": newAdapter(30)}}
	orch := &fakeOrchestrator{}

	p := New(lister, resolver, orch, Config{}, nil)
	p.tick(context.Background())

	if len(orch.calls) != 1 || orch.calls[0] != "int-1" {
		t.Fatalf("expected int-1 to still be triggered despite int-missing failing to resolve, got %v", orch.calls)
	}
}

func TestTickListErrorIsNonFatal(t *testing.T) {
	lister := &fakeLister{err: fmt.Errorf("boom")}
	resolver := &fakeResolver{adapters: map[string]crm.Adapter{}}
	orch := &fakeOrchestrator{}

	p := New(lister, resolver, orch, Config{}, nil)
	p.tick(context.Background())

	if len(orch.calls) != 0 {
		t.Fatalf("expected no calls when listing integrations fails, got %d", len(orch.calls))
	}
}

package pagination

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/domain"
	"github.com/acme/crm-telephony-sync/internal/queue"
	syncengine "github.com/acme/crm-telephony-sync/internal/sync"
	telephonymock "github.com/acme/crm-telephony-sync/internal/telephony/mock"
)

type fakeMappingStore struct{}

func (fakeMappingStore) Upsert(ctx context.Context, m domain.ContactMapping) error { return nil }

func (fakeMappingStore) GetByPhoneNumbers(ctx context.Context, phoneNumbers []string) (map[string]domain.ContactMapping, error) {
	return nil, nil
}

func personsWithPhones(n int, prefix string) []crm.Person {
	out := make([]crm.Person, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, crm.Person{
			ID: fmt.Sprintf("%s-%d", prefix, i),
			Fields: map[string]any{
				"firstName": "Test",
				"phone":     fmt.Sprintf("+1555%07d", i),
			},
		})
	}
	return out
}

func newEngine(adapter crm.Adapter, store *fakeProcessStore, q *fakeQueue) *Engine {
	resolver := crm.ResolverFunc(func(ctx context.Context, integrationID string) (crm.Adapter, error) {
		return adapter, nil
	})
	reconciler := syncengine.New(telephonymock.NewProvider(), fakeMappingStore{}, syncengine.Config{ReadBackDelay: time.Microsecond})
	return New(store, q, "queue-url", resolver, reconciler, Config{}, nil)
}

func seedProcess(store *fakeProcessStore, syncType domain.SyncType, objectType string) *domain.Process {
	proc := &domain.Process{
		ID:    uuid.New(),
		State: domain.ProcessStateInitializing,
		Context: domain.ProcessContext{
			SyncType:         syncType,
			PersonObjectType: objectType,
			StartTime:        time.Now().UTC(),
		},
		Metadata: map[string]any{},
	}
	store.seed(proc)
	return proc
}

// S1: PAGE_BASED, total=250, limit=100 -> updateTotal(250,3), fan out pages
// 1 and 2, and one PROCESS_PERSON_BATCH for page 0's 100 records.
func TestPageBasedFirstPageFansOutAndEnqueuesBatch(t *testing.T) {
	adapter := crm.NewFakeAdapter(crm.SyncConfig{
		PaginationType: crm.PaginationPageBased,
		SupportsTotal:  true,
	}, []crm.PersonObjectType{{CRMObjectName: "contact"}})
	adapter.Pages[0] = crm.FetchPageResult{Data: personsWithPhones(100, "p0"), Total: 250}

	store := newFakeProcessStore()
	q := &fakeQueue{}
	proc := seedProcess(store, domain.SyncTypeInitial, "contact")

	engine := newEngine(adapter, store, q)

	page := 0
	msg := queue.FetchPersonPageMessage{ProcessID: proc.ID.String(), Page: &page, Limit: 100}
	if err := engine.HandleFetchPersonPage(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.GetByID(context.Background(), proc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Context.TotalRecords != 250 {
		t.Errorf("expected totalRecords 250, got %d", got.Context.TotalRecords)
	}
	if got.State != domain.ProcessStateProcessingBatches {
		t.Errorf("expected state PROCESSING_BATCHES, got %s", got.State)
	}

	if len(q.batch) != 1 || len(q.batch[0]) != 2 {
		t.Fatalf("expected one fan-out batch of 2 messages, got %v", q.batch)
	}
	for _, m := range q.batch[0] {
		if m.Event != queue.EventFetchPersonPage {
			t.Errorf("expected fan-out messages to be FETCH_PERSON_PAGE, got %s", m.Event)
		}
	}

	events := q.events()
	if len(events) != 1 || events[0] != queue.EventProcessPersonBatch {
		t.Fatalf("expected exactly one PROCESS_PERSON_BATCH send, got %v", events)
	}
	batchMsg, ok := q.sent[0].Body.(queue.ProcessPersonBatchMessage)
	if !ok {
		t.Fatalf("expected ProcessPersonBatchMessage body, got %T", q.sent[0].Body)
	}
	if len(batchMsg.CRMPersonIDs) != 100 {
		t.Errorf("expected batch of 100 ids, got %d", len(batchMsg.CRMPersonIDs))
	}
}

// S2: CURSOR_BASED, 3-page walk totalling 25 records, ending in one
// COMPLETE_SYNC enqueue.
func TestCursorBasedThreePageWalkCompletes(t *testing.T) {
	adapter := crm.NewFakeAdapter(crm.SyncConfig{
		PaginationType:    crm.PaginationCursorBased,
		ReturnFullRecords: true,
	}, []crm.PersonObjectType{{CRMObjectName: "contact"}})

	c1, c2 := "cursor-1", "cursor-2"
	adapter.CursorPages[""] = crm.FetchPageResult{Data: personsWithPhones(10, "a"), HasMore: true, NextCursor: &c1}
	adapter.CursorPages[c1] = crm.FetchPageResult{Data: personsWithPhones(10, "b"), HasMore: true, NextCursor: &c2}
	adapter.CursorPages[c2] = crm.FetchPageResult{Data: personsWithPhones(5, "c"), HasMore: false}

	store := newFakeProcessStore()
	q := &fakeQueue{}
	proc := seedProcess(store, domain.SyncTypeInitial, "contact")

	engine := newEngine(adapter, store, q)
	ctx := context.Background()

	msg := queue.FetchPersonPageMessage{ProcessID: proc.ID.String(), Limit: 10}
	if err := engine.HandleFetchPersonPage(ctx, msg); err != nil {
		t.Fatalf("page 1: %v", err)
	}
	msg.Cursor = &c1
	if err := engine.HandleFetchPersonPage(ctx, msg); err != nil {
		t.Fatalf("page 2: %v", err)
	}
	msg.Cursor = &c2
	if err := engine.HandleFetchPersonPage(ctx, msg); err != nil {
		t.Fatalf("page 3: %v", err)
	}

	meta, err := store.GetMetadata(ctx, proc.ID)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta["totalFetched"] != 25 {
		t.Errorf("expected totalFetched 25, got %v", meta["totalFetched"])
	}
	if meta["pageCount"] != 3 {
		t.Errorf("expected pageCount 3, got %v", meta["pageCount"])
	}

	completeCount := 0
	for _, e := range q.events() {
		if e == queue.EventCompleteSync {
			completeCount++
		}
	}
	if completeCount != 1 {
		t.Errorf("expected exactly one COMPLETE_SYNC enqueue, got %d", completeCount)
	}
}

// Batches that keep failing past MaxBatchRedeliveries are abandoned fatally
// instead of looping forever: the Process must reach FAILED.
func TestBatchAbandonedAfterMaxRedeliveriesFailsProcess(t *testing.T) {
	adapter := crm.NewFakeAdapter(crm.SyncConfig{
		PaginationType: crm.PaginationPageBased,
	}, []crm.PersonObjectType{{CRMObjectName: "contact"}})
	adapter.FetchByIdsErr = fmt.Errorf("crm: rate limited")

	store := newFakeProcessStore()
	q := &fakeQueue{}
	proc := seedProcess(store, domain.SyncTypeInitial, "contact")

	engine := newEngine(adapter, store, q)
	msg := queue.ProcessPersonBatchMessage{ProcessID: proc.ID.String(), CRMPersonIDs: []string{"p0-0"}}

	// Within the redelivery budget: error propagates so the queue redelivers.
	if err := engine.HandleProcessPersonBatch(context.Background(), msg, 1); err == nil {
		t.Fatalf("expected error within redelivery budget, got nil")
	}
	got, err := store.GetByID(context.Background(), proc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State == domain.ProcessStateFailed {
		t.Fatalf("process should not be FAILED before MaxBatchRedeliveries is exceeded")
	}

	// Redelivery count exceeds the budget: batch is dropped, Process fails.
	if err := engine.HandleProcessPersonBatch(context.Background(), msg, 6); err != nil {
		t.Fatalf("expected nil (batch dropped), got %v", err)
	}
	got, err = store.GetByID(context.Background(), proc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State != domain.ProcessStateFailed {
		t.Errorf("expected state FAILED after exceeding MaxBatchRedeliveries, got %s", got.State)
	}
}

// A processing error on one cursor page must not abort the walk: the next
// page is still fetched and enqueued.
func TestCursorWalkContinuesPastProcessingError(t *testing.T) {
	adapter := crm.NewFakeAdapter(crm.SyncConfig{
		PaginationType:    crm.PaginationCursorBased,
		ReturnFullRecords: false,
	}, []crm.PersonObjectType{{CRMObjectName: "contact"}})
	adapter.FetchByIdsErr = fmt.Errorf("crm: lookup failed")

	c1 := "cursor-1"
	adapter.CursorPages[""] = crm.FetchPageResult{Data: personsWithPhones(5, "a"), HasMore: true, NextCursor: &c1}
	adapter.CursorPages[c1] = crm.FetchPageResult{Data: personsWithPhones(5, "b"), HasMore: false}

	store := newFakeProcessStore()
	q := &fakeQueue{}
	proc := seedProcess(store, domain.SyncTypeInitial, "contact")

	engine := newEngine(adapter, store, q)
	ctx := context.Background()

	msg := queue.FetchPersonPageMessage{ProcessID: proc.ID.String(), Limit: 5}
	if err := engine.HandleFetchPersonPage(ctx, msg); err != nil {
		t.Fatalf("page 1: %v", err)
	}

	if len(store.errors) == 0 {
		t.Fatalf("expected the processing error to be recorded via HandleError")
	}

	nextCursorSent := false
	for _, m := range q.sent {
		if m.Event == queue.EventFetchPersonPage {
			nextCursorSent = true
		}
	}
	if !nextCursorSent {
		t.Fatalf("expected the next cursor page to still be enqueued despite the processing error")
	}

	got, err := store.GetByID(ctx, proc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State == domain.ProcessStateFailed {
		t.Errorf("a non-fatal processing error must not fail the process")
	}
}

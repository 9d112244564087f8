package pagination

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/acme/crm-telephony-sync/internal/domain"
	"github.com/acme/crm-telephony-sync/internal/queue"
	"github.com/acme/crm-telephony-sync/internal/store/process"
)

// fakeProcessStore is a minimal in-memory stand-in for internal/store/process,
// checking transitions with the real store's CanTransition table. Unlike the
// real store, its CompleteProcess applies that table directly, so it rejects
// completion from PROCESSING_BATCHES.
type fakeProcessStore struct {
	mu        sync.Mutex
	processes map[uuid.UUID]*domain.Process
	metadata  map[uuid.UUID]map[string]any
	errors    []domain.ErrorDetail
}

func newFakeProcessStore() *fakeProcessStore {
	return &fakeProcessStore{
		processes: map[uuid.UUID]*domain.Process{},
		metadata:  map[uuid.UUID]map[string]any{},
	}
}

func (f *fakeProcessStore) seed(p *domain.Process) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processes[p.ID] = p
	f.metadata[p.ID] = map[string]any{}
}

func (f *fakeProcessStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.processes[id]
	if !ok {
		return nil, context.Canceled
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProcessStore) UpdateState(ctx context.Context, id uuid.UUID, newState domain.ProcessState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.processes[id]
	if !process.CanTransition(p.State, newState) {
		return context.DeadlineExceeded
	}
	p.State = newState
	return nil
}

func (f *fakeProcessStore) UpdateTotal(ctx context.Context, id uuid.UUID, total, totalPages int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.processes[id]
	p.Context.TotalRecords = total
	return nil
}

func (f *fakeProcessStore) UpdateMetrics(ctx context.Context, id uuid.UUID, delta process.MetricsDelta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.processes[id]
	p.Context.ProcessedRecords += delta.Processed
	p.Results.AggregateData.TotalSynced += delta.Success
	p.Results.AggregateData.TotalFailed += delta.Errors
	f.errors = append(f.errors, delta.ErrorDetails...)
	return nil
}

func (f *fakeProcessStore) UpdateMetadata(ctx context.Context, id uuid.UUID, patch map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta := f.metadata[id]
	if meta == nil {
		meta = map[string]any{}
	}
	for k, v := range patch {
		meta[k] = v
	}
	f.metadata[id] = meta
	return nil
}

func (f *fakeProcessStore) GetMetadata(ctx context.Context, id uuid.UUID) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metadata[id], nil
}

func (f *fakeProcessStore) CompleteProcess(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.processes[id]
	if !process.CanTransition(p.State, domain.ProcessStateCompleted) {
		return context.DeadlineExceeded
	}
	p.State = domain.ProcessStateCompleted
	return nil
}

func (f *fakeProcessStore) HandleError(ctx context.Context, id uuid.UUID, detail domain.ErrorDetail, fatal bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, detail)
	if fatal {
		f.processes[id].State = domain.ProcessStateFailed
	}
	return nil
}

// fakeQueue records every Send/BatchSend call instead of reaching SQS.
type fakeQueue struct {
	mu    sync.Mutex
	sent  []queue.Message
	batch [][]queue.Message
}

func (q *fakeQueue) Send(ctx context.Context, queueURL string, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, msg)
	return nil
}

func (q *fakeQueue) BatchSend(ctx context.Context, queueURL string, messages []queue.Message, maxConcurrentFlush int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.batch = append(q.batch, messages)
	return nil
}

func (q *fakeQueue) events() []queue.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queue.Event
	for _, m := range q.sent {
		out = append(out, m.Event)
	}
	return out
}

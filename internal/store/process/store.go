// Package process implements the Process Store (spec.md §4.2): create/read/
// update operations on the durable Process record that tracks one sync run.
// Grounded on the teacher's internal/repository/postgres/campaign_repository.go
// (sqlx NamedExec, *Record <-> domain split) and internal/repository/postgres/tx.go.
package process

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/crm-telephony-sync/internal/domain"
	apperrors "github.com/acme/crm-telephony-sync/pkg/errors"
)

// Store persists Process records in PostgreSQL. Counters are mutated with
// `SET col = col + $delta` so that concurrent queue workers (spec.md §5)
// never race on a read-modify-write cycle in Go.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// CreateParams seeds a new Process in INITIALIZING.
type CreateParams struct {
	IntegrationID    string
	UserID           string
	Name             string
	SyncType         domain.SyncType
	PersonObjectType string
	PageSize         int
}

// Create inserts a new Process in INITIALIZING state.
func (s *Store) Create(ctx context.Context, p CreateParams) (*domain.Process, error) {
	now := time.Now().UTC()
	proc := &domain.Process{
		ID:            uuid.New(),
		IntegrationID: p.IntegrationID,
		UserID:        p.UserID,
		Name:          p.Name,
		Type:          domain.ProcessTypeCRMSync,
		State:         domain.ProcessStateInitializing,
		Context: domain.ProcessContext{
			SyncType:         p.SyncType,
			PersonObjectType: p.PersonObjectType,
			Pagination: domain.PaginationState{
				PageSize: p.PageSize,
			},
			StartTime: now,
		},
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	rec, err := toRecord(proc)
	if err != nil {
		return nil, fmt.Errorf("process store: encode: %w", err)
	}

	q := `INSERT INTO sync_processes (
		id, integration_id, user_id, name, type, state, sync_type, person_object_type,
		total_records, processed_records, total_synced, total_failed, total_pages, current_page,
		pagination, start_time, duration_ms, records_per_second, errors, metadata, created_at, updated_at
	) VALUES (
		:id, :integration_id, :user_id, :name, :type, :state, :sync_type, :person_object_type,
		:total_records, :processed_records, :total_synced, :total_failed, :total_pages, :current_page,
		:pagination, :start_time, :duration_ms, :records_per_second, :errors, :metadata, :created_at, :updated_at
	)`

	if _, err := s.db.NamedExecContext(ctx, q, rec); err != nil {
		return nil, fmt.Errorf("process store: insert: %w", err)
	}

	return proc, nil
}

// GetByID fetches a Process by id.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Process, error) {
	row := s.db.QueryRowxContext(ctx, selectColumns+` WHERE id = $1`, id)

	var rec processRecord
	if err := row.StructScan(&rec); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("process store: get: %w", err)
	}
	return rec.toDomain()
}

// GetByIntegration lists the most recent processes for an (integration,
// personObjectType) pair, newest first. Backs startOngoingSync's watermark
// lookup; no HTTP route exposes it.
func (s *Store) GetByIntegration(ctx context.Context, integrationID, personObjectType string, limit int) ([]*domain.Process, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryxContext(ctx,
		selectColumns+` WHERE integration_id = $1 AND person_object_type = $2 ORDER BY created_at DESC LIMIT $3`,
		integrationID, personObjectType, limit)
	if err != nil {
		return nil, fmt.Errorf("process store: get by integration: %w", err)
	}
	defer rows.Close()

	var out []*domain.Process
	for rows.Next() {
		var rec processRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("process store: scan: %w", err)
		}
		p, err := rec.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("process store: rows err: %w", err)
	}
	return out, nil
}

// UpdateState moves a Process to newState, rejecting illegal transitions
// (spec.md §3 invariant "state transitions only follow the state machine").
func (s *Store) UpdateState(ctx context.Context, id uuid.UUID, newState domain.ProcessState) error {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(current.State, newState) {
		return fmt.Errorf("process store: %s -> %s: %w", current.State, newState, apperrors.ErrIllegalTransition)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_processes SET state = $1, updated_at = $2 WHERE id = $3`,
		string(newState), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("process store: update state: %w", err)
	}
	return requireRowsAffected(res)
}

// UpdateTotal records the total record count and page count discovered on
// the first page. Idempotent: always sets (not adds to) the total, so
// redelivery of the first FETCH_PERSON_PAGE message is safe (spec.md §5).
func (s *Store) UpdateTotal(ctx context.Context, id uuid.UUID, total, totalPages int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_processes SET total_records = $1, total_pages = $2, updated_at = $3 WHERE id = $4`,
		total, totalPages, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("process store: update total: %w", err)
	}
	return requireRowsAffected(res)
}

// MetricsDelta is an additive update applied via Postgres `col = col + $n`.
type MetricsDelta struct {
	Processed    int
	Success      int
	Errors       int
	ErrorDetails []domain.ErrorDetail
}

// UpdateMetrics additively applies processed/success/error counters and
// appends (capped at domain.MaxErrorDetails) error details.
func (s *Store) UpdateMetrics(ctx context.Context, id uuid.UUID, delta MetricsDelta) error {
	return s.applyMetrics(ctx, id, delta.Processed, delta.Success, delta.Errors, delta.ErrorDetails)
}

func (s *Store) applyMetrics(ctx context.Context, id uuid.UUID, processed, success, errs int, details []domain.ErrorDetail) error {
	newErrorsJSON, err := s.appendErrors(ctx, id, details)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_processes SET
			processed_records = processed_records + $1,
			total_synced = total_synced + $2,
			total_failed = total_failed + $3,
			errors = $4,
			updated_at = $5
		 WHERE id = $6`,
		processed, success, errs, newErrorsJSON, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("process store: update metrics: %w", err)
	}
	return requireRowsAffected(res)
}

// appendErrors reads the current errors[] (outside a transaction — a benign
// race under heavy concurrency that can drop an entry is acceptable, since
// errors[] is a capped diagnostic view, not the accounting source of truth;
// the additive counters above are what invariant 8.1 actually checks),
// appends, and truncates to the last domain.MaxErrorDetails.
func (s *Store) appendErrors(ctx context.Context, id uuid.UUID, details []domain.ErrorDetail) ([]byte, error) {
	if len(details) == 0 {
		var existing []byte
		if err := s.db.GetContext(ctx, &existing, `SELECT errors FROM sync_processes WHERE id = $1`, id); err != nil {
			if err == sql.ErrNoRows {
				return nil, apperrors.ErrNotFound
			}
			return nil, fmt.Errorf("process store: read errors: %w", err)
		}
		return existing, nil
	}

	var existingJSON []byte
	if err := s.db.GetContext(ctx, &existingJSON, `SELECT errors FROM sync_processes WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("process store: read errors: %w", err)
	}

	var current []domain.ErrorDetail
	if len(existingJSON) > 0 {
		if err := json.Unmarshal(existingJSON, &current); err != nil {
			return nil, fmt.Errorf("process store: decode errors: %w", err)
		}
	}

	current = append(current, details...)
	if len(current) > domain.MaxErrorDetails {
		current = current[len(current)-domain.MaxErrorDetails:]
	}

	out, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("process store: encode errors: %w", err)
	}
	return out, nil
}

// UpdateMetadata merges patch into the free-form metadata bag (used by the
// CURSOR_BASED strategy for totalFetched/pageCount/lastCursor).
func (s *Store) UpdateMetadata(ctx context.Context, id uuid.UUID, patch map[string]any) error {
	current, err := s.GetMetadata(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		current = map[string]any{}
	}
	for k, v := range patch {
		current[k] = v
	}

	encoded, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("process store: encode metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_processes SET metadata = $1, updated_at = $2 WHERE id = $3`,
		encoded, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("process store: update metadata: %w", err)
	}
	return requireRowsAffected(res)
}

// GetMetadata returns the current metadata bag.
func (s *Store) GetMetadata(ctx context.Context, id uuid.UUID) (map[string]any, error) {
	var raw []byte
	if err := s.db.GetContext(ctx, &raw, `SELECT metadata FROM sync_processes WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("process store: get metadata: %w", err)
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("process store: decode metadata: %w", err)
	}
	return meta, nil
}

// CompleteProcess transitions a Process to COMPLETED and stamps duration and
// recordsPerSecond. Per spec.md §5, late-arriving COMPLETE_SYNC in a fanned
// out PAGE_BASED run is tolerated: the caller (internal/pagination) decides
// whether to re-enqueue instead of completing; once this is called, the
// stamp always applies regardless of whether every batch has in fact
// finished (spec.md §9).
func (s *Store) CompleteProcess(ctx context.Context, id uuid.UUID) error {
	proc, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if proc.State == domain.ProcessStateCompleted {
		return nil // idempotent: already completed
	}
	// CanTransition only allows the single COMPLETING -> COMPLETED hop;
	// CompleteProcess is the handler that performs PROCESSING_BATCHES ->
	// COMPLETING -> COMPLETED in one commit, so both sources are valid here.
	if proc.State != domain.ProcessStateProcessingBatches && !CanTransition(proc.State, domain.ProcessStateCompleted) {
		return fmt.Errorf("process store: complete from %s: %w", proc.State, apperrors.ErrIllegalTransition)
	}

	now := time.Now().UTC()
	duration := now.Sub(proc.Context.StartTime)
	var rps float64
	if duration > 0 {
		rps = float64(proc.Results.AggregateData.TotalSynced) / duration.Seconds()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_processes SET state = $1, duration_ms = $2, records_per_second = $3, updated_at = $4 WHERE id = $5`,
		string(domain.ProcessStateCompleted), duration.Milliseconds(), rps, now, id)
	if err != nil {
		return fmt.Errorf("process store: complete: %w", err)
	}
	return requireRowsAffected(res)
}

// HandleError appends one error detail and increments totalFailed.
// Transitions to FAILED only when fatal is true; otherwise the Process
// state is left untouched so the sync can continue on subsequent pages
// (spec.md §4.2).
func (s *Store) HandleError(ctx context.Context, id uuid.UUID, detail domain.ErrorDetail, fatal bool) error {
	if err := s.applyMetrics(ctx, id, 0, 0, 1, []domain.ErrorDetail{detail}); err != nil {
		return err
	}
	if !fatal {
		return nil
	}
	return s.UpdateState(ctx, id, domain.ProcessStateFailed)
}

func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("process store: rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

const selectColumns = `SELECT id, integration_id, user_id, name, type, state, sync_type, person_object_type,
	total_records, processed_records, total_synced, total_failed, total_pages, current_page,
	pagination, start_time, duration_ms, records_per_second, errors, metadata, created_at, updated_at
	FROM sync_processes`

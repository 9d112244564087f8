package process

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acme/crm-telephony-sync/internal/domain"
)

// processRecord is the storage row shape; Process is the domain shape.
type processRecord struct {
	ID               uuid.UUID      `db:"id"`
	IntegrationID    string         `db:"integration_id"`
	UserID           string         `db:"user_id"`
	Name             string         `db:"name"`
	Type             string         `db:"type"`
	State            string         `db:"state"`
	SyncType         string         `db:"sync_type"`
	PersonObjectType string         `db:"person_object_type"`
	TotalRecords     int            `db:"total_records"`
	ProcessedRecords int            `db:"processed_records"`
	TotalSynced      int            `db:"total_synced"`
	TotalFailed      int            `db:"total_failed"`
	TotalPages       int            `db:"total_pages"`
	CurrentPage      int            `db:"current_page"`
	Pagination       []byte         `db:"pagination"`
	StartTime        time.Time      `db:"start_time"`
	DurationMs       int64          `db:"duration_ms"`
	RecordsPerSecond float64        `db:"records_per_second"`
	Errors           []byte         `db:"errors"`
	Metadata         []byte         `db:"metadata"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func toRecord(p *domain.Process) (*processRecord, error) {
	pagination, err := json.Marshal(p.Context.Pagination)
	if err != nil {
		return nil, err
	}
	errs, err := json.Marshal(p.Results.AggregateData.Errors)
	if err != nil {
		return nil, err
	}
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, err
	}

	return &processRecord{
		ID:               p.ID,
		IntegrationID:    p.IntegrationID,
		UserID:           p.UserID,
		Name:             p.Name,
		Type:             string(p.Type),
		State:            string(p.State),
		SyncType:         string(p.Context.SyncType),
		PersonObjectType: p.Context.PersonObjectType,
		TotalRecords:     p.Context.TotalRecords,
		ProcessedRecords: p.Context.ProcessedRecords,
		TotalSynced:      p.Results.AggregateData.TotalSynced,
		TotalFailed:      p.Results.AggregateData.TotalFailed,
		TotalPages:       0,
		CurrentPage:      p.Context.CurrentPage,
		Pagination:       pagination,
		StartTime:        p.Context.StartTime,
		DurationMs:       p.Results.AggregateData.Duration.Milliseconds(),
		RecordsPerSecond: p.Results.AggregateData.RecordsPerSecond,
		Errors:           errs,
		Metadata:         meta,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}, nil
}

func (r processRecord) toDomain() (*domain.Process, error) {
	var pagination domain.PaginationState
	if len(r.Pagination) > 0 {
		if err := json.Unmarshal(r.Pagination, &pagination); err != nil {
			return nil, fmt.Errorf("process store: decode pagination: %w", err)
		}
	}
	var errs []domain.ErrorDetail
	if len(r.Errors) > 0 {
		if err := json.Unmarshal(r.Errors, &errs); err != nil {
			return nil, fmt.Errorf("process store: decode error details: %w", err)
		}
	}
	var meta map[string]any
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &meta); err != nil {
			return nil, fmt.Errorf("process store: decode metadata: %w", err)
		}
	} else {
		meta = map[string]any{}
	}

	return &domain.Process{
		ID:            r.ID,
		IntegrationID: r.IntegrationID,
		UserID:        r.UserID,
		Name:          r.Name,
		Type:          domain.ProcessType(r.Type),
		State:         domain.ProcessState(r.State),
		Context: domain.ProcessContext{
			SyncType:         domain.SyncType(r.SyncType),
			PersonObjectType: r.PersonObjectType,
			TotalRecords:     r.TotalRecords,
			ProcessedRecords: r.ProcessedRecords,
			CurrentPage:      r.CurrentPage,
			Pagination:       pagination,
			StartTime:        r.StartTime,
		},
		Results: domain.ProcessResults{
			AggregateData: domain.AggregateData{
				TotalSynced:      r.TotalSynced,
				TotalFailed:      r.TotalFailed,
				Duration:         time.Duration(r.DurationMs) * time.Millisecond,
				RecordsPerSecond: r.RecordsPerSecond,
				Errors:           errs,
			},
		},
		Metadata:  meta,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

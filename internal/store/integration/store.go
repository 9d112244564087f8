// Package integration persists IntegrationConfig and implements the
// deep-merge PATCH semantics and legacy-field migration the webhook
// subscription manager's update flow needs.
package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/acme/crm-telephony-sync/internal/domain"
	apperrors "github.com/acme/crm-telephony-sync/pkg/errors"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type record struct {
	IntegrationID          string         `db:"integration_id"`
	Status                 sql.NullString `db:"status"`
	EnabledPhoneIDs        []byte         `db:"enabled_phone_ids"`
	PhoneNumbersMetadata    []byte         `db:"phone_numbers_metadata"`
	PhoneNumbersFetchedAt  sql.NullTime   `db:"phone_numbers_fetched_at"`
	QuoMessageWebhooks     []byte         `db:"quo_message_webhooks"`
	QuoCallWebhooks        []byte         `db:"quo_call_webhooks"`
	QuoCallSummaryWebhooks []byte         `db:"quo_call_summary_webhooks"`
	LegacyMessageWebhookID     sql.NullString `db:"quo_message_webhook_id"`
	LegacyMessageWebhookKey    sql.NullString `db:"quo_message_webhook_key"`
	LegacyCallWebhookID        sql.NullString `db:"quo_call_webhook_id"`
	LegacyCallWebhookKey       sql.NullString `db:"quo_call_webhook_key"`
	LegacyCallSummaryWebhookID  sql.NullString `db:"quo_call_summary_webhook_id"`
	LegacyCallSummaryWebhookKey sql.NullString `db:"quo_call_summary_webhook_key"`
	QuoWebhooksCreatedAt   sql.NullTime   `db:"quo_webhooks_created_at"`
	UpdatedAt              time.Time      `db:"updated_at"`
}

const selectColumns = `SELECT integration_id, status, enabled_phone_ids, phone_numbers_metadata, phone_numbers_fetched_at,
	quo_message_webhooks, quo_call_webhooks, quo_call_summary_webhooks,
	quo_message_webhook_id, quo_message_webhook_key,
	quo_call_webhook_id, quo_call_webhook_key,
	quo_call_summary_webhook_id, quo_call_summary_webhook_key,
	quo_webhooks_created_at, updated_at
	FROM integration_configs`

// Get fetches an IntegrationConfig, returning a zero-value config (not an
// error) when none exists yet — new integrations have no row until the
// first onUpdate or webhook creation.
func (s *Store) Get(ctx context.Context, integrationID string) (*domain.IntegrationConfig, error) {
	row := s.db.QueryRowxContext(ctx, selectColumns+` WHERE integration_id = $1`, integrationID)
	var rec record
	if err := row.StructScan(&rec); err != nil {
		if err == sql.ErrNoRows {
			return &domain.IntegrationConfig{IntegrationID: integrationID}, nil
		}
		return nil, fmt.Errorf("integration store: get: %w", err)
	}
	return rec.toDomain()
}

// Upsert writes the full config, overwriting any prior row.
func (s *Store) Upsert(ctx context.Context, cfg *domain.IntegrationConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	rec, err := toRecord(cfg)
	if err != nil {
		return fmt.Errorf("integration store: encode: %w", err)
	}

	q := `INSERT INTO integration_configs (
		integration_id, status, enabled_phone_ids, phone_numbers_metadata, phone_numbers_fetched_at,
		quo_message_webhooks, quo_call_webhooks, quo_call_summary_webhooks,
		quo_message_webhook_id, quo_message_webhook_key,
		quo_call_webhook_id, quo_call_webhook_key,
		quo_call_summary_webhook_id, quo_call_summary_webhook_key,
		quo_webhooks_created_at, updated_at
	) VALUES (
		:integration_id, :status, :enabled_phone_ids, :phone_numbers_metadata, :phone_numbers_fetched_at,
		:quo_message_webhooks, :quo_call_webhooks, :quo_call_summary_webhooks,
		:quo_message_webhook_id, :quo_message_webhook_key,
		:quo_call_webhook_id, :quo_call_webhook_key,
		:quo_call_summary_webhook_id, :quo_call_summary_webhook_key,
		:quo_webhooks_created_at, :updated_at
	) ON CONFLICT (integration_id) DO UPDATE SET
		status = EXCLUDED.status,
		enabled_phone_ids = EXCLUDED.enabled_phone_ids,
		phone_numbers_metadata = EXCLUDED.phone_numbers_metadata,
		phone_numbers_fetched_at = EXCLUDED.phone_numbers_fetched_at,
		quo_message_webhooks = EXCLUDED.quo_message_webhooks,
		quo_call_webhooks = EXCLUDED.quo_call_webhooks,
		quo_call_summary_webhooks = EXCLUDED.quo_call_summary_webhooks,
		quo_message_webhook_id = EXCLUDED.quo_message_webhook_id,
		quo_message_webhook_key = EXCLUDED.quo_message_webhook_key,
		quo_call_webhook_id = EXCLUDED.quo_call_webhook_id,
		quo_call_webhook_key = EXCLUDED.quo_call_webhook_key,
		quo_call_summary_webhook_id = EXCLUDED.quo_call_summary_webhook_id,
		quo_call_summary_webhook_key = EXCLUDED.quo_call_summary_webhook_key,
		quo_webhooks_created_at = EXCLUDED.quo_webhooks_created_at,
		updated_at = EXCLUDED.updated_at`

	if _, err := s.db.NamedExecContext(ctx, q, rec); err != nil {
		return fmt.Errorf("integration store: upsert: %w", err)
	}
	return nil
}

// ListEnabled returns the integration IDs currently marked ENABLED, for the
// poll-driven ongoing-sync scheduler (SPEC_FULL.md §6 cmd/scheduler).
func (s *Store) ListEnabled(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT integration_id FROM integration_configs WHERE status = $1`, string(domain.IntegrationStatusEnabled))
	if err != nil {
		return nil, fmt.Errorf("integration store: list enabled: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("integration store: scan enabled: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ErrNotFound re-exported for callers that need to distinguish "no config
// yet" (Get never returns this) from other failures.
var ErrNotFound = apperrors.ErrNotFound

func toRecord(cfg *domain.IntegrationConfig) (*record, error) {
	enabledPhoneIDs, err := json.Marshal(cfg.EnabledPhoneIDs)
	if err != nil {
		return nil, err
	}
	phoneMeta, err := json.Marshal(cfg.PhoneNumbersMetadata)
	if err != nil {
		return nil, err
	}
	msgWh, err := json.Marshal(cfg.QuoMessageWebhooks)
	if err != nil {
		return nil, err
	}
	callWh, err := json.Marshal(cfg.QuoCallWebhooks)
	if err != nil {
		return nil, err
	}
	summaryWh, err := json.Marshal(cfg.QuoCallSummaryWebhooks)
	if err != nil {
		return nil, err
	}

	rec := &record{
		IntegrationID:          cfg.IntegrationID,
		EnabledPhoneIDs:        enabledPhoneIDs,
		PhoneNumbersMetadata:   phoneMeta,
		QuoMessageWebhooks:     msgWh,
		QuoCallWebhooks:        callWh,
		QuoCallSummaryWebhooks: summaryWh,
		UpdatedAt:              cfg.UpdatedAt,
	}
	if cfg.Status != "" {
		rec.Status = sql.NullString{String: string(cfg.Status), Valid: true}
	}
	if cfg.PhoneNumbersFetchedAt != nil {
		rec.PhoneNumbersFetchedAt = sql.NullTime{Time: *cfg.PhoneNumbersFetchedAt, Valid: true}
	}
	if cfg.QuoWebhooksCreatedAt != nil {
		rec.QuoWebhooksCreatedAt = sql.NullTime{Time: *cfg.QuoWebhooksCreatedAt, Valid: true}
	}
	if cfg.LegacyMessageWebhookID != "" {
		rec.LegacyMessageWebhookID = sql.NullString{String: cfg.LegacyMessageWebhookID, Valid: true}
	}
	if cfg.LegacyMessageWebhookKey != "" {
		rec.LegacyMessageWebhookKey = sql.NullString{String: cfg.LegacyMessageWebhookKey, Valid: true}
	}
	if cfg.LegacyCallWebhookID != "" {
		rec.LegacyCallWebhookID = sql.NullString{String: cfg.LegacyCallWebhookID, Valid: true}
	}
	if cfg.LegacyCallWebhookKey != "" {
		rec.LegacyCallWebhookKey = sql.NullString{String: cfg.LegacyCallWebhookKey, Valid: true}
	}
	if cfg.LegacyCallSummaryWebhookID != "" {
		rec.LegacyCallSummaryWebhookID = sql.NullString{String: cfg.LegacyCallSummaryWebhookID, Valid: true}
	}
	if cfg.LegacyCallSummaryWebhookKey != "" {
		rec.LegacyCallSummaryWebhookKey = sql.NullString{String: cfg.LegacyCallSummaryWebhookKey, Valid: true}
	}
	return rec, nil
}

func (r record) toDomain() (*domain.IntegrationConfig, error) {
	cfg := &domain.IntegrationConfig{IntegrationID: r.IntegrationID, UpdatedAt: r.UpdatedAt}
	if r.Status.Valid {
		cfg.Status = domain.IntegrationStatus(r.Status.String)
	}

	if len(r.EnabledPhoneIDs) > 0 {
		if err := json.Unmarshal(r.EnabledPhoneIDs, &cfg.EnabledPhoneIDs); err != nil {
			return nil, fmt.Errorf("integration store: decode enabled_phone_ids: %w", err)
		}
	}
	if len(r.PhoneNumbersMetadata) > 0 {
		if err := json.Unmarshal(r.PhoneNumbersMetadata, &cfg.PhoneNumbersMetadata); err != nil {
			return nil, fmt.Errorf("integration store: decode phone_numbers_metadata: %w", err)
		}
	}
	if len(r.QuoMessageWebhooks) > 0 {
		if err := json.Unmarshal(r.QuoMessageWebhooks, &cfg.QuoMessageWebhooks); err != nil {
			return nil, fmt.Errorf("integration store: decode quo_message_webhooks: %w", err)
		}
	}
	if len(r.QuoCallWebhooks) > 0 {
		if err := json.Unmarshal(r.QuoCallWebhooks, &cfg.QuoCallWebhooks); err != nil {
			return nil, fmt.Errorf("integration store: decode quo_call_webhooks: %w", err)
		}
	}
	if len(r.QuoCallSummaryWebhooks) > 0 {
		if err := json.Unmarshal(r.QuoCallSummaryWebhooks, &cfg.QuoCallSummaryWebhooks); err != nil {
			return nil, fmt.Errorf("integration store: decode quo_call_summary_webhooks: %w", err)
		}
	}
	if r.PhoneNumbersFetchedAt.Valid {
		cfg.PhoneNumbersFetchedAt = &r.PhoneNumbersFetchedAt.Time
	}
	if r.QuoWebhooksCreatedAt.Valid {
		cfg.QuoWebhooksCreatedAt = &r.QuoWebhooksCreatedAt.Time
	}
	cfg.LegacyMessageWebhookID = r.LegacyMessageWebhookID.String
	cfg.LegacyMessageWebhookKey = r.LegacyMessageWebhookKey.String
	cfg.LegacyCallWebhookID = r.LegacyCallWebhookID.String
	cfg.LegacyCallWebhookKey = r.LegacyCallWebhookKey.String
	cfg.LegacyCallSummaryWebhookID = r.LegacyCallSummaryWebhookID.String
	cfg.LegacyCallSummaryWebhookKey = r.LegacyCallSummaryWebhookKey.String

	return cfg, nil
}

// Package mapping implements the ContactMapping store (spec.md §3): a
// phone-number-keyed identity link between an upstream CRM contact and a
// downstream Quo contact. Grounded on the teacher's
// internal/repository/scylla/call_store.go (gocql query construction,
// WithContext, scan-into-struct), simplified to a single un-bucketed table
// since lookups are always single-key by phone number (no time-bucketing
// needed, unlike the teacher's high-volume call log).
package mapping

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"github.com/acme/crm-telephony-sync/internal/domain"
)

type Store struct {
	session *gocql.Session
}

func New(session *gocql.Session) *Store {
	return &Store{session: session}
}

// Upsert writes a ContactMapping keyed by phone number. Scylla's
// INSERT-is-upsert semantics give last-writer-wins for free (spec.md §3
// invariant "exactly one mapping per phone number; last-writer-wins").
func (s *Store) Upsert(ctx context.Context, m domain.ContactMapping) error {
	if m.PhoneNumber == "" {
		return fmt.Errorf("mapping store: phone number required")
	}
	if m.LastSyncedAt.IsZero() {
		m.LastSyncedAt = time.Now().UTC()
	}

	err := s.session.Query(`INSERT INTO contact_mappings_by_phone
		(phone_number, external_id, quo_contact_id, entity_type, last_synced_at, sync_method, action)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.PhoneNumber, m.ExternalID, m.QuoContactID, m.EntityType, m.LastSyncedAt, string(m.SyncMethod), string(m.Action),
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("mapping store: upsert: %w", err)
	}
	return nil
}

// Get fetches the mapping for a phone number, or (nil, nil) if none exists.
func (s *Store) Get(ctx context.Context, phoneNumber string) (*domain.ContactMapping, error) {
	var (
		externalID   string
		quoContactID string
		entityType   string
		lastSynced   time.Time
		syncMethod   string
		action       string
	)

	err := s.session.Query(`SELECT external_id, quo_contact_id, entity_type, last_synced_at, sync_method, action
		FROM contact_mappings_by_phone WHERE phone_number = ?`, phoneNumber).
		WithContext(ctx).Scan(&externalID, &quoContactID, &entityType, &lastSynced, &syncMethod, &action)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("mapping store: get: %w", err)
	}

	return &domain.ContactMapping{
		PhoneNumber:  phoneNumber,
		ExternalID:   externalID,
		QuoContactID: quoContactID,
		EntityType:   entityType,
		LastSyncedAt: lastSynced,
		SyncMethod:   domain.SyncMethod(syncMethod),
		Action:       domain.MappingAction(action),
	}, nil
}

// GetByPhoneNumbers batches Get across phone numbers for reconciliation
// paths that need to know which phone numbers already have a mapping (e.g.
// to report bulk-upsert Action as created vs updated, spec.md §3). Scylla
// has no secondary index here (single-partition-key table), so this issues
// one query per number. The bulk-upsert caller passes every phone number
// found in one bulk-upsert batch.
func (s *Store) GetByPhoneNumbers(ctx context.Context, phoneNumbers []string) (map[string]domain.ContactMapping, error) {
	out := make(map[string]domain.ContactMapping, len(phoneNumbers))
	for _, phone := range phoneNumbers {
		m, err := s.Get(ctx, phone)
		if err != nil {
			return nil, err
		}
		if m != nil {
			out[phone] = *m
		}
	}
	return out, nil
}

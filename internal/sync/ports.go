package sync

import (
	"context"

	"github.com/acme/crm-telephony-sync/internal/domain"
)

// MappingStore is the subset of the ContactMapping store (spec.md §3) the
// reconciler needs to persist upsert outcomes and to tell, before writing,
// whether a mapping already exists for a phone number (so bulk upsert can
// report Action = created vs updated instead of always "created").
type MappingStore interface {
	Upsert(ctx context.Context, m domain.ContactMapping) error
	GetByPhoneNumbers(ctx context.Context, phoneNumbers []string) (map[string]domain.ContactMapping, error)
}

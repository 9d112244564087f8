// Package telephony models the downstream Quo telephony platform's RPC
// surface as a narrow interface, independent of any concrete HTTP client.
package telephony

import (
	"context"
	"time"

	"github.com/acme/crm-telephony-sync/internal/crm"
)

// Contact is the downstream-side contact record, as read back from
// listContacts / returned by create/update.
type Contact struct {
	ID          string
	ExternalID  string
	PhoneNumber string
	Fields      map[string]any
}

// PhoneNumber is one downstream phone-number resource.
type PhoneNumber struct {
	ID          string
	PhoneNumber string
	Label       string
}

// WebhookSubscription is the downstream's view of one created subscription.
type WebhookSubscription struct {
	ID  string
	Key string
}

// ListContactsParams filters listContacts; ExternalIDs is capped by the
// downstream's array-parameter limit (20, enforced by callers in
// internal/sync, not here).
type ListContactsParams struct {
	ExternalIDs []string
	MaxResults  int
}

// ListPhoneNumbersParams caps at 100 results (enforced by callers in
// internal/webhook).
type ListPhoneNumbersParams struct {
	MaxResults int
}

// CreateWebhookParams is the shared shape for the three webhook-create RPCs.
type CreateWebhookParams struct {
	URL         string
	Events      []string
	Label       string
	ResourceIDs []string
}

// Provider is the full opaque RPC surface the core consumes on the
// downstream platform.
type Provider interface {
	BulkCreateContacts(ctx context.Context, contacts []crm.QuoContact) error
	ListContacts(ctx context.Context, params ListContactsParams) ([]Contact, error)
	CreateFriggContact(ctx context.Context, contact crm.QuoContact) (Contact, error)
	UpdateFriggContact(ctx context.Context, id string, contact crm.QuoContact) (Contact, error)
	ListPhoneNumbers(ctx context.Context, params ListPhoneNumbersParams) ([]PhoneNumber, error)
	CreateMessageWebhook(ctx context.Context, params CreateWebhookParams) (WebhookSubscription, error)
	CreateCallWebhook(ctx context.Context, params CreateWebhookParams) (WebhookSubscription, error)
	CreateCallSummaryWebhook(ctx context.Context, params CreateWebhookParams) (WebhookSubscription, error)
	DeleteWebhook(ctx context.Context, id string) error
}

// ReadBackDelay is how long BulkCreateContacts-then-listContacts callers
// should wait before the read-back is expected to observe newly created
// contacts. Exposed here as a named constant default; internal/sync.Config
// carries the configurable value actually used.
const ReadBackDelay = time.Second

// Package mock provides a deterministic in-memory Provider used by
// internal/sync and internal/webhook tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/telephony"
)

// Provider is an in-memory fake of the downstream telephony platform.
type Provider struct {
	mu sync.Mutex

	contactsByExternalID map[string]telephony.Contact
	nextContactID        int

	PhoneNumbers []telephony.PhoneNumber

	nextWebhookID int
	Webhooks      map[string]telephony.WebhookSubscription
	DeletedIDs    []string

	// BulkCreateErr, when set, is returned by BulkCreateContacts instead of
	// creating anything.
	BulkCreateErr error

	// MissingExternalIDs lists externalIds that should NOT appear in
	// ListContacts after a bulk create, simulating partial read-back.
	MissingExternalIDs map[string]bool

	// FailOnCreate, keyed by "<kind>:<resourceIds>" (the kind, a colon, and
	// the resource ID slice formatted with %v), makes the matching
	// Create*Webhook call fail the first time it's invoked.
	FailOnCreate map[string]bool
}

func NewProvider() *Provider {
	return &Provider{
		contactsByExternalID: map[string]telephony.Contact{},
		Webhooks:             map[string]telephony.WebhookSubscription{},
		MissingExternalIDs:   map[string]bool{},
		FailOnCreate:         map[string]bool{},
	}
}

func (p *Provider) BulkCreateContacts(ctx context.Context, contacts []crm.QuoContact) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.BulkCreateErr != nil {
		return p.BulkCreateErr
	}
	for _, c := range contacts {
		if p.MissingExternalIDs[c.ExternalID] {
			continue
		}
		p.nextContactID++
		p.contactsByExternalID[c.ExternalID] = telephony.Contact{
			ID:          fmt.Sprintf("quo-%d", p.nextContactID),
			ExternalID:  c.ExternalID,
			PhoneNumber: c.PhoneNumber,
		}
	}
	return nil
}

func (p *Provider) ListContacts(ctx context.Context, params telephony.ListContactsParams) ([]telephony.Contact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]telephony.Contact, 0, len(params.ExternalIDs))
	for _, id := range params.ExternalIDs {
		if c, ok := p.contactsByExternalID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (p *Provider) CreateFriggContact(ctx context.Context, contact crm.QuoContact) (telephony.Contact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextContactID++
	c := telephony.Contact{
		ID:          fmt.Sprintf("quo-%d", p.nextContactID),
		ExternalID:  contact.ExternalID,
		PhoneNumber: contact.PhoneNumber,
	}
	p.contactsByExternalID[contact.ExternalID] = c
	return c, nil
}

func (p *Provider) UpdateFriggContact(ctx context.Context, id string, contact crm.QuoContact) (telephony.Contact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := telephony.Contact{ID: id, ExternalID: contact.ExternalID, PhoneNumber: contact.PhoneNumber}
	p.contactsByExternalID[contact.ExternalID] = c
	return c, nil
}

func (p *Provider) ListPhoneNumbers(ctx context.Context, params telephony.ListPhoneNumbersParams) ([]telephony.PhoneNumber, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]telephony.PhoneNumber(nil), p.PhoneNumbers...), nil
}

func (p *Provider) CreateMessageWebhook(ctx context.Context, params telephony.CreateWebhookParams) (telephony.WebhookSubscription, error) {
	return p.createWebhook(ctx, "message", params)
}

func (p *Provider) CreateCallWebhook(ctx context.Context, params telephony.CreateWebhookParams) (telephony.WebhookSubscription, error) {
	return p.createWebhook(ctx, "call", params)
}

func (p *Provider) CreateCallSummaryWebhook(ctx context.Context, params telephony.CreateWebhookParams) (telephony.WebhookSubscription, error) {
	return p.createWebhook(ctx, "call-summary", params)
}

func (p *Provider) createWebhook(ctx context.Context, kind string, params telephony.CreateWebhookParams) (telephony.WebhookSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := fmt.Sprintf("%s:%v", kind, params.ResourceIDs)
	if p.FailOnCreate[key] {
		delete(p.FailOnCreate, key)
		return telephony.WebhookSubscription{}, fmt.Errorf("mock telephony: simulated failure creating %s webhook", kind)
	}

	p.nextWebhookID++
	sub := telephony.WebhookSubscription{
		ID:  fmt.Sprintf("wh-%s-%d", kind, p.nextWebhookID),
		Key: fmt.Sprintf("key-%d", p.nextWebhookID),
	}
	p.Webhooks[sub.ID] = sub
	return sub, nil
}

func (p *Provider) DeleteWebhook(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Webhooks, id)
	p.DeletedIDs = append(p.DeletedIDs, id)
	return nil
}

var _ telephony.Provider = (*Provider)(nil)

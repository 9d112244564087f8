// Package sync implements Bulk Upsert & Reconciliation (spec.md §4.5):
// bulkUpsertToQuo and the single-contact upsertContactToQuo path. Grounded
// on erauner12-toolbridge-api's sync_chat_messages.go push handler — upsert
// then read back authoritative state, accumulating one ack (here: a
// ContactMapping or an error) per input item.
package sync

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/domain"
	"github.com/acme/crm-telephony-sync/internal/telephony"
)

// Config governs the read-back delay and chunk size (spec.md §4.5, §9 —
// the fixed 1s wait is a documented magic number made configurable here).
type Config struct {
	ReadBackDelay time.Duration
	ReadBackChunk int
}

func (c Config) withDefaults() Config {
	if c.ReadBackDelay <= 0 {
		c.ReadBackDelay = time.Second
	}
	if c.ReadBackChunk <= 0 {
		c.ReadBackChunk = 20
	}
	return c
}

// Reconciler performs bulk and single-contact upserts against the downstream
// telephony platform and reconciles the resulting ContactMapping records.
type Reconciler struct {
	telephony telephony.Provider
	mappings  MappingStore
	cfg       Config
	sleep     func(time.Duration)
}

func New(provider telephony.Provider, mappings MappingStore, cfg Config) *Reconciler {
	return &Reconciler{telephony: provider, mappings: mappings, cfg: cfg.withDefaults(), sleep: time.Sleep}
}

// BulkResult is bulkUpsertToQuo's return shape (spec.md §4.5).
type BulkResult struct {
	SuccessCount int
	ErrorCount   int
	Errors       []domain.ErrorDetail
}

// BulkUpsert implements spec.md §4.5 steps 1-5.
func (r *Reconciler) BulkUpsert(ctx context.Context, contacts []crm.QuoContact) (BulkResult, error) {
	if len(contacts) == 0 {
		return BulkResult{}, nil
	}

	if err := r.telephony.BulkCreateContacts(ctx, contacts); err != nil {
		return BulkResult{
			ErrorCount: len(contacts),
			Errors: []domain.ErrorDetail{{
				Error:      fmt.Sprintf("bulk create failed: %v", err),
				OccurredAt: time.Now().UTC(),
			}},
		}, nil
	}

	if r.sleep != nil {
		r.sleep(r.cfg.ReadBackDelay)
	}

	externalIDs := make([]string, 0, len(contacts))
	for _, c := range contacts {
		externalIDs = append(externalIDs, c.ExternalID)
	}

	found, err := r.readBack(ctx, externalIDs)
	if err != nil {
		return BulkResult{}, fmt.Errorf("sync: read back: %w", err)
	}

	existingByPhone, err := r.mappings.GetByPhoneNumbers(ctx, phoneNumbers(found))
	if err != nil {
		return BulkResult{}, fmt.Errorf("sync: load existing mappings: %w", err)
	}

	result := BulkResult{}
	now := time.Now().UTC()
	for _, c := range contacts {
		created, ok := found[c.ExternalID]
		if !ok {
			result.ErrorCount++
			result.Errors = append(result.Errors, domain.ErrorDetail{
				Error:      "Contact not found after bulk create",
				ExternalID: c.ExternalID,
				OccurredAt: now,
			})
			continue
		}

		if created.PhoneNumber == "" {
			result.ErrorCount++
			result.Errors = append(result.Errors, domain.ErrorDetail{
				Error:      "No phone number available",
				ExternalID: c.ExternalID,
				OccurredAt: now,
			})
			continue
		}

		action := domain.MappingActionCreated
		if _, exists := existingByPhone[created.PhoneNumber]; exists {
			action = domain.MappingActionUpdated
		}

		m := domain.ContactMapping{
			PhoneNumber:  created.PhoneNumber,
			ExternalID:   c.ExternalID,
			QuoContactID: created.ID,
			EntityType:   c.ContactType,
			LastSyncedAt: now,
			SyncMethod:   domain.SyncMethodBulk,
			Action:       action,
		}
		if err := r.mappings.Upsert(ctx, m); err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, domain.ErrorDetail{
				Error:      fmt.Sprintf("mapping upsert failed: %v", err),
				ExternalID: c.ExternalID,
				OccurredAt: now,
			})
			continue
		}
		result.SuccessCount++
	}

	return result, nil
}

// phoneNumbers collects the non-empty phone numbers out of a read-back map,
// for the existing-mapping lookup that decides bulk Action.
func phoneNumbers(found map[string]telephony.Contact) []string {
	out := make([]string, 0, len(found))
	for _, c := range found {
		if c.PhoneNumber != "" {
			out = append(out, c.PhoneNumber)
		}
	}
	return out
}

// readBack partitions externalIDs into ReadBackChunk-sized groups and issues
// listContacts for each chunk in parallel (spec.md §4.5 step 2); any chunk
// failure fails the whole read-back.
func (r *Reconciler) readBack(ctx context.Context, externalIDs []string) (map[string]telephony.Contact, error) {
	chunks := chunk(externalIDs, r.cfg.ReadBackChunk)

	results := make([][]telephony.Contact, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			contacts, err := r.telephony.ListContacts(gctx, telephony.ListContactsParams{
				ExternalIDs: c,
				MaxResults:  len(c),
			})
			if err != nil {
				return err
			}
			results[i] = contacts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	found := make(map[string]telephony.Contact)
	for _, rs := range results {
		for _, c := range rs {
			found[c.ExternalID] = c
		}
	}
	return found, nil
}

// UpsertResult is upsertContactToQuo's return shape.
type UpsertResult struct {
	Action       domain.MappingAction
	QuoContactID string
	ExternalID   string
}

// UpsertContact implements the single-contact path (spec.md §4.5): look up
// by externalId, update if present else create, then upsert the mapping.
func (r *Reconciler) UpsertContact(ctx context.Context, contact crm.QuoContact) (UpsertResult, error) {
	if contact.ExternalID == "" {
		return UpsertResult{}, fmt.Errorf("sync: externalId required")
	}

	existing, err := r.telephony.ListContacts(ctx, telephony.ListContactsParams{
		ExternalIDs: []string{contact.ExternalID},
		MaxResults:  1,
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("sync: list contacts: %w", err)
	}

	var quo telephony.Contact
	var action domain.MappingAction
	if len(existing) > 0 {
		quo, err = r.telephony.UpdateFriggContact(ctx, existing[0].ID, contact)
		action = domain.MappingActionUpdated
	} else {
		quo, err = r.telephony.CreateFriggContact(ctx, contact)
		action = domain.MappingActionCreated
	}
	if err != nil {
		return UpsertResult{}, fmt.Errorf("sync: upsert contact: %w", err)
	}

	if contact.PhoneNumber != "" {
		m := domain.ContactMapping{
			PhoneNumber:  contact.PhoneNumber,
			ExternalID:   contact.ExternalID,
			QuoContactID: quo.ID,
			EntityType:   contact.ContactType,
			LastSyncedAt: time.Now().UTC(),
			SyncMethod:   domain.SyncMethodUpsert,
			Action:       action,
		}
		if err := r.mappings.Upsert(ctx, m); err != nil {
			return UpsertResult{}, fmt.Errorf("sync: mapping upsert: %w", err)
		}
	}

	return UpsertResult{Action: action, QuoContactID: quo.ID, ExternalID: contact.ExternalID}, nil
}

func chunk(items []string, size int) [][]string {
	if size <= 0 {
		size = 20
	}
	chunks := make([][]string, 0, (len(items)+size-1)/size)
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[0:size:size])
	}
	return append(chunks, items)
}

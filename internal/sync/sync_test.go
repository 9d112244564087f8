package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/acme/crm-telephony-sync/internal/crm"
	"github.com/acme/crm-telephony-sync/internal/domain"
	telephonymock "github.com/acme/crm-telephony-sync/internal/telephony/mock"
)

type fakeMappingStore struct {
	mu       sync.Mutex
	upserted []domain.ContactMapping
	existing map[string]domain.ContactMapping
}

func (f *fakeMappingStore) Upsert(ctx context.Context, m domain.ContactMapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, m)
	return nil
}

func (f *fakeMappingStore) GetByPhoneNumbers(ctx context.Context, phoneNumbers []string) (map[string]domain.ContactMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]domain.ContactMapping, len(phoneNumbers))
	for _, phone := range phoneNumbers {
		if m, ok := f.existing[phone]; ok {
			out[phone] = m
		}
	}
	return out, nil
}

func TestBulkUpsertPartialReadBack(t *testing.T) {
	provider := telephonymock.NewProvider()
	provider.MissingExternalIDs = map[string]bool{"b": true, "c": true}
	mappings := &fakeMappingStore{}

	r := New(provider, mappings, Config{ReadBackChunk: 20})
	r.sleep = func(time.Duration) {}

	contacts := []crm.QuoContact{
		{ExternalID: "a", PhoneNumber: "+15551230001", ContactType: "Contact"},
		{ExternalID: "b", PhoneNumber: "+15551230002", ContactType: "Contact"},
		{ExternalID: "c", PhoneNumber: "+15551230003", ContactType: "Contact"},
	}

	result, err := r.BulkUpsert(context.Background(), contacts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.SuccessCount != 1 {
		t.Errorf("expected successCount 1, got %d", result.SuccessCount)
	}
	if result.ErrorCount != 2 {
		t.Errorf("expected errorCount 2, got %d", result.ErrorCount)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 error details, got %d", len(result.Errors))
	}
	for _, e := range result.Errors {
		if e.ExternalID != "b" && e.ExternalID != "c" {
			t.Errorf("unexpected error entry for externalId %q", e.ExternalID)
		}
		if e.Error != "Contact not found after bulk create" {
			t.Errorf("unexpected error message: %q", e.Error)
		}
	}
	if len(mappings.upserted) != 1 || mappings.upserted[0].ExternalID != "a" {
		t.Fatalf("expected exactly one mapping upserted for externalId 'a', got %+v", mappings.upserted)
	}
}

func TestBulkUpsertReportsUpdatedWhenMappingAlreadyExists(t *testing.T) {
	provider := telephonymock.NewProvider()
	mappings := &fakeMappingStore{
		existing: map[string]domain.ContactMapping{
			"+15551230001": {PhoneNumber: "+15551230001", ExternalID: "a"},
		},
	}

	r := New(provider, mappings, Config{ReadBackChunk: 20})
	r.sleep = func(time.Duration) {}

	contacts := []crm.QuoContact{
		{ExternalID: "a", PhoneNumber: "+15551230001", ContactType: "Contact"},
		{ExternalID: "d", PhoneNumber: "+15551230004", ContactType: "Contact"},
	}

	result, err := r.BulkUpsert(context.Background(), contacts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SuccessCount != 2 {
		t.Fatalf("expected successCount 2, got %d", result.SuccessCount)
	}
	if len(mappings.upserted) != 2 {
		t.Fatalf("expected 2 mappings upserted, got %d", len(mappings.upserted))
	}
	for _, m := range mappings.upserted {
		switch m.ExternalID {
		case "a":
			if m.Action != domain.MappingActionUpdated {
				t.Errorf("expected externalId 'a' to report action updated (pre-existing mapping), got %s", m.Action)
			}
		case "d":
			if m.Action != domain.MappingActionCreated {
				t.Errorf("expected externalId 'd' to report action created (no prior mapping), got %s", m.Action)
			}
		}
	}
}

func TestBulkUpsertEmptyInputIsNoOp(t *testing.T) {
	provider := telephonymock.NewProvider()
	mappings := &fakeMappingStore{}
	r := New(provider, mappings, Config{})

	result, err := r.BulkUpsert(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SuccessCount != 0 || result.ErrorCount != 0 {
		t.Fatalf("expected zero-value result for empty input, got %+v", result)
	}
	if len(mappings.upserted) != 0 {
		t.Fatalf("expected no mapping upserts for empty input")
	}
}

func TestBulkUpsertBulkCreateFailureReportsAllAsErrors(t *testing.T) {
	provider := telephonymock.NewProvider()
	provider.BulkCreateErr = context.DeadlineExceeded
	mappings := &fakeMappingStore{}
	r := New(provider, mappings, Config{})

	contacts := []crm.QuoContact{{ExternalID: "a"}, {ExternalID: "b"}}
	result, err := r.BulkUpsert(context.Background(), contacts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ErrorCount != 2 || result.SuccessCount != 0 {
		t.Fatalf("expected all contacts to error when bulk create fails, got %+v", result)
	}
}

func TestUpsertContactCreatesWhenNotFound(t *testing.T) {
	provider := telephonymock.NewProvider()
	mappings := &fakeMappingStore{}
	r := New(provider, mappings, Config{})

	result, err := r.UpsertContact(context.Background(), crm.QuoContact{ExternalID: "x", PhoneNumber: "+15559990000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != domain.MappingActionCreated {
		t.Errorf("expected action created, got %s", result.Action)
	}
	if len(mappings.upserted) != 1 || mappings.upserted[0].Action != domain.MappingActionCreated {
		t.Fatalf("expected one mapping upsert with action created, got %+v", mappings.upserted)
	}
}

func TestUpsertContactUpdatesWhenFound(t *testing.T) {
	provider := telephonymock.NewProvider()
	mappings := &fakeMappingStore{}
	r := New(provider, mappings, Config{})

	ctx := context.Background()
	if _, err := provider.CreateFriggContact(ctx, crm.QuoContact{ExternalID: "x", PhoneNumber: "+15559990000"}); err != nil {
		t.Fatalf("seed create: %v", err)
	}

	result, err := r.UpsertContact(ctx, crm.QuoContact{ExternalID: "x", PhoneNumber: "+15559990001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != domain.MappingActionUpdated {
		t.Errorf("expected action updated, got %s", result.Action)
	}
}

func TestUpsertContactRequiresExternalID(t *testing.T) {
	provider := telephonymock.NewProvider()
	mappings := &fakeMappingStore{}
	r := New(provider, mappings, Config{})

	if _, err := r.UpsertContact(context.Background(), crm.QuoContact{}); err == nil {
		t.Fatalf("expected error for missing externalId")
	}
}

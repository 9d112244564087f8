package crm

import (
	"context"
	"errors"
	"testing"
)

func TestTransformPersonsToQuoMapsEachPerson(t *testing.T) {
	adapter := NewFakeAdapter(SyncConfig{PaginationType: PaginationPageBased}, nil)
	persons := []Person{
		{ID: "1", Fields: map[string]any{"firstName": "Ada", "phone": "+15551234567"}},
		{ID: "2", Fields: map[string]any{"firstName": "Bob", "phone": "+15557654321"}},
	}

	contacts, err := TransformPersonsToQuo(context.Background(), adapter, persons)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(contacts))
	}
	if contacts[0].ExternalID != "1" || contacts[0].FirstName != "Ada" || contacts[0].PhoneNumber != "+15551234567" {
		t.Errorf("unexpected first contact: %+v", contacts[0])
	}
	if contacts[1].ExternalID != "2" || contacts[1].FirstName != "Bob" {
		t.Errorf("unexpected second contact: %+v", contacts[1])
	}
}

func TestTransformPersonsToQuoEmptyInput(t *testing.T) {
	adapter := NewFakeAdapter(SyncConfig{}, nil)
	contacts, err := TransformPersonsToQuo(context.Background(), adapter, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contacts) != 0 {
		t.Fatalf("expected zero contacts for empty input, got %d", len(contacts))
	}
}

type erroringAdapter struct {
	*FakeAdapter
}

func (e erroringAdapter) TransformPersonToQuo(ctx context.Context, person Person) (QuoContact, error) {
	return QuoContact{}, errors.New("transform failed")
}

func TestTransformPersonsToQuoStopsOnFirstError(t *testing.T) {
	adapter := erroringAdapter{FakeAdapter: NewFakeAdapter(SyncConfig{}, nil)}
	_, err := TransformPersonsToQuo(context.Background(), adapter, []Person{{ID: "1"}})
	if err == nil {
		t.Fatalf("expected error to propagate from TransformPersonToQuo")
	}
}

package webhook

import (
	"context"
	"fmt"
	"testing"

	"github.com/acme/crm-telephony-sync/internal/domain"
	"github.com/acme/crm-telephony-sync/internal/telephony"
	telephonymock "github.com/acme/crm-telephony-sync/internal/telephony/mock"
)

func phoneIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("phone-%d", i)
	}
	return ids
}

// S4: 14 phone IDs chunked at the default batch size of 10 -> 2 chunks per
// kind, 3 kinds -> 6 subscriptions total, split 10/4 per kind.
func TestCreateAllChunksAcrossBatches(t *testing.T) {
	provider := telephonymock.NewProvider()
	m := New(nil, nil, nil, nil, Config{}, nil)

	result, err := m.createAllWithProvider(context.Background(), provider, "https://hook.example.com", phoneIDs(14))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Message) != 2 || len(result.Call) != 2 || len(result.CallSummary) != 2 {
		t.Fatalf("expected 2 subscriptions per kind, got message=%d call=%d callSummary=%d",
			len(result.Message), len(result.Call), len(result.CallSummary))
	}

	total := 0
	for _, s := range result.Message {
		total += len(s.ResourceIDs)
	}
	if total != 14 {
		t.Errorf("expected message subscriptions to cover all 14 ids across batches, got %d", total)
	}

	sizes := map[int]bool{}
	for _, s := range result.Message {
		sizes[len(s.ResourceIDs)] = true
	}
	if !sizes[10] || !sizes[4] {
		t.Errorf("expected a 10-id batch and a 4-id batch, got sizes %v", sizes)
	}
}

// S5: one kind's create fails -> every subscription already created in this
// call is rolled back and the original error surfaces.
func TestCreateAllRollsBackOnPartialFailure(t *testing.T) {
	provider := telephonymock.NewProvider()
	ids := phoneIDs(9)
	provider.FailOnCreate[fmt.Sprintf("call-summary:%v", ids)] = true

	m := New(nil, nil, nil, nil, Config{}, nil)

	_, err := m.createAllWithProvider(context.Background(), provider, "https://hook.example.com", ids)
	if err == nil {
		t.Fatalf("expected the call_summary create failure to propagate")
	}

	if len(provider.DeletedIDs) != 2 {
		t.Fatalf("expected rollback to delete the 2 subscriptions created before the failure, got %d (%v)",
			len(provider.DeletedIDs), provider.DeletedIDs)
	}
}

func TestCreateAllEmptyPhoneIDsIsNoOp(t *testing.T) {
	provider := telephonymock.NewProvider()
	m := New(nil, nil, nil, nil, Config{}, nil)

	result, err := m.createAllWithProvider(context.Background(), provider, "https://hook.example.com", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Message) != 0 || len(result.Call) != 0 || len(result.CallSummary) != 0 {
		t.Fatalf("expected empty result for empty phoneIDs, got %+v", result)
	}
}

func TestFetchPhoneMetadataFiltersToRequestedIDs(t *testing.T) {
	p := telephonymock.NewProvider()
	p.PhoneNumbers = []telephony.PhoneNumber{
		{ID: "phone-1", PhoneNumber: "+15550000001", Label: "Sales"},
		{ID: "phone-3", PhoneNumber: "+15550000003", Label: "Support"},
	}

	m := New(nil, nil, nil, nil, Config{}, nil)
	meta, err := m.fetchPhoneMetadataWithProvider(context.Background(), p, "integration-1", []string{"phone-1", "phone-3", "phone-missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(meta) != 2 {
		t.Fatalf("expected 2 matched phone ids, got %d (%+v)", len(meta), meta)
	}
	if _, ok := meta["phone-missing"]; ok {
		t.Errorf("did not expect phone-missing to be present in the filtered result")
	}
}

// S6: an update whose resourceIds are the same set in a different order
// must not be treated as a change.
func TestPhoneSetChangedIsOrderInsensitive(t *testing.T) {
	old := []string{"a", "b", "c"}
	same := []string{"c", "a", "b"}
	if phoneSetChanged(old, same) {
		t.Errorf("expected a reordered identical set to not be a change")
	}

	different := []string{"a", "b", "d"}
	if !phoneSetChanged(old, different) {
		t.Errorf("expected a different set to be flagged as a change")
	}

	shorter := []string{"a", "b"}
	if !phoneSetChanged(old, shorter) {
		t.Errorf("expected a shorter set to be flagged as a change")
	}
}

func TestChunkStringsSplitsAtSize(t *testing.T) {
	chunks := chunkStrings(phoneIDs(23), 10)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 10 || len(chunks[1]) != 10 || len(chunks[2]) != 3 {
		t.Fatalf("unexpected chunk sizes: %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestMergeConfigOverwritesPhoneIDList(t *testing.T) {
	existing := &domain.IntegrationConfig{
		IntegrationID:   "int-1",
		EnabledPhoneIDs: []string{"phone-1"},
	}

	merged, err := mergeConfig(existing, map[string]any{"enabledPhoneIds": []any{"phone-1", "phone-2"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(merged.EnabledPhoneIDs) != 2 {
		t.Fatalf("expected merged config to carry the patched phone id list, got %v", merged.EnabledPhoneIDs)
	}
}

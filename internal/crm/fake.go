package crm

import (
	"context"
	"fmt"
	"sort"
)

// FakeAdapter is a deterministic, hand-written stand-in for a real upstream
// CRM adapter, used by pagination/sync/orchestrator tests. It never reaches
// the network; pages and persons are seeded by the test.
type FakeAdapter struct {
	SyncConfigValue SyncConfig
	ObjectTypes     []PersonObjectType

	// Pages indexed by page number (PAGE_BASED) or keyed by the cursor that
	// selects them (CURSOR_BASED, empty string selects the first page).
	Pages       map[int]FetchPageResult
	CursorPages map[string]FetchPageResult

	// Persons holds full records keyed by ID, used by FetchPersonsByIds.
	Persons map[string]Person

	FetchErr      error
	FetchByIdsErr error

	LoggedSMS  []ActivityEntry
	LoggedCall []ActivityEntry
}

func NewFakeAdapter(cfg SyncConfig, types []PersonObjectType) *FakeAdapter {
	return &FakeAdapter{
		SyncConfigValue: cfg,
		ObjectTypes:     types,
		Pages:           map[int]FetchPageResult{},
		CursorPages:     map[string]FetchPageResult{},
		Persons:         map[string]Person{},
	}
}

func (f *FakeAdapter) FetchPersonPage(ctx context.Context, params FetchPageParams) (FetchPageResult, error) {
	if f.FetchErr != nil {
		return FetchPageResult{}, f.FetchErr
	}
	if f.SyncConfigValue.PaginationType == PaginationCursorBased {
		key := ""
		if params.Cursor != nil {
			key = *params.Cursor
		}
		page, ok := f.CursorPages[key]
		if !ok {
			return FetchPageResult{}, nil
		}
		return page, nil
	}
	page := 0
	if params.Page != nil {
		page = *params.Page
	}
	result, ok := f.Pages[page]
	if !ok {
		return FetchPageResult{}, fmt.Errorf("fake adapter: no page %d seeded", page)
	}
	return result, nil
}

func (f *FakeAdapter) TransformPersonToQuo(ctx context.Context, person Person) (QuoContact, error) {
	phone, _ := person.Fields["phone"].(string)
	first, _ := person.Fields["firstName"].(string)
	last, _ := person.Fields["lastName"].(string)
	return QuoContact{
		ExternalID:  person.ID,
		ContactType: "Contact",
		FirstName:   first,
		LastName:    last,
		PhoneNumber: phone,
	}, nil
}

func (f *FakeAdapter) FetchPersonsByIds(ctx context.Context, objectType string, ids []string) ([]Person, error) {
	if f.FetchByIdsErr != nil {
		return nil, f.FetchByIdsErr
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	out := make([]Person, 0, len(ids))
	for _, id := range ids {
		if p, ok := f.Persons[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *FakeAdapter) LogSMSToActivity(ctx context.Context, entry ActivityEntry) error {
	f.LoggedSMS = append(f.LoggedSMS, entry)
	return nil
}

func (f *FakeAdapter) LogCallToActivity(ctx context.Context, entry ActivityEntry) error {
	f.LoggedCall = append(f.LoggedCall, entry)
	return nil
}

func (f *FakeAdapter) Config() SyncConfig                    { return f.SyncConfigValue }
func (f *FakeAdapter) PersonObjectTypes() []PersonObjectType { return f.ObjectTypes }

var _ Adapter = (*FakeAdapter)(nil)

// Package crm models the upstream CRM adapter contract as a capability
// interface. The adapter itself — the per-vendor API client — lives outside
// this package; this package only captures the shape every adapter must
// satisfy and the static configuration each adapter supplies.
package crm

import (
	"context"
	"time"
)

// PaginationType selects which Pagination Engine state machine a sync run
// for a given adapter uses.
type PaginationType string

const (
	PaginationPageBased   PaginationType = "PAGE_BASED"
	PaginationCursorBased PaginationType = "CURSOR_BASED"
)

// SyncConfig is the adapter's immutable static configuration, captured as a
// plain value passed at construction.
type SyncConfig struct {
	PaginationType      PaginationType
	SupportsTotal       bool
	ReturnFullRecords   bool
	ReverseChronological bool
	InitialBatchSize    int
	OngoingBatchSize    int
	PollIntervalMinutes int
}

// PersonObjectType names one upstream record kind and its downstream
// contact-type counterpart.
type PersonObjectType struct {
	CRMObjectName   string
	QuoContactType  string
}

// QueueConfig is the adapter's preferred worker-pool shape.
type QueueConfig struct {
	MaxWorkers     int
	Provisioned    int
	MaxConcurrency int
	BatchSize      int
	Timeout        time.Duration
}

// FetchPageParams carries every filter the Pagination Engine can supply to a
// page fetch, for either strategy (only the fields relevant to the adapter's
// PaginationType are populated).
type FetchPageParams struct {
	ObjectType    string
	Page          *int
	Cursor        *string
	Limit         int
	ModifiedSince *time.Time
	SortDesc      bool
}

// Person is the minimal upstream record shape the Pagination Engine needs to
// see; adapters return richer records through TransformPersonToQuo.
type Person struct {
	ID     string
	Fields map[string]any
}

// FetchPageResult is what fetchPersonPage returns, a union of the page-based
// and cursor-based response shapes; callers read only the fields their
// strategy defines.
type FetchPageResult struct {
	Data       []Person
	Total      int
	HasMore    bool
	NextCursor *string
}

// QuoContact is the downstream-shaped contact the adapter's transform
// produces, ready for bulkCreateContacts / createFriggContact.
type QuoContact struct {
	ExternalID  string
	ContactType string
	FirstName   string
	LastName    string
	PhoneNumber string
	Email       string
	Fields      map[string]any
}

// ActivityEntry is the normalized view of a telephony event the adapter logs
// back into the CRM via LogSMSToActivity / LogCallToActivity.
type ActivityEntry struct {
	PhoneNumber string
	Direction   string
	OccurredAt  time.Time
	Body        string
	Duration    time.Duration
	Disposition string
}

// Adapter is the capability surface every upstream CRM integration
// implements. Callers re-resolve the Adapter for an integrationId on every
// queue message rather than holding a long-lived reference to one.
type Adapter interface {
	// FetchPersonPage retrieves one page of person records, either
	// page-indexed or cursor-based depending on Config().PaginationType.
	FetchPersonPage(ctx context.Context, params FetchPageParams) (FetchPageResult, error)

	// TransformPersonToQuo maps one upstream person record onto the
	// downstream contact shape.
	TransformPersonToQuo(ctx context.Context, person Person) (QuoContact, error)

	// FetchPersonsByIds hydrates full records for a set of upstream IDs,
	// used by PAGE_BASED batches and by CURSOR_BASED adapters whose
	// SyncConfig.ReturnFullRecords is false.
	FetchPersonsByIds(ctx context.Context, objectType string, ids []string) ([]Person, error)

	// LogSMSToActivity projects an inbound/outbound SMS event as a CRM
	// activity entry.
	LogSMSToActivity(ctx context.Context, entry ActivityEntry) error

	// LogCallToActivity projects a call event as a CRM activity entry.
	LogCallToActivity(ctx context.Context, entry ActivityEntry) error

	// Config returns the adapter's static sync configuration.
	Config() SyncConfig

	// PersonObjectTypes returns the object types this adapter syncs.
	PersonObjectTypes() []PersonObjectType
}

// TransformPersonsToQuo maps TransformPersonToQuo over every person. Adapters
// that can batch the downstream-shaped mapping more cheaply are free to
// implement their own loop instead of calling this helper; it exists purely
// as the generic fallback, not part of the Adapter interface itself.
func TransformPersonsToQuo(ctx context.Context, a Adapter, persons []Person) ([]QuoContact, error) {
	contacts := make([]QuoContact, 0, len(persons))
	for _, p := range persons {
		c, err := a.TransformPersonToQuo(ctx, p)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

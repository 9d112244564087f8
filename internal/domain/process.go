package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProcessState enumerates the lifecycle stages of a sync Process.
type ProcessState string

const (
	ProcessStateInitializing      ProcessState = "INITIALIZING"
	ProcessStateFetchingTotal     ProcessState = "FETCHING_TOTAL"
	ProcessStateFetchingPage      ProcessState = "FETCHING_PAGE"
	ProcessStateQueuingPages      ProcessState = "QUEUING_PAGES"
	ProcessStateProcessingBatches ProcessState = "PROCESSING_BATCHES"
	ProcessStateCompleting        ProcessState = "COMPLETING"
	ProcessStateCompleted         ProcessState = "COMPLETED"
	ProcessStateFailed            ProcessState = "FAILED"
)

// Terminal reports whether the state is a sink state.
func (s ProcessState) Terminal() bool {
	return s == ProcessStateCompleted || s == ProcessStateFailed
}

// SyncType distinguishes a first sync from a delta sync.
type SyncType string

const (
	SyncTypeInitial SyncType = "INITIAL"
	SyncTypeDelta   SyncType = "DELTA"
)

// ProcessType is always CRM_SYNC for this engine; kept as a field for forward
// compatibility with other process kinds the store may one day track.
type ProcessType string

const ProcessTypeCRMSync ProcessType = "CRM_SYNC"

// PaginationStrategy selects which pagination engine state machine a sync run uses.
type PaginationStrategy string

const (
	PaginationPageBased   PaginationStrategy = "PAGE_BASED"
	PaginationCursorBased PaginationStrategy = "CURSOR_BASED"
)

// PaginationState captures the page/cursor bookkeeping carried in Process.Context.
type PaginationState struct {
	PageSize      int    `json:"pageSize"`
	CurrentCursor string `json:"currentCursor,omitempty"`
	NextPage      int    `json:"nextPage"`
	HasMore       bool   `json:"hasMore"`
}

// ProcessContext is the mutable working state of a sync run.
type ProcessContext struct {
	SyncType         SyncType        `json:"syncType"`
	PersonObjectType string          `json:"personObjectType"`
	TotalRecords     int             `json:"totalRecords"`
	ProcessedRecords int             `json:"processedRecords"`
	CurrentPage      int             `json:"currentPage"`
	Pagination       PaginationState `json:"pagination"`
	StartTime        time.Time       `json:"startTime"`
}

// ErrorDetail is one entry in the capped errors[] list.
type ErrorDetail struct {
	Error      string    `json:"error"`
	ExternalID string    `json:"externalId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// AggregateData is the Process's reported outcome.
type AggregateData struct {
	TotalSynced      int           `json:"totalSynced"`
	TotalFailed      int           `json:"totalFailed"`
	Duration         time.Duration `json:"duration"`
	RecordsPerSecond float64       `json:"recordsPerSecond"`
	Errors           []ErrorDetail `json:"errors"`
}

// ProcessResults wraps the aggregate outcome reported back to callers.
type ProcessResults struct {
	AggregateData AggregateData `json:"aggregateData"`
}

// CursorMetadata is the free-form metadata bag the CURSOR_BASED strategy uses.
type CursorMetadata struct {
	TotalFetched int    `json:"totalFetched"`
	PageCount    int    `json:"pageCount"`
	LastCursor   string `json:"lastCursor,omitempty"`
}

// MaxErrorDetails bounds the errorDetails slice retained on a Process.
const MaxErrorDetails = 100

// Process is one durable record of a single sync run for one object type.
type Process struct {
	ID            uuid.UUID
	IntegrationID string
	UserID        string
	Name          string
	Type          ProcessType
	State         ProcessState
	Context       ProcessContext
	Results       ProcessResults
	Metadata      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WebhookSubscription is one {id, key, resourceIds} record for a webhook type.
type WebhookSubscription struct {
	ID          string   `json:"id"`
	Key         string   `json:"key"`
	ResourceIDs []string `json:"resourceIds"`
}

// IntegrationStatus tracks where an integration sits in the onCreate lifecycle.
type IntegrationStatus string

const (
	IntegrationStatusNeedsConfig IntegrationStatus = "NEEDS_CONFIG"
	IntegrationStatusEnabled     IntegrationStatus = "ENABLED"
)

// IntegrationConfig is the per-integration persisted configuration. JSON
// tags mirror the external config shape so the Webhook Subscription
// Manager's onUpdate can deep-merge a raw PATCH body onto it (spec.md §4.6).
type IntegrationConfig struct {
	IntegrationID         string                   `json:"integrationId"`
	Status                IntegrationStatus        `json:"status,omitempty"`
	EnabledPhoneIDs       []string                 `json:"enabledPhoneIds"`
	PhoneNumbersMetadata  map[string]PhoneMetadata `json:"phoneNumbersMetadata,omitempty"`
	PhoneNumbersFetchedAt *time.Time               `json:"phoneNumbersFetchedAt,omitempty"`

	QuoMessageWebhooks     []WebhookSubscription `json:"quoMessageWebhooks,omitempty"`
	QuoCallWebhooks        []WebhookSubscription `json:"quoCallWebhooks,omitempty"`
	QuoCallSummaryWebhooks []WebhookSubscription `json:"quoCallSummaryWebhooks,omitempty"`

	// Legacy single-subscription shape, tolerated on read, stripped on write.
	LegacyMessageWebhookID      string `json:"quoMessageWebhookId,omitempty"`
	LegacyMessageWebhookKey     string `json:"quoMessageWebhookKey,omitempty"`
	LegacyCallWebhookID         string `json:"quoCallWebhookId,omitempty"`
	LegacyCallWebhookKey        string `json:"quoCallWebhookKey,omitempty"`
	LegacyCallSummaryWebhookID  string `json:"quoCallSummaryWebhookId,omitempty"`
	LegacyCallSummaryWebhookKey string `json:"quoCallSummaryWebhookKey,omitempty"`

	QuoWebhooksCreatedAt *time.Time `json:"quoWebhooksCreatedAt,omitempty"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// HasLegacyFields reports whether any legacy single-subscription field is still set.
func (c *IntegrationConfig) HasLegacyFields() bool {
	return c.LegacyMessageWebhookID != "" || c.LegacyMessageWebhookKey != "" ||
		c.LegacyCallWebhookID != "" || c.LegacyCallWebhookKey != "" ||
		c.LegacyCallSummaryWebhookID != "" || c.LegacyCallSummaryWebhookKey != ""
}

// StripLegacyFields clears the legacy single-subscription fields (migration on write).
func (c *IntegrationConfig) StripLegacyFields() {
	c.LegacyMessageWebhookID = ""
	c.LegacyMessageWebhookKey = ""
	c.LegacyCallWebhookID = ""
	c.LegacyCallWebhookKey = ""
	c.LegacyCallSummaryWebhookID = ""
	c.LegacyCallSummaryWebhookKey = ""
}

// PhoneMetadata is the cached lookup value for one downstream phone resource.
type PhoneMetadata struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phoneNumber"`
	Label       string `json:"label,omitempty"`
}

// SyncMethod records how a ContactMapping was produced.
type SyncMethod string

const (
	SyncMethodBulk   SyncMethod = "bulk"
	SyncMethodUpsert SyncMethod = "upsert"
)

// MappingAction records whether the upsert created or updated the downstream contact.
type MappingAction string

const (
	MappingActionCreated MappingAction = "created"
	MappingActionUpdated MappingAction = "updated"
)

// ContactMapping is the identity link between an upstream contact and a downstream
// contact, keyed by phone number. Exactly one mapping exists per phone number;
// last-writer-wins on upsert.
type ContactMapping struct {
	PhoneNumber   string
	ExternalID    string
	QuoContactID  string
	EntityType    string
	LastSyncedAt  time.Time
	SyncMethod    SyncMethod
	Action        MappingAction
}

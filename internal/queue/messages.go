package queue

import "time"

// Event discriminates the QueueMessage tagged union carried as the SQS message body.
type Event string

const (
	EventFetchPersonPage  Event = "FETCH_PERSON_PAGE"
	EventProcessPersonBatch Event = "PROCESS_PERSON_BATCH"
	EventCompleteSync     Event = "COMPLETE_SYNC"
	EventPostCreateSetup  Event = "POST_CREATE_SETUP"
	EventLogSMS           Event = "LOG_SMS"
	EventLogCall          Event = "LOG_CALL"
)

// Envelope pairs an event with a raw payload. The client does not use it:
// Send and BatchSend build each message body with encodeBody.
type Envelope struct {
	Event   Event `json:"event"`
	Payload []byte `json:"-"`
}

// FetchPersonPageMessage seeds one pagination step.
type FetchPersonPageMessage struct {
	ProcessID        string     `json:"processId"`
	PersonObjectType string     `json:"personObjectType"`
	Page             *int       `json:"page,omitempty"`
	Cursor           *string    `json:"cursor,omitempty"`
	Limit            int        `json:"limit"`
	ModifiedSince    *time.Time `json:"modifiedSince,omitempty"`
	SortDesc         bool       `json:"sortDesc"`
}

// ProcessPersonBatchMessage carries a page-based batch of CRM person IDs to upsert.
type ProcessPersonBatchMessage struct {
	ProcessID   string   `json:"processId"`
	CRMPersonIDs []string `json:"crmPersonIds"`
	Page        *int     `json:"page,omitempty"`
	TotalInPage *int     `json:"totalInPage,omitempty"`
	IsWebhook   bool     `json:"isWebhook"`
}

// CompleteSyncMessage finalizes a Process.
type CompleteSyncMessage struct {
	ProcessID string `json:"processId"`
}

// PostCreateSetupMessage triggers webhook setup + initial sync after integration creation.
// Always delivered with a delay to allow credential propagation downstream.
type PostCreateSetupMessage struct {
	IntegrationID string `json:"integrationId"`
}

// LogSMSMessage projects an SMS event back into the CRM as an activity entry.
type LogSMSMessage struct {
	IntegrationID string    `json:"integrationId"`
	PhoneNumber   string    `json:"phoneNumber"`
	Direction     string    `json:"direction"`
	Body          string    `json:"body"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// LogCallMessage projects a call event back into the CRM as an activity entry.
type LogCallMessage struct {
	IntegrationID string        `json:"integrationId"`
	PhoneNumber   string        `json:"phoneNumber"`
	Direction     string        `json:"direction"`
	Duration      time.Duration `json:"duration"`
	Disposition   string        `json:"disposition"`
	OccurredAt    time.Time     `json:"occurredAt"`
}

package domain

import "time"

// ListStatus represents the state of a validation list.
type ListStatus string

const (
	ListStatusUnvalidated ListStatus = "unvalidated"
	ListStatusProcessing  ListStatus = "processing"
	ListStatusCompleted   ListStatus = "completed"
	ListStatusFailed      ListStatus = "failed"
)

// QueueItemStatus represents the state of a per-email validation queue item.
type QueueItemStatus string

const (
	QueueItemStatusPending    QueueItemStatus = "pending"
	QueueItemStatusProcessing QueueItemStatus = "processing"
	QueueItemStatusCompleted  QueueItemStatus = "completed"
	QueueItemStatusFailed     QueueItemStatus = "failed"
)

// ValidationList is a named collection of email addresses submitted together
// for deliverability verification. The four verdict counters converge to
// TotalEmails once the list reaches completed.
type ValidationList struct {
	ID                 string     `db:"id"                  json:"id"`
	Name               string     `db:"name"                json:"name"`
	UserID             string     `db:"user_id"             json:"user_id"`
	Status             ListStatus `db:"status"              json:"status"`
	TotalEmails        int        `db:"total_emails"        json:"total_emails"`
	ProcessedEmails    int        `db:"processed_emails"    json:"processed_emails"`
	DeliverableCount   int        `db:"deliverable_count"   json:"deliverable_count"`
	UndeliverableCount int        `db:"undeliverable_count" json:"undeliverable_count"`
	RiskyCount         int        `db:"risky_count"         json:"risky_count"`
	UnknownCount       int        `db:"unknown_count"       json:"unknown_count"`
	ExternalBatchID    *string    `db:"external_batch_id"   json:"external_batch_id,omitempty"`
	CreatedAt          time.Time  `db:"created_at"          json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"          json:"updated_at"`
}

// VerdictTotal returns the sum of the four verdict counters.
func (l *ValidationList) VerdictTotal() int {
	return l.DeliverableCount + l.UndeliverableCount + l.RiskyCount + l.UnknownCount
}

// ValidationResult is one normalized per-email verdict. Rows are append-only;
// they are never updated after insertion.
type ValidationResult struct {
	ID               string    `db:"id"                 json:"id"`
	ValidationListID string    `db:"validation_list_id" json:"validation_list_id"`
	Email            string    `db:"email"              json:"email"`
	Result           Verdict   `db:"result"             json:"result"`
	FormatValid      bool      `db:"format_valid"       json:"format_valid"`
	DomainValid      bool      `db:"domain_valid"       json:"domain_valid"`
	SMTPValid        bool      `db:"smtp_valid"         json:"smtp_valid"`
	CatchAll         bool      `db:"catch_all"          json:"catch_all"`
	Disposable       bool      `db:"disposable"         json:"disposable"`
	FreeEmail        bool      `db:"free_email"         json:"free_email"`
	Reason           *string   `db:"reason"             json:"reason,omitempty"`
	FullResponse     *string   `db:"full_response"      json:"full_response,omitempty"`
	CreatedAt        time.Time `db:"created_at"         json:"created_at"`
}

// ValidationQueueItem is one email on the per-email validation path. Each
// item transitions independently and is processed at most once per worker pass.
type ValidationQueueItem struct {
	ID               string          `db:"id"                 json:"id"`
	Email            string          `db:"email"              json:"email"`
	ValidationListID string          `db:"validation_list_id" json:"validation_list_id"`
	Status           QueueItemStatus `db:"status"             json:"status"`
	ErrorMessage     *string         `db:"error_message"      json:"error_message,omitempty"`
	CreatedAt        time.Time       `db:"created_at"         json:"created_at"`
	ProcessedAt      *time.Time      `db:"processed_at"       json:"processed_at,omitempty"`
}

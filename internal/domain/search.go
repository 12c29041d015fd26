// Package domain contains the core domain models for the leadharvest service.
package domain

import (
	"fmt"
	"time"
)

// BatchStatus represents the state of a search batch.
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusPaused    BatchStatus = "paused"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

// JobStatus represents the state of a single search job within a batch.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// SearchBatch is a named collection of search jobs advanced by the scheduler,
// one job per batch per pass. DelaySeconds is honored by the invocation
// cadence of the caller, never by the scheduler itself.
type SearchBatch struct {
	ID            string      `db:"id"             json:"id"`
	Name          string      `db:"name"           json:"name"`
	Description   string      `db:"description"    json:"description"`
	Status        BatchStatus `db:"status"         json:"status"`
	TotalJobs     int         `db:"total_jobs"     json:"total_jobs"`
	CompletedJobs int         `db:"completed_jobs" json:"completed_jobs"`
	FailedJobs    int         `db:"failed_jobs"    json:"failed_jobs"`
	DelaySeconds  int         `db:"delay_seconds"  json:"delay_seconds"`
	CreatedAt     time.Time   `db:"created_at"     json:"created_at"`
	StartedAt     *time.Time  `db:"started_at"     json:"started_at,omitempty"`
	CompletedAt   *time.Time  `db:"completed_at"   json:"completed_at,omitempty"`
}

// Settled returns how many of the batch's jobs have reached a terminal state.
func (b *SearchBatch) Settled() int {
	return b.CompletedJobs + b.FailedJobs
}

// SearchJob is one query+location+pages unit of work belonging to a batch.
// A job transitions pending -> running -> completed|failed; running is not
// resumable and requires an explicit administrative reset after a crash.
type SearchJob struct {
	ID           string     `db:"id"            json:"id"`
	BatchID      string     `db:"batch_id"      json:"batch_id"`
	Query        string     `db:"query"         json:"query"`
	Location     string     `db:"location"      json:"location"`
	Pages        int        `db:"pages"         json:"pages"`
	Status       JobStatus  `db:"status"        json:"status"`
	ResultCount  int        `db:"result_count"  json:"result_count"`
	SearchID     *string    `db:"search_id"     json:"search_id,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	ExecutedAt   *time.Time `db:"executed_at"   json:"executed_at,omitempty"`
}

// SearchSession is one dispatcher invocation; it owns the contacts
// extracted during that invocation.
type SearchSession struct {
	ID        string    `db:"id"         json:"id"`
	Query     string    `db:"query"      json:"query"`
	Location  string    `db:"location"   json:"location"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Contact is a single extracted lead. Email uniqueness is enforced only
// within the owning session's extraction pass, not globally.
type Contact struct {
	ID           string    `db:"id"           json:"id"`
	SearchID     string    `db:"search_id"    json:"search_id"`
	Email        string    `db:"email"        json:"email"`
	Name         *string   `db:"name"         json:"name,omitempty"`
	Organization *string   `db:"organization" json:"organization,omitempty"`
	Phone        *string   `db:"phone"        json:"phone,omitempty"`
	Website      *string   `db:"website"      json:"website,omitempty"`
	SocialLinks  *string   `db:"social_links" json:"social_links,omitempty"`
	CreatedAt    time.Time `db:"created_at"   json:"created_at"`
}

// NewSearchBatch creates a pending batch with validation.
func NewSearchBatch(name, description string, delaySeconds int) (*SearchBatch, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidBatch)
	}
	if delaySeconds < 0 {
		return nil, fmt.Errorf("%w: delay_seconds must not be negative, got %d",
			ErrInvalidBatch, delaySeconds)
	}
	return &SearchBatch{
		Name:         name,
		Description:  description,
		Status:       BatchStatusPending,
		DelaySeconds: delaySeconds,
		CreatedAt:    time.Now(),
	}, nil
}

package models

import (
	"time"
)

// JobStatus represents the state of a scrape job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job history retention bounds. Completed and failed records beyond these
// counts are trimmed oldest-first; long-term status truth lives on the Page.
const (
	CompletedJobRetention = 10
	FailedJobRetention    = 5
)

// ScrapeJob is the bounded-retention history record for one queued scrape.
//
// A job references its page by id but does not own it: the page outlives job
// history retention, and an expired job record means "unknown", never
// evidence about page state.
type ScrapeJob struct {
	ID         string    `json:"id" badgerhold:"key"`
	PageID     string    `json:"page_id" badgerhold:"index"`
	OwnerID    string    `json:"owner_id"`
	URL        string    `json:"url"`
	Status     JobStatus `json:"status" badgerhold:"index"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// IsTerminal reports whether the job reached a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

package models

import (
	"time"
)

// PageStatus represents the scraping lifecycle state of a page
type PageStatus string

const (
	PageStatusPending    PageStatus = "pending"
	PageStatusProcessing PageStatus = "processing"
	PageStatusCompleted  PageStatus = "completed"
	PageStatusFailed     PageStatus = "failed"
)

// FailedTitleMarker replaces the page title when a scrape attempt fails.
const FailedTitleMarker = "Failed to fetch page"

// Page represents a user-submitted URL and its scraping lifecycle record.
//
// Status transitions are monotonic along pending → processing →
// {completed|failed}. The only backward edge is failed → pending, taken
// exclusively through an explicit retry. The scrape executor is the only
// writer of Status once a page leaves pending.
type Page struct {
	ID      string `json:"id" badgerhold:"key"`
	OwnerID string `json:"owner_id" badgerhold:"index"`
	// URL is the submitted address after scheme/host normalization
	URL string `json:"url"`
	// NormalURL is the lowercase form used for per-owner duplicate detection
	NormalURL string     `json:"-" badgerhold:"index"`
	Title     string     `json:"title,omitempty"`
	Status    PageStatus `json:"status"`
	// LinkCount is authoritative only once Status is completed
	LinkCount int       `json:"link_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether no further automatic transition can occur.
func (s PageStatus) IsTerminal() bool {
	return s == PageStatusCompleted || s == PageStatusFailed
}

// IsActive reports whether the page still has background work in flight.
func (s PageStatus) IsActive() bool {
	return s == PageStatusPending || s == PageStatusProcessing
}

// PageEvent is the payload published on page lifecycle transitions.
type PageEvent struct {
	PageID    string     `json:"page_id"`
	OwnerID   string     `json:"owner_id"`
	Status    PageStatus `json:"status"`
	Title     string     `json:"title,omitempty"`
	LinkCount int        `json:"link_count"`
}

// CanTransitionTo validates the page status state machine.
func (s PageStatus) CanTransitionTo(next PageStatus) bool {
	switch s {
	case PageStatusPending:
		return next == PageStatusProcessing
	case PageStatusProcessing:
		return next == PageStatusCompleted || next == PageStatusFailed
	case PageStatusFailed:
		// Explicit retry only
		return next == PageStatusPending
	default:
		return false
	}
}

package models

import (
	"errors"
)

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = errors.New("no messages in queue")

// ScrapeMessage is the queue payload for one scrape request.
// It carries enough to be replayed without consulting other state.
type ScrapeMessage struct {
	JobID   string `json:"job_id"`
	PageID  string `json:"page_id"`
	OwnerID string `json:"owner_id"`
	URL     string `json:"url"`
}

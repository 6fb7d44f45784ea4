package common

import (
	"github.com/google/uuid"
)

// NewPageID generates a unique page ID.
// Format: page_<uuid>
func NewPageID() string {
	return "page_" + uuid.New().String()
}

// NewLinkID generates a unique link ID.
// Format: link_<uuid>
func NewLinkID() string {
	return "link_" + uuid.New().String()
}

// NewJobID generates a unique scrape job ID.
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

package models

import (
	"time"
)

// MaxLinkNameLength bounds the derived display name of a link.
const MaxLinkNameLength = 200

// Link is one extracted hyperlink belonging to a page.
//
// Links are immutable once created. A retry purges the previous set for the
// page before the new scrape inserts fresh rows, so a page never accumulates
// links across attempts. Deleting a page cascades to its links.
type Link struct {
	ID     string `json:"id" badgerhold:"key"`
	PageID string `json:"page_id" badgerhold:"index"`
	// OwnerID is denormalized from the page for owner-wide search
	OwnerID string `json:"owner_id" badgerhold:"index"`
	URL     string `json:"url"`
	// Name is the derived human-readable label, truncated to
	// MaxLinkNameLength runes with an ellipsis when cut
	Name string `json:"name"`
	// External is true when the link origin differs from the parent page's
	External bool `json:"external"`
	// Position is the zero-based index of the link in the fetched document,
	// used to keep listings in document order
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

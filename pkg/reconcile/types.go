// Package reconcile keeps a client-side view of scraped pages consistent
// with the server while submissions and background scrapes are in flight.
// It owns the optimistic provisional rows, the merge against server
// snapshots, the adaptive polling schedule and the once-ever notification
// history.
package reconcile

import "time"

// Status mirrors the server's page lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further automatic transition will happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsActive reports whether background work is still in flight.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusProcessing
}

// Page is the wire shape of a server page snapshot.
type Page struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Status    Status    `json:"status"`
	LinkCount int       `json:"link_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Job is the wire shape of a scrape job history record. A 404 on job
// lookup means "unknown" (history expired), never page state.
type Job struct {
	ID      string `json:"id"`
	PageID  string `json:"page_id"`
	OwnerID string `json:"owner_id"`
	URL     string `json:"url"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// Ref identifies a view entry: either a client-generated provisional ref
// awaiting server acknowledgement, or a confirmed server id. Exactly one
// variant is set.
type Ref struct {
	Provisional *ProvisionalRef
	Confirmed   *ConfirmedRef
}

// ProvisionalRef marks an optimistic row created at submission time,
// before the server has acknowledged the page.
type ProvisionalRef struct {
	LocalID     string
	SubmittedAt time.Time
}

// ConfirmedRef carries a server-assigned page id.
type ConfirmedRef struct {
	ServerID string
}

// NewProvisionalRef builds a provisional ref for a fresh submission.
func NewProvisionalRef(localID string) Ref {
	return Ref{Provisional: &ProvisionalRef{LocalID: localID, SubmittedAt: time.Now()}}
}

// NewConfirmedRef builds a confirmed ref from a server id.
func NewConfirmedRef(serverID string) Ref {
	return Ref{Confirmed: &ConfirmedRef{ServerID: serverID}}
}

// IsProvisional reports whether the ref still awaits acknowledgement.
func (r Ref) IsProvisional() bool {
	return r.Provisional != nil
}

// ID returns the server id for confirmed refs, the local id otherwise.
func (r Ref) ID() string {
	if r.Confirmed != nil {
		return r.Confirmed.ServerID
	}
	if r.Provisional != nil {
		return r.Provisional.LocalID
	}
	return ""
}

// Entry is one row of the client's page list.
type Entry struct {
	Ref       Ref
	URL       string
	Title     string
	Status    Status
	LinkCount int
}

// EntryFromPage converts a server snapshot row into a confirmed entry.
func EntryFromPage(p Page) Entry {
	return Entry{
		Ref:       NewConfirmedRef(p.ID),
		URL:       p.URL,
		Title:     p.Title,
		Status:    p.Status,
		LinkCount: p.LinkCount,
	}
}

package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/colligo/internal/models"
)

// ListOptions controls pagination for list and search queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// PageStorage - interface for page persistence
type PageStorage interface {
	// CreatePage stores a new pending page. Returns *models.ConflictError
	// when the owner already has a live page with the same normalized URL.
	CreatePage(ctx context.Context, page *models.Page) error
	// GetPage is owner-scoped: cross-owner lookups return models.ErrNotFound.
	GetPage(ctx context.Context, id, ownerID string) (*models.Page, error)
	// GetPageAny looks a page up by id alone. Used by the executor and
	// sweep, which act on behalf of the system rather than a caller.
	GetPageAny(ctx context.Context, id string) (*models.Page, error)
	UpdatePage(ctx context.Context, page *models.Page) error
	// CompletePage finalizes a successful scrape: title, link count, the
	// completed status and the bulk link insert land in one transaction,
	// so readers never observe a completed page with stale or missing
	// links.
	CompletePage(ctx context.Context, page *models.Page, links []*models.Link) error
	// DeletePage cascades to the page's links.
	DeletePage(ctx context.Context, id, ownerID string) error
	ListPages(ctx context.Context, ownerID string, opts *ListOptions) ([]*models.Page, int, error)
	// ListStuckProcessing returns pages still marked processing whose last
	// update is older than the cutoff, for the reconciliation sweep.
	ListStuckProcessing(ctx context.Context, before time.Time) ([]*models.Page, error)
}

// LinkStorage - interface for extracted link persistence
type LinkStorage interface {
	// DeleteLinksByPage purges previous links for the page. Called at job
	// start so a retry never accumulates rows from earlier attempts.
	DeleteLinksByPage(ctx context.Context, pageID string) error
	ListLinksByPage(ctx context.Context, pageID string, opts *ListOptions) ([]*models.Link, int, error)
	// SearchLinks matches a case-insensitive substring over name OR url,
	// scoped to one owner.
	SearchLinks(ctx context.Context, ownerID, query string, opts *ListOptions) ([]*models.Link, int, error)
}

// JobStorage - interface for bounded scrape-job history
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.ScrapeJob) error
	// GetJob returns models.ErrNotFound for expired or never-existing ids;
	// callers must treat that as "unknown", not as page state.
	GetJob(ctx context.Context, id string) (*models.ScrapeJob, error)
	// ListJobs returns the owner's recent jobs, newest first.
	ListJobs(ctx context.Context, ownerID string, opts *ListOptions) ([]*models.ScrapeJob, error)
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	PageStorage() PageStorage
	LinkStorage() LinkStorage
	JobStorage() JobStorage
	Close() error
}

package badger

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// PageStorage implements the PageStorage interface for Badger
type PageStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPageStorage creates a new PageStorage instance
func NewPageStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PageStorage {
	return &PageStorage{
		db:     db,
		logger: logger,
	}
}

func (s *PageStorage) CreatePage(ctx context.Context, page *models.Page) error {
	if page.ID == "" {
		return fmt.Errorf("page ID is required")
	}

	// Duplicate detection is case-insensitive per owner over live pages.
	// NormalURL is lowercased at creation time, so an equality match is
	// sufficient here.
	var existing []models.Page
	err := s.db.Store().Find(&existing,
		badgerhold.Where("OwnerID").Eq(page.OwnerID).And("NormalURL").Eq(page.NormalURL).Limit(1))
	if err != nil {
		return fmt.Errorf("failed to check for duplicate url: %w", err)
	}
	if len(existing) > 0 {
		return &models.ConflictError{URL: page.URL, ExistingPageID: existing[0].ID}
	}

	now := time.Now()
	if page.CreatedAt.IsZero() {
		page.CreatedAt = now
	}
	page.UpdatedAt = now

	if err := s.db.Store().Insert(page.ID, page); err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	return nil
}

func (s *PageStorage) GetPage(ctx context.Context, id, ownerID string) (*models.Page, error) {
	page, err := s.GetPageAny(ctx, id)
	if err != nil {
		return nil, err
	}
	// Cross-owner reads look identical to missing pages so existence never
	// leaks across owners.
	if page.OwnerID != ownerID {
		return nil, models.ErrNotFound
	}
	return page, nil
}

func (s *PageStorage) GetPageAny(ctx context.Context, id string) (*models.Page, error) {
	var page models.Page
	if err := s.db.Store().Get(id, &page); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return &page, nil
}

func (s *PageStorage) UpdatePage(ctx context.Context, page *models.Page) error {
	page.UpdatedAt = time.Now()
	if err := s.db.Store().Update(page.ID, page); err != nil {
		if err == badgerhold.ErrNotFound {
			return models.ErrNotFound
		}
		return fmt.Errorf("failed to update page: %w", err)
	}
	return nil
}

// CompletePage writes the finalized page and all its links in a single
// Badger transaction. Either the whole result lands or none of it does.
func (s *PageStorage) CompletePage(ctx context.Context, page *models.Page, links []*models.Link) error {
	page.UpdatedAt = time.Now()

	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		if err := s.db.Store().TxUpdate(txn, page.ID, page); err != nil {
			return fmt.Errorf("failed to finalize page: %w", err)
		}
		for _, link := range links {
			if err := s.db.Store().TxInsert(txn, link.ID, link); err != nil {
				return fmt.Errorf("failed to insert link: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to complete page %s: %w", page.ID, err)
	}
	return nil
}

func (s *PageStorage) DeletePage(ctx context.Context, id, ownerID string) error {
	// Ownership check first; storage-level reads outside the delete txn are
	// fine since page ids are never reused.
	if _, err := s.GetPage(ctx, id, ownerID); err != nil {
		return err
	}

	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		if err := s.db.Store().TxDelete(txn, id, &models.Page{}); err != nil && err != badgerhold.ErrNotFound {
			return err
		}
		// Cascade to the page's links
		return s.db.Store().TxDeleteMatching(txn, &models.Link{}, badgerhold.Where("PageID").Eq(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete page %s: %w", id, err)
	}

	s.logger.Debug().Str("page_id", id).Msg("Page deleted with cascaded links")
	return nil
}

func (s *PageStorage) ListPages(ctx context.Context, ownerID string, opts *interfaces.ListOptions) ([]*models.Page, int, error) {
	count, err := s.db.Store().Count(&models.Page{}, badgerhold.Where("OwnerID").Eq(ownerID))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count pages: %w", err)
	}

	query := badgerhold.Where("OwnerID").Eq(ownerID).SortBy("CreatedAt").Reverse()
	if opts != nil {
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
	}

	var pages []models.Page
	if err := s.db.Store().Find(&pages, query); err != nil {
		return nil, 0, fmt.Errorf("failed to list pages: %w", err)
	}

	result := make([]*models.Page, len(pages))
	for i := range pages {
		result[i] = &pages[i]
	}
	return result, int(count), nil
}

func (s *PageStorage) ListStuckProcessing(ctx context.Context, before time.Time) ([]*models.Page, error) {
	var pages []models.Page
	err := s.db.Store().Find(&pages,
		badgerhold.Where("Status").Eq(models.PageStatusProcessing).And("UpdatedAt").Lt(before))
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck pages: %w", err)
	}

	result := make([]*models.Page, len(pages))
	for i := range pages {
		result[i] = &pages[i]
	}
	return result, nil
}

package badger

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// LinkStorage implements the LinkStorage interface for Badger
type LinkStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLinkStorage creates a new LinkStorage instance
func NewLinkStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LinkStorage {
	return &LinkStorage{
		db:     db,
		logger: logger,
	}
}

func (s *LinkStorage) DeleteLinksByPage(ctx context.Context, pageID string) error {
	err := s.db.Store().DeleteMatching(&models.Link{}, badgerhold.Where("PageID").Eq(pageID))
	if err != nil {
		return fmt.Errorf("failed to delete links for page %s: %w", pageID, err)
	}
	return nil
}

func (s *LinkStorage) ListLinksByPage(ctx context.Context, pageID string, opts *interfaces.ListOptions) ([]*models.Link, int, error) {
	count, err := s.db.Store().Count(&models.Link{}, badgerhold.Where("PageID").Eq(pageID))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count links: %w", err)
	}

	// Position carries the document order of the fetched page.
	query := badgerhold.Where("PageID").Eq(pageID).SortBy("Position")
	if opts != nil {
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
	}

	var links []models.Link
	if err := s.db.Store().Find(&links, query); err != nil {
		return nil, 0, fmt.Errorf("failed to list links: %w", err)
	}

	result := make([]*models.Link, len(links))
	for i := range links {
		result[i] = &links[i]
	}
	return result, int(count), nil
}

func (s *LinkStorage) SearchLinks(ctx context.Context, ownerID, query string, opts *interfaces.ListOptions) ([]*models.Link, int, error) {
	// Case-insensitive substring match over name OR url. Badgerhold offers
	// RegExp matching only, so the query is escaped to a literal pattern.
	regex, err := regexp.Compile("(?i)" + regexp.QuoteMeta(query))
	if err != nil {
		return nil, 0, &models.ValidationError{Field: "q", Reason: "invalid search query"}
	}

	match := badgerhold.Where("OwnerID").Eq(ownerID).
		And("Name").RegExp(regex).
		Or(badgerhold.Where("OwnerID").Eq(ownerID).And("URL").RegExp(regex))

	count, err := s.db.Store().Count(&models.Link{}, match)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	q := badgerhold.Where("OwnerID").Eq(ownerID).
		And("Name").RegExp(regex).
		Or(badgerhold.Where("OwnerID").Eq(ownerID).And("URL").RegExp(regex)).
		SortBy("CreatedAt").Reverse()
	if opts != nil {
		if opts.Offset > 0 {
			q = q.Skip(opts.Offset)
		}
		if opts.Limit > 0 {
			q = q.Limit(opts.Limit)
		}
	}

	var links []models.Link
	if err := s.db.Store().Find(&links, q); err != nil {
		return nil, 0, fmt.Errorf("link search failed: %w", err)
	}

	result := make([]*models.Link, len(links))
	for i := range links {
		result[i] = &links[i]
	}
	return result, int(count), nil
}

package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

func TestLinkStorage_ListLinksByPage(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	pages := storage.PageStorage()
	links := storage.LinkStorage()

	page := newTestPage("owner-1", "https://example.com/a")
	require.NoError(t, pages.CreatePage(ctx, page))

	// Same batch timestamp for all links, as one scrape produces them.
	extracted := []*models.Link{
		newTestLink(page, 0, "https://example.com/1", "One"),
		newTestLink(page, 1, "https://example.com/2", "Two"),
		newTestLink(page, 2, "https://other.test/3", "Three"),
	}
	page.Status = models.PageStatusCompleted
	page.LinkCount = len(extracted)
	require.NoError(t, pages.CompletePage(ctx, page, extracted))

	t.Run("AllLinks", func(t *testing.T) {
		listed, count, err := links.ListLinksByPage(ctx, page.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.Len(t, listed, 3)
	})

	t.Run("DocumentOrder", func(t *testing.T) {
		// Random link ids must not influence ordering, only Position does.
		ordered := newTestPage("owner-1", "https://example.com/ordered")
		require.NoError(t, pages.CreatePage(ctx, ordered))

		batch := make([]*models.Link, 20)
		for i := range batch {
			batch[i] = newTestLink(ordered, i, fmt.Sprintf("https://example.com/%d", i), fmt.Sprintf("Link %d", i))
		}
		ordered.Status = models.PageStatusCompleted
		ordered.LinkCount = len(batch)
		require.NoError(t, pages.CompletePage(ctx, ordered, batch))

		listed, _, err := links.ListLinksByPage(ctx, ordered.ID, nil)
		require.NoError(t, err)
		require.Len(t, listed, len(batch))
		for i, l := range listed {
			assert.Equal(t, i, l.Position)
			assert.Equal(t, fmt.Sprintf("https://example.com/%d", i), l.URL)
		}
	})

	t.Run("Pagination", func(t *testing.T) {
		listed, count, err := links.ListLinksByPage(ctx, page.ID, &interfaces.ListOptions{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.Len(t, listed, 2)
	})

	t.Run("UnknownPageEmpty", func(t *testing.T) {
		listed, count, err := links.ListLinksByPage(ctx, "nope", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
		assert.Empty(t, listed)
	})
}

func TestLinkStorage_DeleteLinksByPage(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	pages := storage.PageStorage()
	links := storage.LinkStorage()

	page := newTestPage("owner-1", "https://example.com/a")
	require.NoError(t, pages.CreatePage(ctx, page))
	page.Status = models.PageStatusCompleted
	require.NoError(t, pages.CompletePage(ctx, page, []*models.Link{
		newTestLink(page, 0, "https://example.com/1", "One"),
		newTestLink(page, 1, "https://example.com/2", "Two"),
	}))

	require.NoError(t, links.DeleteLinksByPage(ctx, page.ID))

	_, count, err := links.ListLinksByPage(ctx, page.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Purging an already-empty page is a no-op.
	assert.NoError(t, links.DeleteLinksByPage(ctx, page.ID))
}

func TestLinkStorage_SearchLinks(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	pages := storage.PageStorage()
	links := storage.LinkStorage()

	page := newTestPage("owner-1", "https://example.com/a")
	require.NoError(t, pages.CreatePage(ctx, page))
	page.Status = models.PageStatusCompleted
	require.NoError(t, pages.CompletePage(ctx, page, []*models.Link{
		newTestLink(page, 0, "https://example.com/docs", "Documentation"),
		newTestLink(page, 1, "https://example.com/blog", "Latest Posts"),
		newTestLink(page, 2, "https://golang.org/doc", "Language Reference"),
	}))

	otherPage := newTestPage("owner-2", "https://example.com/a")
	require.NoError(t, pages.CreatePage(ctx, otherPage))
	otherPage.Status = models.PageStatusCompleted
	require.NoError(t, pages.CompletePage(ctx, otherPage, []*models.Link{
		newTestLink(otherPage, 0, "https://example.com/docs", "Documentation"),
	}))

	t.Run("MatchesNameCaseInsensitive", func(t *testing.T) {
		found, count, err := links.SearchLinks(ctx, "owner-1", "DOCUMENT", nil)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		require.Len(t, found, 1)
		assert.Equal(t, "Documentation", found[0].Name)
	})

	t.Run("MatchesURL", func(t *testing.T) {
		found, count, err := links.SearchLinks(ctx, "owner-1", "golang.org", nil)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		require.Len(t, found, 1)
		assert.Equal(t, "Language Reference", found[0].Name)
	})

	t.Run("MatchesNameOrURL", func(t *testing.T) {
		// "doc" hits the Documentation name, the /docs url, and golang.org/doc.
		_, count, err := links.SearchLinks(ctx, "owner-1", "doc", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("OwnerScoped", func(t *testing.T) {
		found, count, err := links.SearchLinks(ctx, "owner-2", "doc", nil)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		require.Len(t, found, 1)
		assert.Equal(t, otherPage.ID, found[0].PageID)
	})

	t.Run("QueryIsLiteralNotRegex", func(t *testing.T) {
		_, count, err := links.SearchLinks(ctx, "owner-1", ".*", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("NoMatches", func(t *testing.T) {
		found, count, err := links.SearchLinks(ctx, "owner-1", "zzz-nothing", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
		assert.Empty(t, found)
	})
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// LinkHandler handles extracted-link API requests
type LinkHandler struct {
	pageStorage interfaces.PageStorage
	linkStorage interfaces.LinkStorage
	logger      arbor.ILogger
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(pageStorage interfaces.PageStorage, linkStorage interfaces.LinkStorage, logger arbor.ILogger) *LinkHandler {
	return &LinkHandler{
		pageStorage: pageStorage,
		linkStorage: linkStorage,
		logger:      logger,
	}
}

// ListLinksHandler returns the links extracted from a page, in document order
// GET /api/pages/{id}/links?limit=50&offset=0
func (h *LinkHandler) ListLinksHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := RequireOwner(w, r)
	if !ok {
		return
	}

	pageID := extractPageID(strings.TrimSuffix(r.URL.Path, "/links"))
	if pageID == "" {
		WriteError(w, http.StatusBadRequest, "Page ID is required")
		return
	}

	// Owner check happens on the page, links inherit its scope.
	if _, err := h.pageStorage.GetPage(ctx, pageID, ownerID); err != nil {
		WriteServiceError(w, err)
		return
	}

	opts, err := GetListOptions(r)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	links, total, err := h.linkStorage.ListLinksByPage(ctx, pageID, opts)
	if err != nil {
		h.logger.Error().Err(err).Str("page_id", pageID).Msg("Failed to list links")
		WriteError(w, http.StatusInternalServerError, "Failed to list links")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"links":       links,
		"total_count": total,
		"limit":       opts.Limit,
		"offset":      opts.Offset,
	})
}

// SearchLinksHandler searches the owner's links by name or URL substring
// GET /api/links?q=term&limit=50&offset=0
func (h *LinkHandler) SearchLinksHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := RequireOwner(w, r)
	if !ok {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		WriteError(w, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	opts, err := GetListOptions(r)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	links, total, err := h.linkStorage.SearchLinks(ctx, ownerID, query, opts)
	if err != nil {
		h.logger.Error().Err(err).Str("query", query).Msg("Failed to search links")
		WriteError(w, http.StatusInternalServerError, "Failed to search links")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"links":       links,
		"total_count": total,
		"query":       query,
		"limit":       opts.Limit,
		"offset":      opts.Offset,
	})
}

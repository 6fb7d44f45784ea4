package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/scraper"
)

// PageHandler handles page-related API requests
type PageHandler struct {
	scraperService *scraper.Service
	pageStorage    interfaces.PageStorage
	eventService   interfaces.EventService
	validate       *validator.Validate
	logger         arbor.ILogger
}

// NewPageHandler creates a new page handler
func NewPageHandler(scraperService *scraper.Service, pageStorage interfaces.PageStorage, eventService interfaces.EventService, logger arbor.ILogger) *PageHandler {
	return &PageHandler{
		scraperService: scraperService,
		pageStorage:    pageStorage,
		eventService:   eventService,
		validate:       validator.New(),
		logger:         logger,
	}
}

// SubmitPageRequest is the body for POST /api/pages.
type SubmitPageRequest struct {
	URL string `json:"url" validate:"required"`
}

// SubmitResponse pairs the created page with its queued scrape job so
// clients can poll the job without a second round trip.
type SubmitResponse struct {
	Page *models.Page      `json:"page"`
	Job  *models.ScrapeJob `json:"job"`
}

// SubmitPageHandler accepts a URL for scraping
// POST /api/pages
func (h *PageHandler) SubmitPageHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := RequireOwner(w, r)
	if !ok {
		return
	}

	var req SubmitPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "url is required")
		return
	}

	page, job, err := h.scraperService.Submit(ctx, ownerID, req.URL)
	if err != nil {
		if !models.IsConflict(err) && !models.IsValidation(err) {
			h.logger.Error().Err(err).Str("url", req.URL).Msg("Failed to submit page")
		}
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, SubmitResponse{Page: page, Job: job})
}

// ListPagesHandler returns the owner's pages, newest first
// GET /api/pages?limit=50&offset=0
func (h *PageHandler) ListPagesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := RequireOwner(w, r)
	if !ok {
		return
	}

	opts, err := GetListOptions(r)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	pages, total, err := h.pageStorage.ListPages(ctx, ownerID, opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list pages")
		WriteError(w, http.StatusInternalServerError, "Failed to list pages")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"pages":       pages,
		"total_count": total,
		"limit":       opts.Limit,
		"offset":      opts.Offset,
	})
}

// GetPageHandler returns a single page by ID
// GET /api/pages/{id}
func (h *PageHandler) GetPageHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := RequireOwner(w, r)
	if !ok {
		return
	}

	pageID := extractPageID(r.URL.Path)
	if pageID == "" {
		WriteError(w, http.StatusBadRequest, "Page ID is required")
		return
	}

	page, err := h.pageStorage.GetPage(ctx, pageID, ownerID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, page)
}

// DeletePageHandler removes a page and its extracted links
// DELETE /api/pages/{id}
func (h *PageHandler) DeletePageHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := RequireOwner(w, r)
	if !ok {
		return
	}

	pageID := extractPageID(r.URL.Path)
	if pageID == "" {
		WriteError(w, http.StatusBadRequest, "Page ID is required")
		return
	}

	if err := h.pageStorage.DeletePage(ctx, pageID, ownerID); err != nil {
		WriteServiceError(w, err)
		return
	}

	h.eventService.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventPageDeleted,
		Payload: models.PageEvent{PageID: pageID, OwnerID: ownerID},
	})

	h.logger.Info().Str("page_id", pageID).Msg("Page deleted")
	w.WriteHeader(http.StatusNoContent)
}

// RetryPageHandler re-queues a failed page
// POST /api/pages/{id}/retry
func (h *PageHandler) RetryPageHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := RequireOwner(w, r)
	if !ok {
		return
	}

	pageID := extractPageID(strings.TrimSuffix(r.URL.Path, "/retry"))
	if pageID == "" {
		WriteError(w, http.StatusBadRequest, "Page ID is required")
		return
	}

	page, job, err := h.scraperService.Retry(ctx, ownerID, pageID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, SubmitResponse{Page: page, Job: job})
}

// extractPageID pulls the page ID from paths like /api/pages/{id}.
func extractPageID(path string) string {
	pathParts := strings.Split(strings.Trim(path, "/"), "/")
	if len(pathParts) < 3 {
		return ""
	}
	return pathParts[2]
}

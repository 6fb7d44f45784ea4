package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// JobHandler handles scrape-job API requests
type JobHandler struct {
	jobStorage interfaces.JobStorage
	logger     arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobStorage interfaces.JobStorage, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobStorage: jobStorage,
		logger:     logger,
	}
}

// ListJobsHandler returns the owner's recent scrape jobs, newest first.
// History is bounded, so expired jobs simply stop appearing here.
// GET /api/jobs?limit=50&offset=0
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
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

	jobs, err := h.jobStorage.ListJobs(ctx, ownerID, opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":   jobs,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

// GetJobHandler returns a single job by ID. A 404 means the job is
// unknown or its history entry has expired, not that the page failed.
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := RequireOwner(w, r)
	if !ok {
		return
	}

	// Extract job ID from path: /api/jobs/{id}
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 3 || pathParts[2] == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}
	jobID := pathParts[2]

	job, err := h.jobStorage.GetJob(ctx, jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	// Cross-owner reads look identical to missing jobs, matching pages.
	if job.OwnerID != ownerID {
		WriteServiceError(w, models.ErrNotFound)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

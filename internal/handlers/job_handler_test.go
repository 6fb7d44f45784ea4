package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/colligo/internal/models"
)

func TestGetJobHandler(t *testing.T) {
	env := newTestEnv(t)
	created := submitPage(t, env, "owner-1", "https://example.com/a")

	t.Run("Found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.jobs.GetJobHandler(rec, newRequest(t, http.MethodGet, "/api/jobs/"+created.Job.ID, "owner-1", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var job models.ScrapeJob
		decodeBody(t, rec, &job)
		assert.Equal(t, created.Job.ID, job.ID)
		assert.Equal(t, created.Page.ID, job.PageID)
		assert.Equal(t, models.JobStatusPending, job.Status)
	})

	t.Run("MissingOwnerHeader", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.jobs.GetJobHandler(rec, newRequest(t, http.MethodGet, "/api/jobs/"+created.Job.ID, "", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("CrossOwnerLooksMissing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.jobs.GetJobHandler(rec, newRequest(t, http.MethodGet, "/api/jobs/"+created.Job.ID, "owner-2", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		// The submitted URL must not leak to another owner.
		assert.NotContains(t, rec.Body.String(), "example.com")
	})

	t.Run("UnknownOrExpired", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.jobs.GetJobHandler(rec, newRequest(t, http.MethodGet, "/api/jobs/nope", "owner-1", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("MissingID", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.jobs.GetJobHandler(rec, newRequest(t, http.MethodGet, "/api/jobs/", "owner-1", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListJobsHandler(t *testing.T) {
	env := newTestEnv(t)
	first := submitPage(t, env, "owner-1", "https://example.com/a")
	second := submitPage(t, env, "owner-1", "https://example.com/b")
	other := submitPage(t, env, "owner-2", "https://example.com/c")

	t.Run("MissingOwnerHeader", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.jobs.ListJobsHandler(rec, newRequest(t, http.MethodGet, "/api/jobs", "", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("OwnerScoped", func(t *testing.T) {
		rec := httptest.NewRecorder()
		env.jobs.ListJobsHandler(rec, newRequest(t, http.MethodGet, "/api/jobs", "owner-1", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Jobs []models.ScrapeJob `json:"jobs"`
		}
		decodeBody(t, rec, &body)
		require.Len(t, body.Jobs, 2)

		ids := []string{body.Jobs[0].ID, body.Jobs[1].ID}
		assert.Contains(t, ids, first.Job.ID)
		assert.Contains(t, ids, second.Job.ID)
		assert.NotContains(t, ids, other.Job.ID)
	})
}

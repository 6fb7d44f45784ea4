package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

func newTestJob(status models.JobStatus, createdAt time.Time) *models.ScrapeJob {
	return &models.ScrapeJob{
		ID:        uuid.New().String(),
		PageID:    uuid.New().String(),
		OwnerID:   "owner-1",
		URL:       "https://example.com/a",
		Status:    status,
		Attempts:  1,
		CreatedAt: createdAt,
	}
}

func TestJobStorage_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	jobs := storage.JobStorage()

	job := newTestJob(models.JobStatusPending, time.Now())
	require.NoError(t, jobs.SaveJob(ctx, job))

	got, err := jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.PageID, got.PageID)
	assert.Equal(t, models.JobStatusPending, got.Status)

	// Upsert semantics: saving again moves the job along its lifecycle.
	job.Status = models.JobStatusRunning
	job.StartedAt = time.Now()
	require.NoError(t, jobs.SaveJob(ctx, job))

	got, err = jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, got.Status)
	assert.False(t, got.StartedAt.IsZero())
}

func TestJobStorage_GetUnknown(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	_, err := storage.JobStorage().GetJob(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestJobStorage_SaveRequiresID(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	job := newTestJob(models.JobStatusPending, time.Now())
	job.ID = ""
	assert.Error(t, storage.JobStorage().SaveJob(ctx, job))
}

func TestJobStorage_ListJobs(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	jobs := storage.JobStorage()

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 4; i++ {
		job := newTestJob(models.JobStatusPending, base.Add(time.Duration(i)*time.Minute))
		job.URL = fmt.Sprintf("https://example.com/%d", i)
		require.NoError(t, jobs.SaveJob(ctx, job))
		ids = append(ids, job.ID)
	}

	other := newTestJob(models.JobStatusPending, base.Add(time.Hour))
	other.OwnerID = "owner-2"
	require.NoError(t, jobs.SaveJob(ctx, other))

	t.Run("NewestFirst", func(t *testing.T) {
		listed, err := jobs.ListJobs(ctx, "owner-1", nil)
		require.NoError(t, err)
		require.Len(t, listed, 4)
		assert.Equal(t, ids[3], listed[0].ID)
		assert.Equal(t, ids[0], listed[3].ID)
	})

	t.Run("Pagination", func(t *testing.T) {
		listed, err := jobs.ListJobs(ctx, "owner-1", &interfaces.ListOptions{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, ids[2], listed[0].ID)
		assert.Equal(t, ids[1], listed[1].ID)
	})

	t.Run("OwnerScoped", func(t *testing.T) {
		listed, err := jobs.ListJobs(ctx, "owner-2", nil)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, other.ID, listed[0].ID)

		listed, err = jobs.ListJobs(ctx, "owner-3", nil)
		require.NoError(t, err)
		assert.Empty(t, listed)
	})
}

func TestJobStorage_RetentionTrimming(t *testing.T) {
	ctx := context.Background()

	t.Run("CompletedKeepsTen", func(t *testing.T) {
		storage := newTestStorage(t)
		jobs := storage.JobStorage()

		base := time.Now().Add(-time.Hour)
		var ids []string
		for i := 0; i < models.CompletedJobRetention+3; i++ {
			job := newTestJob(models.JobStatusCompleted, base.Add(time.Duration(i)*time.Minute))
			require.NoError(t, jobs.SaveJob(ctx, job))
			ids = append(ids, job.ID)
		}

		// The oldest three are gone; an expired record reads as unknown.
		for _, id := range ids[:3] {
			_, err := jobs.GetJob(ctx, id)
			assert.ErrorIs(t, err, models.ErrNotFound)
		}
		for _, id := range ids[3:] {
			_, err := jobs.GetJob(ctx, id)
			assert.NoError(t, err)
		}
	})

	t.Run("FailedKeepsFive", func(t *testing.T) {
		storage := newTestStorage(t)
		jobs := storage.JobStorage()

		base := time.Now().Add(-time.Hour)
		var ids []string
		for i := 0; i < models.FailedJobRetention+2; i++ {
			job := newTestJob(models.JobStatusFailed, base.Add(time.Duration(i)*time.Minute))
			job.Error = "fetch failed"
			require.NoError(t, jobs.SaveJob(ctx, job))
			ids = append(ids, job.ID)
		}

		for _, id := range ids[:2] {
			_, err := jobs.GetJob(ctx, id)
			assert.ErrorIs(t, err, models.ErrNotFound)
		}
		for _, id := range ids[2:] {
			_, err := jobs.GetJob(ctx, id)
			assert.NoError(t, err)
		}
	})

	t.Run("BoundsAreIndependent", func(t *testing.T) {
		storage := newTestStorage(t)
		jobs := storage.JobStorage()

		base := time.Now().Add(-time.Hour)
		for i := 0; i < models.CompletedJobRetention; i++ {
			require.NoError(t, jobs.SaveJob(ctx, newTestJob(models.JobStatusCompleted, base.Add(time.Duration(i)*time.Minute))))
		}
		for i := 0; i < models.FailedJobRetention; i++ {
			require.NoError(t, jobs.SaveJob(ctx, newTestJob(models.JobStatusFailed, base.Add(time.Duration(i)*time.Minute))))
		}

		listed, err := jobs.ListJobs(ctx, "owner-1", nil)
		require.NoError(t, err)
		assert.Len(t, listed, models.CompletedJobRetention+models.FailedJobRetention)
	})

	t.Run("ActiveJobsNeverTrimmed", func(t *testing.T) {
		storage := newTestStorage(t)
		jobs := storage.JobStorage()

		base := time.Now().Add(-time.Hour)
		for i := 0; i < models.CompletedJobRetention+5; i++ {
			require.NoError(t, jobs.SaveJob(ctx, newTestJob(models.JobStatusPending, base.Add(time.Duration(i)*time.Minute))))
		}

		listed, err := jobs.ListJobs(ctx, "owner-1", nil)
		require.NoError(t, err)
		assert.Len(t, listed, models.CompletedJobRetention+5)
	})
}

package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements the bounded scrape-job history for Badger.
//
// Terminal job records are a short audit window, not durable history: on
// every save the oldest records beyond the retention bounds are trimmed.
// Page status remains the source of truth.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.ScrapeJob) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	if job.Status.IsTerminal() {
		s.trim(job.Status)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, id string) (*models.ScrapeJob, error) {
	var job models.ScrapeJob
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			// Expired history and never-existed look the same: unknown.
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) ListJobs(ctx context.Context, ownerID string, opts *interfaces.ListOptions) ([]*models.ScrapeJob, error) {
	query := badgerhold.Where("OwnerID").Eq(ownerID).SortBy("CreatedAt").Reverse()
	if opts != nil {
		if opts.Offset > 0 {
			query = query.Skip(opts.Offset)
		}
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
	}

	var jobs []models.ScrapeJob
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.ScrapeJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// trim discards terminal job records beyond the retention bound for the
// given status, oldest first.
func (s *JobStorage) trim(status models.JobStatus) {
	retention := models.CompletedJobRetention
	if status == models.JobStatusFailed {
		retention = models.FailedJobRetention
	}

	var jobs []models.ScrapeJob
	err := s.db.Store().Find(&jobs,
		badgerhold.Where("Status").Eq(status).SortBy("CreatedAt").Reverse().Skip(retention))
	if err != nil {
		s.logger.Warn().Err(err).Str("status", string(status)).Msg("Failed to query job history for trimming")
		return
	}

	for i := range jobs {
		if err := s.db.Store().Delete(jobs[i].ID, &models.ScrapeJob{}); err != nil && err != badgerhold.ErrNotFound {
			s.logger.Warn().Err(err).Str("job_id", jobs[i].ID).Msg("Failed to trim job history record")
		}
	}
}

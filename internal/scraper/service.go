package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/queue"
)

// Service is the submission side of the pipeline: it turns "scrape this URL"
// into a pending page plus a queued job, and owns the explicit retry
// command. Validation, conflict and not-found errors surface synchronously
// here; everything after enqueue is the executor's problem.
type Service struct {
	pages  interfaces.PageStorage
	jobs   interfaces.JobStorage
	queue  *queue.Manager
	events interfaces.EventService
	logger arbor.ILogger
}

// NewService creates the scrape submission service.
func NewService(pages interfaces.PageStorage, jobs interfaces.JobStorage, qm *queue.Manager, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		pages:  pages,
		jobs:   jobs,
		queue:  qm,
		events: events,
		logger: logger,
	}
}

// Submit validates the URL, creates the pending page and enqueues its
// scrape job. The caller gets the page and job handle back immediately;
// scraping happens asynchronously.
func (s *Service) Submit(ctx context.Context, ownerID, rawURL string) (*models.Page, *models.ScrapeJob, error) {
	canonical, normalKey, ok := common.NormalizeURL(rawURL)
	if !ok {
		return nil, nil, &models.ValidationError{Field: "url", Reason: "must be an absolute http or https URL"}
	}

	page := &models.Page{
		ID:        common.NewPageID(),
		OwnerID:   ownerID,
		URL:       canonical,
		NormalURL: normalKey,
		Status:    models.PageStatusPending,
	}

	if err := s.pages.CreatePage(ctx, page); err != nil {
		return nil, nil, err
	}

	job, err := s.enqueue(ctx, page)
	if err != nil {
		// The page would sit pending forever without a job behind it
		if delErr := s.pages.DeletePage(ctx, page.ID, ownerID); delErr != nil {
			s.logger.Error().Err(delErr).Str("page_id", page.ID).Msg("Failed to roll back page after enqueue failure")
		}
		return nil, nil, err
	}

	if s.events != nil {
		s.events.Publish(ctx, interfaces.Event{
			Type: interfaces.EventPageCreated,
			Payload: &models.PageEvent{
				PageID:  page.ID,
				OwnerID: page.OwnerID,
				Status:  page.Status,
			},
		})
	}

	s.logger.Info().
		Str("page_id", page.ID).
		Str("job_id", job.ID).
		Str("url", page.URL).
		Msg("Scrape job submitted")

	return page, job, nil
}

// Retry re-enqueues a failed page. Permitted only from the failed state;
// anything else is rejected without mutating status.
func (s *Service) Retry(ctx context.Context, ownerID, pageID string) (*models.Page, *models.ScrapeJob, error) {
	page, err := s.pages.GetPage(ctx, pageID, ownerID)
	if err != nil {
		return nil, nil, err
	}

	if !page.Status.CanTransitionTo(models.PageStatusPending) {
		return nil, nil, models.ErrNotRetryable
	}

	page.Status = models.PageStatusPending
	if err := s.pages.UpdatePage(ctx, page); err != nil {
		return nil, nil, err
	}

	job, err := s.enqueue(ctx, page)
	if err != nil {
		// Put the page back where the retry gate accepts it, otherwise it
		// would sit pending with nothing behind it and no way to retry.
		page.Status = models.PageStatusFailed
		if rbErr := s.pages.UpdatePage(ctx, page); rbErr != nil {
			s.logger.Error().Err(rbErr).Str("page_id", page.ID).Msg("Failed to restore page status after enqueue failure")
		}
		return nil, nil, err
	}

	if s.events != nil {
		s.events.Publish(ctx, interfaces.Event{
			Type: interfaces.EventPageStatusChanged,
			Payload: &models.PageEvent{
				PageID:  page.ID,
				OwnerID: page.OwnerID,
				Status:  page.Status,
				Title:   page.Title,
			},
		})
	}

	s.logger.Info().
		Str("page_id", page.ID).
		Str("job_id", job.ID).
		Msg("Failed page re-enqueued")

	return page, job, nil
}

func (s *Service) enqueue(ctx context.Context, page *models.Page) (*models.ScrapeJob, error) {
	job := &models.ScrapeJob{
		ID:        common.NewJobID(),
		PageID:    page.ID,
		OwnerID:   page.OwnerID,
		URL:       page.URL,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return nil, err
	}

	msg := &models.ScrapeMessage{
		JobID:   job.ID,
		PageID:  page.ID,
		OwnerID: page.OwnerID,
		URL:     page.URL,
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to enqueue scrape job: %w", err)
	}

	return job, nil
}

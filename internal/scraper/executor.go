package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Executor runs the page status state machine for one scrape job. It is the
// only component that moves a page's status away from pending, and the only
// writer of link rows.
//
// Collaborators are injected so the transition logic tests without a queue
// or network.
type Executor struct {
	pages     interfaces.PageStorage
	links     interfaces.LinkStorage
	jobs      interfaces.JobStorage
	fetcher   Fetcher
	extractor *LinkExtractor
	events    interfaces.EventService
	logger    arbor.ILogger
}

// NewExecutor creates a scrape executor.
func NewExecutor(
	pages interfaces.PageStorage,
	links interfaces.LinkStorage,
	jobs interfaces.JobStorage,
	fetcher Fetcher,
	extractor *LinkExtractor,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Executor {
	return &Executor{
		pages:     pages,
		links:     links,
		jobs:      jobs,
		fetcher:   fetcher,
		extractor: extractor,
		events:    events,
		logger:    logger,
	}
}

// Execute processes one delivery end to end:
//
//	load page → processing (persisted before the fetch, and observable
//	mid-flight) → purge old links + reset count → fetch → extract →
//	finalize {title, status, link count, links} in one transaction.
//
// A missing page drops the job without error: deleting a page mid-flight is
// the cancellation mechanism. Fetch and extraction failures mark the page
// failed and return the error so the queue can apply its retry budget; each
// redelivery re-runs the whole transition from the page load.
func (e *Executor) Execute(ctx context.Context, msg *models.ScrapeMessage) error {
	page, err := e.pages.GetPageAny(ctx, msg.PageID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			e.logger.Info().
				Str("page_id", msg.PageID).
				Msg("Page gone before scrape, dropping job")
			e.finishJob(ctx, msg.JobID, models.JobStatusCompleted, "page deleted before scrape")
			return nil
		}
		return err
	}

	e.startJob(ctx, msg.JobID)

	// Processing is persisted before the fetch begins; the link purge and
	// count reset happen here, at job start, so a retry can never stack
	// links from earlier attempts.
	page.Status = models.PageStatusProcessing
	page.LinkCount = 0
	if err := e.pages.UpdatePage(ctx, page); err != nil {
		return err
	}
	e.publishStatus(ctx, page)

	if err := e.links.DeleteLinksByPage(ctx, page.ID); err != nil {
		return err
	}

	result, fetchErr := e.fetcher.Fetch(ctx, page.URL)
	if fetchErr != nil {
		return e.fail(ctx, page, msg.JobID, fetchErr)
	}

	extracted, extractErr := e.extractor.Extract(result.Body, page.URL)
	if extractErr != nil {
		return e.fail(ctx, page, msg.JobID, extractErr)
	}

	now := time.Now()
	links := make([]*models.Link, len(extracted.Links))
	for i, l := range extracted.Links {
		links[i] = &models.Link{
			ID:        common.NewLinkID(),
			PageID:    page.ID,
			OwnerID:   page.OwnerID,
			URL:       l.URL,
			Name:      l.Name,
			External:  l.External,
			Position:  i,
			CreatedAt: now,
		}
	}

	page.Title = extracted.Title
	if page.Title == "" {
		page.Title = page.URL
	}
	page.Status = models.PageStatusCompleted
	page.LinkCount = len(links)

	if err := e.pages.CompletePage(ctx, page, links); err != nil {
		return e.fail(ctx, page, msg.JobID, err)
	}

	e.logger.Info().
		Str("page_id", page.ID).
		Str("url", page.URL).
		Int("links", len(links)).
		Msg("Scrape completed")

	e.finishJob(ctx, msg.JobID, models.JobStatusCompleted, "")
	e.publishStatus(ctx, page)
	return nil
}

// FailPage forces a page into the failed state outside a normal execution
// pass. The queue's final-failure hook and the stuck-page sweep both land
// here, so an exhausted retry budget can never leave a page processing
// forever.
func (e *Executor) FailPage(ctx context.Context, pageID string, cause error) {
	page, err := e.pages.GetPageAny(ctx, pageID)
	if err != nil {
		return // page already gone, nothing to force
	}
	if page.Status.IsTerminal() {
		return
	}

	page.Status = models.PageStatusFailed
	page.Title = models.FailedTitleMarker
	if err := e.pages.UpdatePage(ctx, page); err != nil {
		e.logger.Error().Err(err).Str("page_id", pageID).Msg("Failed to force page into failed state")
		return
	}

	e.logger.Warn().
		Str("page_id", pageID).
		Err(cause).
		Msg("Page forced to failed state")
	e.publishStatus(ctx, page)
}

// OnFinalFailure adapts FailPage to the queue's final-failure hook. It also
// closes out the job history record so a spent retry budget reads as a
// failed job, not a running one.
func (e *Executor) OnFinalFailure(msg *models.ScrapeMessage, attempts int, cause error) {
	ctx := context.Background()

	e.logger.Warn().
		Str("page_id", msg.PageID).
		Str("job_id", msg.JobID).
		Int("attempts", attempts).
		Err(cause).
		Msg("Scrape exhausted its retry budget")

	e.FailPage(ctx, msg.PageID, cause)
	e.finishJob(ctx, msg.JobID, models.JobStatusFailed, cause.Error())
}

// fail converts a fetch/extract failure into the failed page state. The
// original error is returned so the queue's retry policy still applies; no
// partial links are ever persisted on this path.
func (e *Executor) fail(ctx context.Context, page *models.Page, jobID string, cause error) error {
	page.Status = models.PageStatusFailed
	page.Title = models.FailedTitleMarker
	page.LinkCount = 0
	if err := e.pages.UpdatePage(ctx, page); err != nil {
		e.logger.Error().Err(err).Str("page_id", page.ID).Msg("Failed to persist failed status")
	}

	e.logger.Warn().
		Str("page_id", page.ID).
		Str("url", page.URL).
		Err(cause).
		Msg("Scrape failed")

	e.finishJob(ctx, jobID, models.JobStatusFailed, cause.Error())
	e.publishStatus(ctx, page)
	return cause
}

// startJob moves the history record to running. History is best effort: a
// trimmed record is not re-created.
func (e *Executor) startJob(ctx context.Context, jobID string) {
	job, err := e.jobs.GetJob(ctx, jobID)
	if err != nil {
		return
	}
	job.Status = models.JobStatusRunning
	job.Attempts++
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now()
	}
	if err := e.jobs.SaveJob(ctx, job); err != nil {
		e.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to update job history")
	}
}

func (e *Executor) finishJob(ctx context.Context, jobID string, status models.JobStatus, errMsg string) {
	job, err := e.jobs.GetJob(ctx, jobID)
	if err != nil {
		return
	}
	job.Status = status
	job.Error = errMsg
	job.FinishedAt = time.Now()
	if err := e.jobs.SaveJob(ctx, job); err != nil {
		e.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to update job history")
	}
}

func (e *Executor) publishStatus(ctx context.Context, page *models.Page) {
	if e.events == nil {
		return
	}
	e.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventPageStatusChanged,
		Payload: &models.PageEvent{
			PageID:    page.ID,
			OwnerID:   page.OwnerID,
			Status:    page.Status,
			Title:     page.Title,
			LinkCount: page.LinkCount,
		},
	})
}

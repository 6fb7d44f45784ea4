package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/scraper"
)

// Sweeper periodically fails pages stuck in processing. A page can be
// orphaned in that state when the process dies between claiming a queue
// message and finishing the scrape, or when a queue message expires its
// retry budget before the page record is updated.
type Sweeper struct {
	pages    interfaces.PageStorage
	executor *scraper.Executor
	cron     *cron.Cron
	config   common.SweepConfig
	logger   arbor.ILogger
}

// NewSweeper creates a new stuck-page sweeper
func NewSweeper(pages interfaces.PageStorage, executor *scraper.Executor, config common.SweepConfig, logger arbor.ILogger) *Sweeper {
	return &Sweeper{
		pages:    pages,
		executor: executor,
		cron:     cron.New(),
		config:   config,
		logger:   logger,
	}
}

// Start begins the scheduled sweep
func (s *Sweeper) Start() error {
	schedule := s.config.Schedule
	if schedule == "" {
		schedule = "@every 1m"
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runSweep()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Str("stuck_threshold", s.config.StuckThreshold.String()).
		Msg("Stuck page sweeper started")

	return nil
}

// Stop halts the scheduled sweep and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Stuck page sweeper stopped")
}

// RunOnce performs a single sweep, used at startup to recover pages
// orphaned by the previous process.
func (s *Sweeper) RunOnce() {
	s.runSweep()
}

func (s *Sweeper) runSweep() {
	threshold := s.config.StuckThreshold
	if threshold <= 0 {
		threshold = 10 * time.Minute
	}

	ctx := context.Background()
	cutoff := time.Now().Add(-threshold)

	stuck, err := s.pages.ListStuckProcessing(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list stuck processing pages")
		return
	}

	if len(stuck) == 0 {
		return
	}

	s.logger.Warn().
		Int("count", len(stuck)).
		Str("cutoff", cutoff.Format(time.RFC3339)).
		Msg("Failing pages stuck in processing")

	for _, page := range stuck {
		s.executor.FailPage(ctx, page.ID, errors.New("scrape timed out"))
	}
}

package queue

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
)

// Handler processes one scrape message. A nil return acknowledges the
// delivery; an error nacks it into the retry schedule.
type Handler func(ctx context.Context, msg *models.ScrapeMessage) error

// WorkerPool polls the queue and hands messages to the handler. Concurrency
// is 1 by default: scrapes run serialized, which is deliberate backpressure
// toward the sites being fetched, not an oversight.
type WorkerPool struct {
	manager      *Manager
	handler      Handler
	pollInterval time.Duration
	concurrency  int
	logger       arbor.ILogger
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewWorkerPool creates a worker pool over the queue manager.
func NewWorkerPool(manager *Manager, handler Handler, pollInterval time.Duration, concurrency int, logger arbor.ILogger) *WorkerPool {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if concurrency < 1 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		manager:      manager,
		handler:      handler,
		pollInterval: pollInterval,
		concurrency:  concurrency,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	wp.logger.Info().
		Int("concurrency", wp.concurrency).
		Dur("poll_interval", wp.pollInterval).
		Msg("Starting scrape worker pool")

	for i := 0; i < wp.concurrency; i++ {
		go wp.worker(i)
	}
}

// Stop cancels all workers. In-flight handlers observe the cancellation via
// their context; unfinished messages resurface after the visibility timeout.
func (wp *WorkerPool) Stop() {
	wp.logger.Info().Msg("Stopping scrape worker pool")
	wp.cancel()
}

func (wp *WorkerPool) worker(workerID int) {
	wp.logger.Debug().Int("worker_id", workerID).Msg("Worker started")

	ticker := time.NewTicker(wp.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().Int("worker_id", workerID).Msg("Worker stopped")
			return

		case <-ticker.C:
			if err := wp.processOne(workerID); err != nil && err != ErrNoMessage {
				wp.logger.Warn().
					Err(err).
					Int("worker_id", workerID).
					Msg("Error processing queue message")
			}
		}
	}
}

// processOne drains the queue one message at a time so a burst of pending
// work does not wait a full poll interval per job.
func (wp *WorkerPool) processOne(workerID int) error {
	delivery, err := wp.manager.Receive(wp.ctx)
	if err != nil {
		return err
	}

	wp.logger.Debug().
		Str("page_id", delivery.Message.PageID).
		Int("attempt", delivery.Attempts).
		Int("worker_id", workerID).
		Msg("Processing scrape message")

	if err := wp.handler(wp.ctx, delivery.Message); err != nil {
		return wp.manager.Nack(delivery, err)
	}
	return wp.manager.Ack(delivery)
}

package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/events"
	"github.com/ternarybob/colligo/internal/handlers"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/queue"
	"github.com/ternarybob/colligo/internal/scheduler"
	"github.com/ternarybob/colligo/internal/scraper"
	badgerstore "github.com/ternarybob/colligo/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService interfaces.EventService

	// Scrape pipeline
	QueueManager   *queue.Manager
	WorkerPool     *queue.WorkerPool
	Executor       *scraper.Executor
	ScraperService *scraper.Service
	Sweeper        *scheduler.Sweeper

	// HTTP handlers
	APIHandler  *handlers.APIHandler
	PageHandler *handlers.PageHandler
	LinkHandler *handlers.LinkHandler
	JobHandler  *handlers.JobHandler
	WSHandler   *events.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Event service first: the websocket handler and the executor both
	// publish through it.
	app.EventService = events.NewService(app.Logger)
	app.WSHandler = events.NewWebSocketHandler(app.EventService, app.Logger, &app.Config.Events)

	// Initialize services
	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Initialize handlers
	if err := app.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	// Recover pages orphaned by a previous process before accepting work.
	app.Sweeper.RunOnce()

	// Start workers AFTER all handlers are initialized
	app.WorkerPool.Start()

	if app.Config.Sweep.Enabled {
		if err := app.Sweeper.Start(); err != nil {
			return nil, fmt.Errorf("failed to start sweeper: %w", err)
		}
	}

	logger.Info().
		Str("queue", cfg.Queue.Name).
		Int("concurrency", cfg.Queue.Concurrency).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the storage layer (Badger)
func (a *App) initStorage() error {
	storageManager, err := badgerstore.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = storageManager
	return nil
}

// initServices initializes the scrape pipeline in dependency order:
//
//  1. QueueManager (badger-backed) - durable scrape queue
//  2. Executor - runs one scrape end to end
//  3. WorkerPool - polls the queue and drives the executor
//  4. ScraperService - synchronous API surface (submit, retry)
//  5. Sweeper - fails pages stuck in processing
func (a *App) initServices() error {
	manager, ok := a.StorageManager.(*badgerstore.Manager)
	if !ok {
		return fmt.Errorf("queue requires badger-backed storage")
	}

	policy := queue.RetryPolicy{
		MaxAttempts: a.Config.Queue.MaxAttempts,
		BaseDelay:   a.Config.Queue.RetryBaseDelay,
		Multiplier:  2,
	}

	queueManager, err := queue.NewManager(
		manager.DB().Store().Badger(),
		a.Config.Queue.Name,
		a.Config.Queue.VisibilityTimeout,
		policy,
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create queue manager: %w", err)
	}
	a.QueueManager = queueManager

	fetcher := scraper.NewHTTPFetcher(a.Config.Scraper, a.Logger)
	extractor := scraper.NewLinkExtractor(a.Logger)

	a.Executor = scraper.NewExecutor(
		a.StorageManager.PageStorage(),
		a.StorageManager.LinkStorage(),
		a.StorageManager.JobStorage(),
		fetcher,
		extractor,
		a.EventService,
		a.Logger,
	)

	// A message that spends its whole retry budget must still leave the
	// page in a terminal state.
	a.QueueManager.OnFinalFailure(a.Executor.OnFinalFailure)

	a.WorkerPool = queue.NewWorkerPool(
		a.QueueManager,
		a.Executor.Execute,
		a.Config.Queue.PollInterval,
		a.Config.Queue.Concurrency,
		a.Logger,
	)

	a.ScraperService = scraper.NewService(
		a.StorageManager.PageStorage(),
		a.StorageManager.JobStorage(),
		a.QueueManager,
		a.EventService,
		a.Logger,
	)

	a.Sweeper = scheduler.NewSweeper(
		a.StorageManager.PageStorage(),
		a.Executor,
		a.Config.Sweep,
		a.Logger,
	)

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() error {
	a.APIHandler = handlers.NewAPIHandler()
	a.PageHandler = handlers.NewPageHandler(a.ScraperService, a.StorageManager.PageStorage(), a.EventService, a.Logger)
	a.LinkHandler = handlers.NewLinkHandler(a.StorageManager.PageStorage(), a.StorageManager.LinkStorage(), a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.StorageManager.JobStorage(), a.Logger)
	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	// Stop the sweeper
	if a.Sweeper != nil && a.Config.Sweep.Enabled {
		a.Sweeper.Stop()
	}

	// Stop workers before closing storage so in-flight scrapes can finish
	if a.WorkerPool != nil {
		a.WorkerPool.Stop()
		a.Logger.Info().Msg("Worker pool stopped")
	}

	// Disconnect websocket clients
	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	// Close event service
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	// Close storage
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}

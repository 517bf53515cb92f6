// -----------------------------------------------------------------------
// Last Modified: Thursday, 15th October 2026 9:12:40 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/common"
	"github.com/ternarybob/benchdash/internal/handlers"
	"github.com/ternarybob/benchdash/internal/interfaces"
	"github.com/ternarybob/benchdash/internal/services/attributes"
	"github.com/ternarybob/benchdash/internal/services/events"
	"github.com/ternarybob/benchdash/internal/services/metrics"
	"github.com/ternarybob/benchdash/internal/services/results"
	"github.com/ternarybob/benchdash/internal/services/scheduler"
	"github.com/ternarybob/benchdash/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService     interfaces.EventService
	SchedulerService *scheduler.Service
	MetricsService   *metrics.Service

	// Domain services
	ResultsService    *results.Service
	AttributesService *attributes.Service

	// HTTP handlers
	APIHandler        *handlers.APIHandler
	ResultsHandler    *handlers.ResultsHandler
	AttributesHandler *handlers.AttributesHandler
	SchedulerHandler  *handlers.SchedulerHandler
	WSHandler         *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	// The event service comes first: the file lookup watcher publishes through it
	app.EventService = events.NewService(app.Logger)

	if err := app.initDatabase(); err != nil {
		app.EventService.Close()
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initServices()

	if err := app.initScheduler(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("storage", cfg.Storage.Type).
		Bool("auto_reconcile", cfg.Attributes.AutoReconcileSchedule != "").
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens Badger and, for file storage, the lookup file
func (a *App) initDatabase() error {
	manager, err := storage.NewStorageManager(a.ctx, a.Logger, a.Config, a.EventService)
	if err != nil {
		return err
	}
	a.StorageManager = manager

	a.Logger.Debug().
		Str("type", a.Config.Storage.Type).
		Str("path", a.Config.Storage.Badger.Path).
		Bool("in_memory", a.Config.Storage.Badger.InMemory).
		Msg("Storage layer initialized")

	return nil
}

func (a *App) initServices() {
	a.MetricsService = metrics.NewService()

	a.ResultsService = results.NewService(
		a.StorageManager.RunStorage(),
		a.EventService,
		a.MetricsService,
		a.Logger,
	)

	a.AttributesService = attributes.NewService(
		a.StorageManager.LookupStorage(),
		a.StorageManager.RunStorage(),
		a.StorageManager.KeyValueStorage(),
		a.EventService,
		a.MetricsService,
		a.Logger,
	)

	a.Logger.Debug().Msg("Domain services initialized")
}

// initScheduler registers the reconciliation job when a schedule is configured
func (a *App) initScheduler() error {
	a.SchedulerService = scheduler.NewService(a.Logger)

	schedule := a.Config.Attributes.AutoReconcileSchedule
	if schedule == "" {
		a.Logger.Debug().Msg("Automatic reconciliation disabled")
		return nil
	}

	description := "Preview the attribute lookup against the latest run"
	if a.Config.Attributes.AutoSave {
		description = "Reconcile and save the attribute lookup against the latest run"
	}

	handler := scheduler.AutoReconcileHandler(
		a.StorageManager.RunStorage(),
		a.AttributesService,
		a.Config.Attributes.AutoSave,
		a.Logger,
	)
	if err := a.SchedulerService.RegisterJob(scheduler.AutoReconcileJob, schedule, description, handler); err != nil {
		return err
	}

	return a.SchedulerService.Start()
}

func (a *App) initHandlers() {
	maxBody := a.Config.Uploads.MaxBodyBytes

	a.APIHandler = handlers.NewAPIHandler(a.StorageManager, a.Logger)
	a.ResultsHandler = handlers.NewResultsHandler(a.ResultsService, a.Logger, maxBody)
	a.AttributesHandler = handlers.NewAttributesHandler(a.AttributesService, a.Logger, maxBody)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService)

	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, a.Config)

	a.Logger.Debug().Msg("HTTP handlers initialized")
}

// Close stops background work and releases storage
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	// Drain in-flight event handlers before storage goes away
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}

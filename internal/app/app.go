// Package app provides application lifecycle management: dependency
// wiring, the API server, and the worker driver loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/jonesrussell/leadharvest/internal/api"
	"github.com/jonesrussell/leadharvest/internal/config"
	"github.com/jonesrussell/leadharvest/internal/database"
	"github.com/jonesrussell/leadharvest/internal/dispatch"
	"github.com/jonesrussell/leadharvest/internal/extract"
	"github.com/jonesrussell/leadharvest/internal/logger"
	"github.com/jonesrussell/leadharvest/internal/metrics"
	"github.com/jonesrussell/leadharvest/internal/scheduler"
	"github.com/jonesrussell/leadharvest/internal/serper"
	"github.com/jonesrussell/leadharvest/internal/truelist"
	"github.com/jonesrussell/leadharvest/internal/validation"
)

const (
	// DefaultShutdownTimeout is the default timeout for graceful shutdown
	DefaultShutdownTimeout = 30 * time.Second

	idleTimeout = 60 * time.Second
	pingTimeout = 5 * time.Second
)

// App holds the wired application with all its dependencies
type App struct {
	config      *config.Config
	logger      logger.Logger
	db          *sqlx.DB
	redisClient redis.UniversalClient

	Scheduler   *scheduler.Scheduler
	QueueWorker *validation.QueueWorker
	Reconciler  *validation.Reconciler
	Tracker     *metrics.Tracker
	batches     *database.BatchRepository

	router     *api.Router
	httpServer *http.Server
	version    string
}

// Options contains configuration for creating a new App
type Options struct {
	ConfigPath string
	Version    string
}

// redisPinger adapts the redis client to the API's health check surface.
type redisPinger struct {
	client redis.UniversalClient
}

func (p *redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// New creates a new App instance with all dependencies initialized
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	appLogger, err := logger.New(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	appLogger = appLogger.With(
		logger.String("service", "leadharvest"),
		logger.String("version", opts.Version),
	)

	db, err := database.NewPostgresConnection(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		_ = appLogger.Sync()
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
		_ = appLogger.Sync()
		db.Close()
		return nil, fmt.Errorf("connect to Redis: %w", pingErr)
	}

	// Repositories
	batchRepo := database.NewBatchRepository(db)
	searchRepo := database.NewSearchRepository(db)
	validationRepo := database.NewValidationRepository(db)

	// External clients; missing API keys fail here, before any call.
	serperClient, err := serper.NewClient(cfg.Serper.BaseURL, cfg.Serper.APIKey, cfg.Serper.Timeout, appLogger)
	if err != nil {
		_ = appLogger.Sync()
		db.Close()
		return nil, err
	}
	truelistClient, err := truelist.NewClient(cfg.Truelist.BaseURL, cfg.Truelist.APIKey, cfg.Truelist.Timeout, appLogger)
	if err != nil {
		_ = appLogger.Sync()
		db.Close()
		return nil, err
	}

	// Metrics
	prom := metrics.NewPromMetrics()
	tracker := metrics.NewTracker(redisClient, prom, appLogger)

	// Pipeline services
	extractor := extract.New(searchRepo, extract.NewRegexPolicy(), appLogger)
	pagesPerSecond := 0.0
	if cfg.Worker.PageDelay > 0 {
		pagesPerSecond = 1.0 / cfg.Worker.PageDelay.Seconds()
	}
	dispatcher := dispatch.New(serperClient, searchRepo, extractor, dispatch.Config{
		ResultsPerPage: cfg.Worker.ResultsPerPage,
		PagesPerSecond: pagesPerSecond,
	}, appLogger)

	sched := scheduler.New(batchRepo, dispatcher, appLogger)
	submitter := validation.NewSubmitter(validationRepo, truelistClient, os.Getenv("VALIDATION_WEBHOOK_URL"), appLogger)
	reconciler := validation.NewReconciler(validationRepo, truelistClient,
		cfg.Worker.DetailPageSize, rate.Limit(1), appLogger)
	queueWorker := validation.NewQueueWorker(validationRepo, truelistClient,
		cfg.Worker.QueueBatchSize, appLogger)

	router := api.NewRouter(api.Deps{
		Batches:    batchRepo,
		QueueStats: batchRepo,
		Sessions:   searchRepo,
		Search:     dispatcher,
		Scheduler:  sched,
		Lists:      validationRepo,
		Submitter:  submitter,
		Reconciler: reconciler,
		Queue:      queueWorker,
		Tracker:    tracker,
		Prom:       prom,
		RedisPing:  &redisPinger{client: redisClient},
	}, cfg, appLogger)

	return &App{
		config:      cfg,
		logger:      appLogger,
		db:          db,
		redisClient: redisClient,
		Scheduler:   sched,
		QueueWorker: queueWorker,
		Reconciler:  reconciler,
		Tracker:     tracker,
		batches:     batchRepo,
		router:      router,
		version:     opts.Version,
	}, nil
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Logger returns the application logger
func (a *App) Logger() logger.Logger {
	return a.logger
}

// RunAPI starts the HTTP server and blocks until shutdown.
func (a *App) RunAPI(ctx context.Context) error {
	a.httpServer = &http.Server{
		Addr:         a.config.Server.Address,
		Handler:      a.router.Engine(),
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  idleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Starting API server",
			logger.String("address", a.config.Server.Address))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("Shutting down gracefully",
			logger.String("signal", sig.String()))
	case <-ctx.Done():
		a.logger.Info("Context cancelled, shutting down")
	case err := <-serverErr:
		a.logger.Error("Server error", logger.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server shutdown error", logger.Error(err))
		return err
	}

	a.logger.Info("Server stopped")
	return nil
}

// RunWorker drives the scheduler and the per-email validation queue on the
// configured cadence. The delay between a batch's jobs is realized here by
// the tick interval, never inside the scheduler.
func (a *App) RunWorker(ctx context.Context) error {
	interval := a.config.Worker.PollInterval
	a.logger.Info("Starting worker",
		logger.Duration("poll_interval", interval),
		logger.Int("queue_batch_size", a.config.Worker.QueueBatchSize))

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.runPass(sigCtx)

		select {
		case <-sigCtx.Done():
			a.logger.Info("Worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// runPass advances the batch queue and drains one validation queue batch.
// Failures are logged and the next tick retries; a pass never kills the
// worker.
func (a *App) runPass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	summary, err := a.Scheduler.Advance(ctx)
	if err != nil {
		a.logger.Error("Scheduler pass failed", logger.Error(err))
	} else {
		_ = a.Tracker.UpdateLastPass(ctx)
		for i := 0; i < summary.JobsFailed; i++ {
			_ = a.Tracker.IncrementJobErrors(ctx)
		}
	}

	if stats, err := a.batches.Stats(ctx); err != nil {
		a.logger.Warn("Queue stats fetch failed", logger.Error(err))
	} else {
		a.Tracker.SetQueueDepth(stats.PendingJobs)
	}

	if _, err := a.QueueWorker.ProcessPending(ctx); err != nil {
		a.logger.Error("Validation queue pass failed", logger.Error(err))
	}
}

// Close cleans up resources
func (a *App) Close() error {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", logger.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close database", logger.Error(err))
		}
	}
	return a.logger.Sync()
}

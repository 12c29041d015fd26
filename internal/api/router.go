// Package api exposes the pipeline over HTTP: batch queue management,
// search dispatch, validation submission and reconciliation, and stats.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/leadharvest/internal/config"
	"github.com/jonesrussell/leadharvest/internal/database"
	"github.com/jonesrussell/leadharvest/internal/dispatch"
	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/logger"
	"github.com/jonesrussell/leadharvest/internal/metrics"
	"github.com/jonesrussell/leadharvest/internal/scheduler"
	"github.com/jonesrussell/leadharvest/internal/validation"
)

const (
	healthCheckTimeout = 2 * time.Second
	serviceVersion     = "1.0.0"

	defaultListLimit   = 50
	defaultResultLimit = 100
)

// BatchStore is the batch queue surface the API needs.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch *domain.SearchBatch) error
	AddJobs(ctx context.Context, batchID string, jobs []domain.SearchJob) error
	GetBatch(ctx context.Context, id string) (*domain.SearchBatch, error)
	ListBatches(ctx context.Context, limit int) ([]domain.SearchBatch, error)
	SetBatchStatus(ctx context.Context, batchID string, status domain.BatchStatus) error
	ResetStaleRunningJobs(ctx context.Context, olderThan time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

// QueueStatsProvider reports queue-wide batch and job counts.
type QueueStatsProvider interface {
	Stats(ctx context.Context) (*database.QueueStats, error)
}

// SearchService dispatches one search invocation.
type SearchService interface {
	Search(ctx context.Context, query, location string, pageCount int) (*dispatch.Result, error)
}

// SessionStore reads back search sessions and their contacts.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*domain.SearchSession, error)
	ContactsBySession(ctx context.Context, sessionID string) ([]domain.Contact, error)
}

// QueueScheduler advances the batch queue by one pass.
type QueueScheduler interface {
	Advance(ctx context.Context) (*scheduler.PassSummary, error)
}

// ValidationStore is the list surface the API reads.
type ValidationStore interface {
	GetList(ctx context.Context, id string) (*domain.ValidationList, error)
	ListLists(ctx context.Context, userID string, limit int) ([]domain.ValidationList, error)
	ListResults(ctx context.Context, listID string, limit, offset int) ([]domain.ValidationResult, error)
	EnqueueItems(ctx context.Context, listID string, emails []string) error
}

// BatchSubmitter submits an email set for batch verification.
type BatchSubmitter interface {
	Submit(ctx context.Context, req validation.SubmitRequest) (*validation.SubmitResult, error)
}

// BatchReconciler pulls external batch state back into a list.
type BatchReconciler interface {
	Reconcile(ctx context.Context, externalBatchID string) (*validation.Status, error)
}

// QueueProcessor runs one pass over the per-email validation queue.
type QueueProcessor interface {
	ProcessPending(ctx context.Context) (*validation.PassSummary, error)
}

// Pinger covers the health checks against backing stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds the API dependencies
type Router struct {
	batches    BatchStore
	queueStats QueueStatsProvider
	sessions   SessionStore
	search     SearchService
	scheduler  QueueScheduler
	lists      ValidationStore
	submitter  BatchSubmitter
	reconciler BatchReconciler
	queue      QueueProcessor
	tracker    metrics.Recorder
	prom       *metrics.PromMetrics
	redisPing  Pinger
	cfg        *config.Config
	logger     logger.Logger
}

// Deps bundles the router's collaborators.
type Deps struct {
	Batches    BatchStore
	QueueStats QueueStatsProvider
	Sessions   SessionStore
	Search     SearchService
	Scheduler  QueueScheduler
	Lists      ValidationStore
	Submitter  BatchSubmitter
	Reconciler BatchReconciler
	Queue      QueueProcessor
	Tracker    metrics.Recorder
	Prom       *metrics.PromMetrics
	RedisPing  Pinger
}

// NewRouter creates a new API router
func NewRouter(deps Deps, cfg *config.Config, log logger.Logger) *Router {
	return &Router{
		batches:    deps.Batches,
		queueStats: deps.QueueStats,
		sessions:   deps.Sessions,
		search:     deps.Search,
		scheduler:  deps.Scheduler,
		lists:      deps.Lists,
		submitter:  deps.Submitter,
		reconciler: deps.Reconciler,
		queue:      deps.Queue,
		tracker:    deps.Tracker,
		prom:       deps.Prom,
		redisPing:  deps.RedisPing,
		cfg:        cfg,
		logger:     log,
	}
}

// Engine assembles the gin engine with middleware and all routes.
func (r *Router) Engine() *gin.Engine {
	if r.cfg != nil && !r.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(r.logger))
	router.Use(corsMiddleware())

	router.GET("/health", r.healthCheck)
	if r.prom != nil {
		router.GET("/metrics", gin.WrapH(r.prom.Handler()))
	}

	r.setupServiceRoutes(router)
	return router
}

// setupServiceRoutes configures service-specific API routes.
func (r *Router) setupServiceRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")

	// Searches
	searches := v1.Group("/searches")
	searches.POST("", r.dispatchSearch)
	searches.GET("/:id", r.getSession)
	searches.GET("/:id/contacts", r.getSessionContacts)

	// Batch queue
	batches := v1.Group("/batches")
	batches.POST("/advance", r.advanceQueue) // More specific route before :id
	batches.POST("/reset-stale", r.resetStaleJobs)
	batches.GET("", r.listBatches)
	batches.POST("", r.createBatch)
	batches.GET("/:id", r.getBatch)
	batches.POST("/:id/jobs", r.addJobs)
	batches.POST("/:id/start", r.startBatch)
	batches.POST("/:id/pause", r.pauseBatch)
	batches.POST("/:id/resume", r.resumeBatch)

	// Validation
	val := v1.Group("/validation")
	val.POST("/lists", r.submitList)
	val.GET("/lists", r.listValidationLists)
	val.GET("/lists/:id", r.getValidationList)
	val.GET("/lists/:id/results", r.listValidationResults)
	val.POST("/lists/:id/reconcile", r.reconcileList)
	val.POST("/lists/:id/queue", r.enqueueListItems)
	val.POST("/webhook", r.validationWebhook)
	val.POST("/queue/process", r.processQueue)

	// Stats
	stats := v1.Group("/stats")
	stats.GET("/queue", r.getQueueStats)
	stats.GET("/pipeline", r.getPipelineStats)
}

// healthCheck reports degraded rather than failing outright when a backing
// store is unreachable.
func (r *Router) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	checks := gin.H{}

	if err := r.batches.Ping(ctx); err != nil {
		status = "degraded"
		checks["database"] = err.Error()
	} else {
		checks["database"] = "ok"
	}

	if r.redisPing != nil {
		if err := r.redisPing.Ping(ctx); err != nil {
			status = "degraded"
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"service": "leadharvest",
		"version": serviceVersion,
		"checks":  checks,
	})
}

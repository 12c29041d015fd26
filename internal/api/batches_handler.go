package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/logger"
)

const defaultStaleAfter = 30 * time.Minute

// BatchCreateRequest is the payload for creating a search batch.
type BatchCreateRequest struct {
	Name         string             `json:"name"          binding:"required"`
	Description  string             `json:"description"`
	DelaySeconds int                `json:"delay_seconds"`
	Jobs         []JobCreateRequest `json:"jobs"`
}

// JobCreateRequest is one job inside a batch payload.
type JobCreateRequest struct {
	Query    string `json:"query"    binding:"required"`
	Location string `json:"location"`
	Pages    int    `json:"pages"`
}

// createBatch creates a new batch, optionally with its initial jobs
// POST /api/v1/batches
func (r *Router) createBatch(c *gin.Context) {
	ctx := c.Request.Context()

	var req BatchCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	batch, err := domain.NewSearchBatch(req.Name, req.Description, req.DelaySeconds)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := r.batches.CreateBatch(ctx, batch); err != nil {
		handleRepositoryError(c, err, "batch", "create")
		return
	}

	if len(req.Jobs) > 0 {
		jobs := jobsFromRequest(req.Jobs)
		if err := r.batches.AddJobs(ctx, batch.ID, jobs); err != nil {
			handleRepositoryError(c, err, "batch jobs", "create")
			return
		}
		batch.TotalJobs = len(jobs)
	}

	c.JSON(http.StatusCreated, batch)
}

// addJobs appends jobs to an existing batch
// POST /api/v1/batches/:id/jobs
func (r *Router) addJobs(c *gin.Context) {
	ctx := c.Request.Context()
	batchID := c.Param("id")

	var req struct {
		Jobs []JobCreateRequest `json:"jobs" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	if _, err := r.batches.GetBatch(ctx, batchID); err != nil {
		handleRepositoryError(c, err, "batch", "get")
		return
	}

	jobs := jobsFromRequest(req.Jobs)
	if err := r.batches.AddJobs(ctx, batchID, jobs); err != nil {
		handleRepositoryError(c, err, "batch jobs", "create")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"batch_id": batchID,
		"added":    len(jobs),
	})
}

func jobsFromRequest(reqs []JobCreateRequest) []domain.SearchJob {
	jobs := make([]domain.SearchJob, 0, len(reqs))
	for _, jr := range reqs {
		jobs = append(jobs, domain.SearchJob{
			Query:    jr.Query,
			Location: jr.Location,
			Pages:    jr.Pages,
		})
	}
	return jobs
}

// getBatch retrieves a batch by ID
// GET /api/v1/batches/:id
func (r *Router) getBatch(c *gin.Context) {
	batch, err := r.batches.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleRepositoryError(c, err, "batch", "get")
		return
	}
	c.JSON(http.StatusOK, batch)
}

// listBatches returns batches, newest first
// GET /api/v1/batches?limit=50
func (r *Router) listBatches(c *gin.Context) {
	limit := intQuery(c, "limit", defaultListLimit)

	batches, err := r.batches.ListBatches(c.Request.Context(), limit)
	if err != nil {
		handleRepositoryError(c, err, "batches", "list")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"batches": batches,
		"count":   len(batches),
	})
}

// startBatch transitions a batch into running
// POST /api/v1/batches/:id/start
func (r *Router) startBatch(c *gin.Context) {
	r.setStatus(c, domain.BatchStatusRunning, "start")
}

// pauseBatch transitions a batch into paused; the scheduler skips it until
// resumed
// POST /api/v1/batches/:id/pause
func (r *Router) pauseBatch(c *gin.Context) {
	r.setStatus(c, domain.BatchStatusPaused, "pause")
}

// resumeBatch transitions a paused batch back into running
// POST /api/v1/batches/:id/resume
func (r *Router) resumeBatch(c *gin.Context) {
	r.setStatus(c, domain.BatchStatusRunning, "resume")
}

func (r *Router) setStatus(c *gin.Context, status domain.BatchStatus, operation string) {
	batchID := c.Param("id")
	if err := r.batches.SetBatchStatus(c.Request.Context(), batchID, status); err != nil {
		handleRepositoryError(c, err, "batch", operation)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"batch_id": batchID,
		"status":   status,
	})
}

// advanceQueue runs one scheduler pass over all running batches
// POST /api/v1/batches/advance
func (r *Router) advanceQueue(c *gin.Context) {
	ctx := c.Request.Context()

	summary, err := r.scheduler.Advance(ctx)
	if err != nil {
		r.logger.Error("scheduler pass failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to advance batch queue",
		})
		return
	}

	if r.tracker != nil {
		_ = r.tracker.UpdateLastPass(ctx)
		for i := 0; i < summary.JobsFailed; i++ {
			_ = r.tracker.IncrementJobErrors(ctx)
		}
	}

	c.JSON(http.StatusOK, summary)
}

// resetStaleJobs resets jobs stuck in running back to pending. The queue
// never reclaims running jobs on its own; this is the operator's lever.
// POST /api/v1/batches/reset-stale?older_than_minutes=30
func (r *Router) resetStaleJobs(c *gin.Context) {
	olderThan := time.Duration(intQuery(c, "older_than_minutes", int(defaultStaleAfter.Minutes()))) * time.Minute

	reset, err := r.batches.ResetStaleRunningJobs(c.Request.Context(), olderThan)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to reset stale jobs",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reset":      reset,
		"older_than": olderThan.String(),
	})
}

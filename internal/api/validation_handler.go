package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/logger"
	"github.com/jonesrussell/leadharvest/internal/validation"
)

// SubmitListRequest is the payload for submitting a validation list.
type SubmitListRequest struct {
	Name   string   `json:"name"`
	UserID string   `json:"user_id"`
	ListID string   `json:"list_id"`
	Emails []string `json:"emails" binding:"required,min=1"`
}

// submitList normalizes the email set and submits it as one external
// verification batch
// POST /api/v1/validation/lists
func (r *Router) submitList(c *gin.Context) {
	var req SubmitListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	result, err := r.submitter.Submit(c.Request.Context(), validation.SubmitRequest{
		Emails:         req.Emails,
		ListName:       req.Name,
		UserID:         req.UserID,
		ExistingListID: req.ListID,
	})
	if err != nil {
		handleRepositoryError(c, err, "validation list", "submit")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// getValidationList retrieves a validation list by ID
// GET /api/v1/validation/lists/:id
func (r *Router) getValidationList(c *gin.Context) {
	list, err := r.lists.GetList(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleRepositoryError(c, err, "validation list", "get")
		return
	}
	c.JSON(http.StatusOK, list)
}

// listValidationLists returns a user's validation lists, newest first
// GET /api/v1/validation/lists?user_id=...&limit=50
func (r *Router) listValidationLists(c *gin.Context) {
	limit := intQuery(c, "limit", defaultListLimit)

	lists, err := r.lists.ListLists(c.Request.Context(), c.Query("user_id"), limit)
	if err != nil {
		handleRepositoryError(c, err, "validation lists", "list")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"lists": lists,
		"count": len(lists),
	})
}

// listValidationResults returns per-email results for a list
// GET /api/v1/validation/lists/:id/results?limit=100&offset=0
func (r *Router) listValidationResults(c *gin.Context) {
	limit := intQuery(c, "limit", defaultResultLimit)
	offset := offsetQuery(c)

	results, err := r.lists.ListResults(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		handleRepositoryError(c, err, "validation results", "list")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}

// reconcileList polls the external batch behind a list and pulls its state
// back in
// POST /api/v1/validation/lists/:id/reconcile
func (r *Router) reconcileList(c *gin.Context) {
	ctx := c.Request.Context()

	list, err := r.lists.GetList(ctx, c.Param("id"))
	if err != nil {
		handleRepositoryError(c, err, "validation list", "get")
		return
	}
	if list.ExternalBatchID == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error": "validation list has no external batch",
		})
		return
	}

	r.reconcile(c, *list.ExternalBatchID)
}

// validationWebhook is the provider's push entry point for batch completion
// POST /api/v1/validation/webhook
func (r *Router) validationWebhook(c *gin.Context) {
	var payload struct {
		ID      string `json:"id"`
		BatchID string `json:"batch_id"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid webhook payload",
		})
		return
	}

	batchID := payload.BatchID
	if batchID == "" {
		batchID = payload.ID
	}
	if batchID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "webhook payload missing batch id",
		})
		return
	}

	r.reconcile(c, batchID)
}

func (r *Router) reconcile(c *gin.Context, externalBatchID string) {
	ctx := c.Request.Context()

	status, err := r.reconciler.Reconcile(ctx, externalBatchID)
	if err != nil {
		r.logger.Warn("reconciliation failed",
			logger.String("external_batch_id", externalBatchID),
			logger.Error(err))
		handleRepositoryError(c, err, "validation list", "reconcile")
		return
	}

	if r.tracker != nil && status.Completed {
		r.trackVerdicts(c, status.Counts)
	}

	c.JSON(http.StatusOK, status)
}

func (r *Router) trackVerdicts(c *gin.Context, counts domain.BucketCounts) {
	ctx := c.Request.Context()
	for verdict, count := range map[domain.Verdict]int{
		domain.VerdictDeliverable:   counts.Deliverable,
		domain.VerdictUndeliverable: counts.Undeliverable,
		domain.VerdictRisky:         counts.Risky,
		domain.VerdictUnknown:       counts.Unknown,
	} {
		for i := 0; i < count; i++ {
			_ = r.tracker.IncrementVerdict(ctx, verdict)
		}
	}
}

// enqueueListItems puts emails on the per-email validation queue for a list
// POST /api/v1/validation/lists/:id/queue
func (r *Router) enqueueListItems(c *gin.Context) {
	var req struct {
		Emails []string `json:"emails" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	listID := c.Param("id")
	if _, err := r.lists.GetList(c.Request.Context(), listID); err != nil {
		handleRepositoryError(c, err, "validation list", "get")
		return
	}

	emails := validation.NormalizeEmails(req.Emails)
	if len(emails) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": domain.ErrNoEmails.Error(),
		})
		return
	}

	if err := r.lists.EnqueueItems(c.Request.Context(), listID, emails); err != nil {
		handleRepositoryError(c, err, "queue items", "create")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"list_id":  listID,
		"enqueued": len(emails),
	})
}

// processQueue runs one pass over the per-email validation queue
// POST /api/v1/validation/queue/process
func (r *Router) processQueue(c *gin.Context) {
	summary, err := r.queue.ProcessPending(c.Request.Context())
	if err != nil {
		r.logger.Error("queue pass failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process validation queue",
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}

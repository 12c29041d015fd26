package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/leadharvest/internal/logger"
)

// getQueueStats returns batch and job counts from the database
// GET /api/v1/stats/queue
func (r *Router) getQueueStats(c *gin.Context) {
	stats, err := r.queueStats.Stats(c.Request.Context())
	if err != nil {
		r.logger.Error("Failed to get queue stats",
			logger.Error(err),
			logger.String("path", c.Request.URL.Path))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve queue statistics",
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// getPipelineStats returns the Redis-backed pipeline counters
// GET /api/v1/stats/pipeline
func (r *Router) getPipelineStats(c *gin.Context) {
	if r.tracker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Metrics tracking is not configured",
		})
		return
	}

	stats, err := r.tracker.GetStats(c.Request.Context())
	if err != nil {
		r.logger.Error("Failed to get pipeline stats",
			logger.Error(err),
			logger.String("path", c.Request.URL.Path))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve pipeline statistics",
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/leadharvest/internal/domain"
)

// handleRepositoryError handles common repository errors
func handleRepositoryError(c *gin.Context, err error, entityType, operation string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": entityType + " not found",
		})
	case errors.Is(err, domain.ErrAlreadyReconciled):
		c.JSON(http.StatusConflict, gin.H{
			"error": entityType + " already reconciled",
		})
	case errors.Is(err, domain.ErrInvalidBatch), errors.Is(err, domain.ErrNoEmails):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to " + operation + " " + entityType,
		})
	}
}

// intQuery parses a positive integer query parameter with a fallback.
func intQuery(c *gin.Context, name string, fallback int) int {
	value, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(fallback)))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// offsetQuery parses a non-negative offset query parameter.
func offsetQuery(c *gin.Context) int {
	value, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || value < 0 {
		return 0
	}
	return value
}

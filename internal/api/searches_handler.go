package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/leadharvest/internal/logger"
)

// SearchRequest is the payload for dispatching one search.
type SearchRequest struct {
	Query    string `json:"query"    binding:"required"`
	Location string `json:"location"`
	Pages    int    `json:"pages"`
}

// dispatchSearch runs one search invocation synchronously
// POST /api/v1/searches
func (r *Router) dispatchSearch(c *gin.Context) {
	ctx := c.Request.Context()

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	result, err := r.search.Search(ctx, req.Query, req.Location, req.Pages)
	if err != nil {
		r.logger.Error("search dispatch failed",
			logger.String("query", req.Query),
			logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to dispatch search",
		})
		return
	}

	if r.tracker != nil {
		if trackErr := r.tracker.IncrementSearches(ctx); trackErr == nil {
			_ = r.tracker.AddContacts(ctx, len(result.Contacts))
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": result.SessionID,
		"contacts":   result.Contacts,
		"count":      len(result.Contacts),
	})
}

// getSession retrieves a search session by ID
// GET /api/v1/searches/:id
func (r *Router) getSession(c *gin.Context) {
	session, err := r.sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleRepositoryError(c, err, "search session", "get")
		return
	}
	c.JSON(http.StatusOK, session)
}

// getSessionContacts returns the contacts owned by a search session
// GET /api/v1/searches/:id/contacts
func (r *Router) getSessionContacts(c *gin.Context) {
	contacts, err := r.sessions.ContactsBySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleRepositoryError(c, err, "contacts", "list")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"contacts": contacts,
		"count":    len(contacts),
	})
}

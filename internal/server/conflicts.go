package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hferris/dutywatch/internal/models"
	"github.com/hferris/dutywatch/internal/store"
)

func (a *api) handleListConflicts(c *gin.Context) {
	status := models.ConflictStatus(c.Query("status"))
	switch status {
	case "", models.ConflictDetected, models.ConflictEscalated, models.ConflictResolved:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
		return
	}

	conflicts, err := store.ListConflicts(a.db, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": conflicts})
}

func (a *api) handleGetConflict(c *gin.Context) {
	conflict, err := store.GetConflict(a.db, c.Param("id"))
	if err != nil {
		a.respondStoreErr(c, err)
		return
	}
	attempts, err := store.ListAttempts(a.db, conflict.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflict": conflict, "attempts": attempts})
}

func (a *api) handleResolveConflict(c *gin.Context) {
	var req struct {
		Strategy models.Strategy `json:"strategy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	if req.Strategy == "" {
		req.Strategy = models.StrategyEnforceRule
	}
	known := false
	for _, k := range models.KnownStrategies {
		if k == req.Strategy {
			known = true
			break
		}
	}
	if !known {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown strategy"})
		return
	}

	outcome, err := a.resolver.Resolve(c.Request.Context(), c.Param("id"), req.Strategy)
	if err != nil {
		a.respondStoreErr(c, err)
		return
	}
	// A strategy that ran but found no viable outcome is a normal result,
	// not an HTTP error.
	c.JSON(http.StatusOK, outcome)
}

func (a *api) handleListAttempts(c *gin.Context) {
	if _, err := store.GetConflict(a.db, c.Param("id")); err != nil {
		a.respondStoreErr(c, err)
		return
	}
	attempts, err := store.ListAttempts(a.db, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hferris/dutywatch/internal/reconcile"
)

func (a *api) handlePendingPairs(c *gin.Context) {
	pairs, err := a.coordinator.PendingPairs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pairs": pairs})
}

func (a *api) handleApplyResolutions(c *gin.Context) {
	var req struct {
		Resolutions []reconcile.Resolution `json:"resolutions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	result, err := a.coordinator.Apply(req.Resolutions)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// A rolled-back batch is a normal result; the failures name the pairs
	// that blocked it.
	c.JSON(http.StatusOK, result)
}

func (a *api) handleApplyBatch(c *gin.Context) {
	var req struct {
		Choice reconcile.BatchChoice `json:"choice"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	result, err := a.coordinator.ApplyBatch(req.Choice)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleSync runs an on-demand import over the requested window, defaulting
// to the next 30 days.
func (a *api) handleSync(c *gin.Context) {
	if a.syncer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "external sync is not configured"})
		return
	}

	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	from := time.Now().UTC().Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, 30)
	if req.From != "" {
		parsed, err := time.Parse(dateLayout, req.From)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
			return
		}
		from = parsed
	}
	if req.To != "" {
		parsed, err := time.Parse(dateLayout, req.To)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
			return
		}
		to = parsed
	}

	report, err := a.syncer.Run(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

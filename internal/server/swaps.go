package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hferris/dutywatch/internal/broadcast"
	"github.com/hferris/dutywatch/internal/models"
	"github.com/hferris/dutywatch/internal/resolve"
	"github.com/hferris/dutywatch/internal/store"
)

// handleRecommendations ranks swap candidates for a shift. Read-only; safe
// to call repeatedly while a human browses options.
func (a *api) handleRecommendations(c *gin.Context) {
	shift, err := store.GetShift(a.db, c.Param("id"))
	if err != nil {
		a.respondStoreErr(c, err)
		return
	}
	requestor, err := store.GetProvider(a.db, shift.ProviderID)
	if err != nil {
		a.respondStoreErr(c, err)
		return
	}

	recs, err := resolve.RankSwapCandidates(a.db, *shift, *requestor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"shiftId": shift.ID, "recommendations": recs})
}

// handleCreateSwap opens a human-initiated swap request for a shift.
func (a *api) handleCreateSwap(c *gin.Context) {
	shift, err := store.GetShift(a.db, c.Param("id"))
	if err != nil {
		a.respondStoreErr(c, err)
		return
	}

	var req struct {
		RecipientID string `json:"recipientId"`
		Reason      string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	if req.RecipientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipientId is required"})
		return
	}
	if _, err := store.GetProvider(a.db, req.RecipientID); err != nil {
		a.respondStoreErr(c, err)
		return
	}

	swap := &models.SwapRequest{
		RequestorID: shift.ProviderID,
		RecipientID: req.RecipientID,
		ShiftID:     shift.ID,
		Reason:      req.Reason,
	}
	if err := store.InsertSwapRequest(a.db, swap); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := store.UpdateShiftStatus(a.db, shift.ID, models.ShiftPendingSwap); err != nil {
		a.respondStoreErr(c, err)
		return
	}

	a.publish(broadcast.NewEvent(broadcast.EventSwapRequested, map[string]any{
		"requestId":   swap.ID,
		"shiftId":     shift.ID,
		"recipientId": swap.RecipientID,
	}))
	a.recordNotification(swap.RecipientID, broadcast.EventSwapRequested, map[string]any{
		"requestId":   swap.ID,
		"shiftId":     shift.ID,
		"requestorId": swap.RequestorID,
	})
	c.JSON(http.StatusCreated, swap)
}

func (a *api) handleListSwaps(c *gin.Context) {
	providerID := c.Query("providerId")
	if providerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "providerId is required"})
		return
	}
	swaps, err := store.ListSwapRequests(a.db, providerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"swaps": swaps})
}

func (a *api) handleAcceptSwap(c *gin.Context) {
	req, err := a.resolver.AcceptSwap(c.Param("id"))
	if err != nil {
		a.respondStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (a *api) handleRejectSwap(c *gin.Context) {
	req, err := a.resolver.RejectSwap(c.Param("id"))
	if err != nil {
		a.respondStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (a *api) handleCancelSwap(c *gin.Context) {
	req, err := a.resolver.CancelSwap(c.Param("id"))
	if err != nil {
		a.respondStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hferris/dutywatch/internal/broadcast"
	"github.com/hferris/dutywatch/internal/detect"
	"github.com/hferris/dutywatch/internal/models"
	"github.com/hferris/dutywatch/internal/store"
)

const dateLayout = "2006-01-02"

// shiftRequest is the write payload for shift create/update and detect.
type shiftRequest struct {
	ProviderID string `json:"providerId"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	Notes      string `json:"notes"`
	ShiftID    string `json:"shiftId"` // detect only: exclude own id on edit
}

// detectionView is the wire shape of one detection.
type detectionView struct {
	Type        models.ConflictType `json:"type"`
	ShiftIDs    []string            `json:"shiftIds"`
	ProviderIDs []string            `json:"providerIds"`
	Description string              `json:"description"`
	Blocking    bool                `json:"blocking"`
}

func viewDetections(ds []detect.Detection) []detectionView {
	out := make([]detectionView, 0, len(ds))
	for _, d := range ds {
		out = append(out, detectionView{
			Type:        d.Type,
			ShiftIDs:    d.ShiftIDs,
			ProviderIDs: d.ProviderIDs,
			Description: d.Description,
			Blocking:    d.Blocking,
		})
	}
	return out
}

// handleDetect runs detection for a candidate without persisting anything.
func (a *api) handleDetect(c *gin.Context) {
	var req shiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	candidate, provider, ok := a.buildCandidate(c, req, req.ShiftID)
	if !ok {
		return
	}

	detections, ok := a.runDetection(c, *candidate, provider)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conflicts": viewDetections(detections),
		"blocking":  detect.HasBlocking(detections),
	})
}

// handleCreateShift writes a shift if detection finds nothing blocking.
// With ?force=true the shift is written anyway and every detection lands
// as an open conflict.
func (a *api) handleCreateShift(c *gin.Context) {
	var req shiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	force := c.Query("force") == "true"

	id, err := store.NewShiftID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	candidate, provider, ok := a.buildCandidate(c, req, id)
	if !ok {
		return
	}
	candidate.ID = id

	detections, ok := a.runDetection(c, *candidate, provider)
	if !ok {
		return
	}
	if detect.HasBlocking(detections) && !force {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "candidate shift conflicts with the existing schedule",
			"conflicts": viewDetections(detections),
		})
		return
	}

	if err := store.CreateShift(a.db, candidate); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	a.publish(broadcast.NewEvent(broadcast.EventShiftCreated, map[string]any{
		"shiftId":    candidate.ID,
		"providerId": candidate.ProviderID,
	}))

	conflicts := a.persistDetections(c, detections)
	c.JSON(http.StatusCreated, gin.H{
		"shift":     candidate,
		"conflicts": conflicts,
	})
}

// handleUpdateShift re-runs detection with the shift's own id excluded and
// applies the same block-or-force rule as create.
func (a *api) handleUpdateShift(c *gin.Context) {
	id := c.Param("id")
	existing, err := store.GetShift(a.db, id)
	if err != nil {
		a.respondStoreErr(c, err)
		return
	}

	var req shiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	if req.ProviderID == "" {
		req.ProviderID = existing.ProviderID
	}
	force := c.Query("force") == "true"

	candidate, provider, ok := a.buildCandidate(c, req, id)
	if !ok {
		return
	}
	candidate.ID = id

	detections, ok := a.runDetection(c, *candidate, provider)
	if !ok {
		return
	}
	if detect.HasBlocking(detections) && !force {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "edited shift conflicts with the existing schedule",
			"conflicts": viewDetections(detections),
		})
		return
	}

	patch := map[string]interface{}{
		"provider_id": candidate.ProviderID,
		"start_date":  candidate.StartDate,
		"end_date":    candidate.EndDate,
		"notes":       candidate.Notes,
	}
	if err := a.db.Model(&models.Shift{}).Where("id = ?", id).Updates(patch).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	a.publish(broadcast.NewEvent(broadcast.EventShiftUpdated, map[string]any{
		"shiftId":    id,
		"providerId": candidate.ProviderID,
	}))

	conflicts := a.persistDetections(c, detections)
	updated, err := store.GetShift(a.db, id)
	if err != nil {
		a.respondStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"shift":     updated,
		"conflicts": conflicts,
	})
}

// handleDeleteShift retires a shift. Shifts are never hard-deleted once
// they may be referenced by the audit trail.
func (a *api) handleDeleteShift(c *gin.Context) {
	id := c.Param("id")
	if err := store.UpdateShiftStatus(a.db, id, models.ShiftInactive); err != nil {
		a.respondStoreErr(c, err)
		return
	}
	a.publish(broadcast.NewEvent(broadcast.EventShiftDeleted, map[string]any{
		"shiftId": id,
	}))
	c.JSON(http.StatusOK, gin.H{"shiftId": id, "status": models.ShiftInactive})
}

// buildCandidate validates the payload and loads the provider. Validation
// failures respond 400 before detection ever runs.
func (a *api) buildCandidate(c *gin.Context, req shiftRequest, excludeID string) (*models.Shift, *models.Provider, bool) {
	if req.ProviderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "providerId is required"})
		return nil, nil, false
	}
	if req.StartDate == "" || req.EndDate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "startDate and endDate are required"})
		return nil, nil, false
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid startDate %q", req.StartDate)})
		return nil, nil, false
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid endDate %q", req.EndDate)})
		return nil, nil, false
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endDate is before startDate"})
		return nil, nil, false
	}

	provider, err := store.GetProvider(a.db, req.ProviderID)
	if err != nil {
		a.respondStoreErr(c, err)
		return nil, nil, false
	}

	return &models.Shift{
		ID:         excludeID,
		ProviderID: provider.ID,
		StartDate:  start,
		EndDate:    end,
		Status:     models.ShiftConfirmed,
		Source:     models.SourceManual,
		Notes:      req.Notes,
	}, provider, true
}

func (a *api) runDetection(c *gin.Context, candidate models.Shift, provider *models.Provider) ([]detect.Detection, bool) {
	others, err := store.FindConfirmedShifts(a.db, candidate.ProviderID, candidate.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	detections, err := detect.Detect(candidate, others, *provider)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return detections, true
}

// persistDetections opens a conflict per detection on an accepted write and
// broadcasts each. Advisory detections land as conflicts too; they just
// never blocked the write.
func (a *api) persistDetections(c *gin.Context, detections []detect.Detection) []models.Conflict {
	conflicts := make([]models.Conflict, 0, len(detections))
	for _, d := range detections {
		conflict := models.Conflict{
			Type:        d.Type,
			ShiftIDs:    models.EncodeStrings(d.ShiftIDs),
			ProviderIDs: models.EncodeStrings(d.ProviderIDs),
			Description: d.Description,
		}
		if err := store.InsertConflict(a.db, &conflict); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			continue
		}
		conflicts = append(conflicts, conflict)
		a.publish(broadcast.NewEvent(broadcast.EventConflictDetected, map[string]any{
			"conflictId":  conflict.ID,
			"type":        conflict.Type,
			"description": conflict.Description,
		}))
	}
	return conflicts
}

func (a *api) respondStoreErr(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (a *api) publish(evt broadcast.Envelope) {
	if a.hub != nil {
		a.hub.Broadcast(evt)
	}
}

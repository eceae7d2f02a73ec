package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hferris/dutywatch/internal/models"
	"gorm.io/gorm"
)

// InsertSwapRequest persists a proposed shift exchange.
func InsertSwapRequest(db *gorm.DB, req *models.SwapRequest) error {
	if req == nil {
		return fmt.Errorf("store: swap request is required")
	}
	if req.RequestorID == "" || req.RecipientID == "" {
		return fmt.Errorf("store: swap requestor and recipient are required")
	}
	if req.ShiftID == "" {
		return fmt.Errorf("store: swap shift id is required")
	}
	if req.RequestorID == req.RecipientID {
		return fmt.Errorf("store: swap requestor and recipient must differ")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.SwapPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	if err := db.Create(req).Error; err != nil {
		return fmt.Errorf("store: insert swap request: %w", err)
	}
	return nil
}

// GetSwapRequest loads one swap request by id.
func GetSwapRequest(db *gorm.DB, id string) (*models.SwapRequest, error) {
	if id == "" {
		return nil, fmt.Errorf("store: swap request id is required")
	}
	var req models.SwapRequest
	if err := db.First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store: swap request %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: swap request %s: %w", id, err)
	}
	return &req, nil
}

// UpdateSwapStatus transitions a pending swap request to a terminal state.
// Only pending requests can transition; anything else reports not found so
// two concurrent responders cannot both succeed.
func UpdateSwapStatus(db *gorm.DB, id string, status models.SwapStatus) error {
	switch status {
	case models.SwapAccepted, models.SwapRejected, models.SwapCancelled:
	default:
		return fmt.Errorf("store: invalid swap transition to %q", status)
	}
	now := time.Now()
	result := db.Model(&models.SwapRequest{}).
		Where("id = ? AND status = ?", id, models.SwapPending).
		Updates(map[string]interface{}{"status": status, "responded_at": &now})
	if result.Error != nil {
		return fmt.Errorf("store: update swap %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: pending swap %s: %w", id, ErrNotFound)
	}
	return nil
}

// CancelSiblingRequests cancels every other pending request for the same
// shift once one has been accepted.
func CancelSiblingRequests(db *gorm.DB, shiftID, acceptedID string) error {
	if shiftID == "" {
		return fmt.Errorf("store: shift id is required")
	}
	now := time.Now()
	err := db.Model(&models.SwapRequest{}).
		Where("shift_id = ? AND id != ? AND status = ?", shiftID, acceptedID, models.SwapPending).
		Updates(map[string]interface{}{"status": models.SwapCancelled, "responded_at": &now}).Error
	if err != nil {
		return fmt.Errorf("store: cancel siblings for %s: %w", shiftID, err)
	}
	return nil
}

// ListSwapRequests returns swap requests involving a provider (as requestor
// or recipient), newest first.
func ListSwapRequests(db *gorm.DB, providerID string) ([]models.SwapRequest, error) {
	if providerID == "" {
		return nil, fmt.Errorf("store: providerID is required")
	}
	var reqs []models.SwapRequest
	if err := db.Where("requestor_id = ? OR recipient_id = ?", providerID, providerID).
		Order("created_at DESC").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("store: swap requests for %s: %w", providerID, err)
	}
	return reqs, nil
}

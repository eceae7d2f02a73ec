package resolve

import (
	"errors"
	"fmt"
	"time"

	"github.com/hferris/dutywatch/internal/broadcast"
	"github.com/hferris/dutywatch/internal/models"
	"github.com/hferris/dutywatch/internal/store"
	"gorm.io/gorm"
)

// AcceptSwap hands the shift to the recipient: the request transitions to
// accepted, the shift is reassigned and marked swapped, sibling pending
// requests for the same shift are cancelled, and the originating conflict
// (if any) resolves. All of it commits in one transaction; a request that
// is no longer pending aborts the whole thing.
func (s *Service) AcceptSwap(id string) (*models.SwapRequest, error) {
	req, err := store.GetSwapRequest(s.DB, id)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := store.UpdateSwapStatus(tx, id, models.SwapAccepted); err != nil {
			return err
		}
		if err := store.ReassignShift(tx, req.ShiftID, req.RecipientID); err != nil {
			return err
		}
		if err := store.UpdateShiftStatus(tx, req.ShiftID, models.ShiftSwapped); err != nil {
			return err
		}
		if err := store.CancelSiblingRequests(tx, req.ShiftID, id); err != nil {
			return err
		}
		if req.ConflictID != "" {
			details := encodeDetails(map[string]any{
				"strategy":      models.StrategySuggestSwap,
				"swapRequestId": req.ID,
				"shiftId":       req.ShiftID,
				"acceptedBy":    req.RecipientID,
				"resolvedAt":    time.Now().UTC().Format(time.RFC3339),
			})
			err := store.MarkConflictResolved(tx, req.ConflictID, details)
			// The conflict may already be resolved through another path;
			// the swap itself still stands.
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve: accept swap %s: %w", id, err)
	}

	s.publish(broadcast.NewEvent(broadcast.EventSwapResponded, map[string]any{
		"requestId":  req.ID,
		"shiftId":    req.ShiftID,
		"status":     models.SwapAccepted,
		"providerId": req.RecipientID,
	}))
	s.notifyProvider(req.RequestorID, broadcast.EventSwapResponded, map[string]any{
		"requestId": req.ID,
		"shiftId":   req.ShiftID,
		"status":    models.SwapAccepted,
	})
	if req.ConflictID != "" {
		s.publish(broadcast.NewEvent(broadcast.EventConflictResolved, map[string]any{
			"conflictId": req.ConflictID,
			"strategy":   models.StrategySuggestSwap,
		}))
	}

	req.Status = models.SwapAccepted
	return req, nil
}

// RejectSwap declines a pending request. If it was the last pending request
// for its shift, the shift returns to confirmed.
func (s *Service) RejectSwap(id string) (*models.SwapRequest, error) {
	req, err := s.closeSwap(id, models.SwapRejected)
	if err != nil {
		return nil, err
	}
	s.publish(broadcast.NewEvent(broadcast.EventSwapResponded, map[string]any{
		"requestId": req.ID,
		"shiftId":   req.ShiftID,
		"status":    models.SwapRejected,
	}))
	s.notifyProvider(req.RequestorID, broadcast.EventSwapResponded, map[string]any{
		"requestId": req.ID,
		"shiftId":   req.ShiftID,
		"status":    models.SwapRejected,
	})
	return req, nil
}

// CancelSwap withdraws a pending request, typically by its requestor.
func (s *Service) CancelSwap(id string) (*models.SwapRequest, error) {
	req, err := s.closeSwap(id, models.SwapCancelled)
	if err != nil {
		return nil, err
	}
	s.publish(broadcast.NewEvent(broadcast.EventSwapCancelled, map[string]any{
		"requestId": req.ID,
		"shiftId":   req.ShiftID,
	}))
	s.notifyProvider(req.RecipientID, broadcast.EventSwapCancelled, map[string]any{
		"requestId": req.ID,
		"shiftId":   req.ShiftID,
	})
	return req, nil
}

func (s *Service) closeSwap(id string, status models.SwapStatus) (*models.SwapRequest, error) {
	req, err := store.GetSwapRequest(s.DB, id)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := store.UpdateSwapStatus(tx, id, status); err != nil {
			return err
		}
		return restoreShiftIfIdle(tx, req.ShiftID)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve: close swap %s: %w", id, err)
	}

	req.Status = status
	return req, nil
}

// restoreShiftIfIdle returns a pending_swap shift to confirmed once no
// pending requests for it remain.
func restoreShiftIfIdle(tx *gorm.DB, shiftID string) error {
	var pending int64
	err := tx.Model(&models.SwapRequest{}).
		Where("shift_id = ? AND status = ?", shiftID, models.SwapPending).
		Count(&pending).Error
	if err != nil {
		return fmt.Errorf("count pending swaps for %s: %w", shiftID, err)
	}
	if pending > 0 {
		return nil
	}
	err = tx.Model(&models.Shift{}).
		Where("id = ? AND status = ?", shiftID, models.ShiftPendingSwap).
		Update("status", models.ShiftConfirmed).Error
	if err != nil {
		return fmt.Errorf("restore shift %s: %w", shiftID, err)
	}
	return nil
}

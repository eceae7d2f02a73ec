package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/hferris/dutywatch/internal/models"
	"gorm.io/gorm"
)

// InsertConflict persists a detected conflict, assigning an id and
// detection timestamp if unset.
func InsertConflict(db *gorm.DB, c *models.Conflict) error {
	if c == nil {
		return fmt.Errorf("store: conflict is required")
	}
	if c.Type == "" {
		return fmt.Errorf("store: conflict type is required")
	}
	if c.ID == "" {
		id, err := NewConflictID()
		if err != nil {
			return err
		}
		c.ID = id
	}
	if c.Status == "" {
		c.Status = models.ConflictDetected
	}
	if c.DetectedAt.IsZero() {
		c.DetectedAt = time.Now()
	}
	if err := db.Create(c).Error; err != nil {
		return fmt.Errorf("store: insert conflict: %w", err)
	}
	return nil
}

// GetConflict loads one conflict by id.
func GetConflict(db *gorm.DB, id string) (*models.Conflict, error) {
	if id == "" {
		return nil, fmt.Errorf("store: conflict id is required")
	}
	var c models.Conflict
	if err := db.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store: conflict %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: conflict %s: %w", id, err)
	}
	return &c, nil
}

// UpdateConflict applies a column patch to a conflict.
func UpdateConflict(db *gorm.DB, id string, patch map[string]interface{}) error {
	if id == "" {
		return fmt.Errorf("store: conflict id is required")
	}
	if len(patch) == 0 {
		return fmt.Errorf("store: empty conflict patch")
	}
	result := db.Model(&models.Conflict{}).Where("id = ?", id).Updates(patch)
	if result.Error != nil {
		return fmt.Errorf("store: update conflict %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: conflict %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkConflictResolved transitions a conflict to resolved, recording the
// resolution details and timestamp. Already-resolved conflicts report not
// found, so two concurrent resolvers cannot both claim the resolution.
func MarkConflictResolved(db *gorm.DB, id, details string) error {
	if id == "" {
		return fmt.Errorf("store: conflict id is required")
	}
	now := time.Now()
	result := db.Model(&models.Conflict{}).
		Where("id = ? AND status != ?", id, models.ConflictResolved).
		Updates(map[string]interface{}{
			"status":             models.ConflictResolved,
			"resolved_at":        &now,
			"resolution_details": details,
		})
	if result.Error != nil {
		return fmt.Errorf("store: resolve conflict %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: unresolved conflict %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListConflicts returns conflicts, newest first, optionally filtered by status.
func ListConflicts(db *gorm.DB, status models.ConflictStatus) ([]models.Conflict, error) {
	q := db.Order("detected_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var conflicts []models.Conflict
	if err := q.Find(&conflicts).Error; err != nil {
		return nil, fmt.Errorf("store: list conflicts: %w", err)
	}
	return conflicts, nil
}

// InsertAttempt appends a resolution attempt row.
func InsertAttempt(db *gorm.DB, a *models.ResolutionAttempt) error {
	if a == nil {
		return fmt.Errorf("store: attempt is required")
	}
	if a.ConflictID == "" {
		return fmt.Errorf("store: attempt conflict id is required")
	}
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = time.Now()
	}
	if err := db.Create(a).Error; err != nil {
		return fmt.Errorf("store: insert attempt: %w", err)
	}
	return nil
}

// UpdateAttempt updates an attempt's outcome in place.
func UpdateAttempt(db *gorm.DB, id uint, successful bool, details string) error {
	result := db.Model(&models.ResolutionAttempt{}).Where("id = ?", id).
		Updates(map[string]interface{}{"successful": successful, "details": details})
	if result.Error != nil {
		return fmt.Errorf("store: update attempt %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: attempt %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListAttempts returns the attempt log for a conflict, oldest first.
func ListAttempts(db *gorm.DB, conflictID string) ([]models.ResolutionAttempt, error) {
	if conflictID == "" {
		return nil, fmt.Errorf("store: conflict id is required")
	}
	var attempts []models.ResolutionAttempt
	if err := db.Where("conflict_id = ?", conflictID).
		Order("attempted_at ASC, id ASC").Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("store: attempts for %s: %w", conflictID, err)
	}
	return attempts, nil
}

// FindActiveRules returns all active scheduling rules.
func FindActiveRules(db *gorm.DB) ([]models.SchedulingRule, error) {
	var rules []models.SchedulingRule
	if err := db.Where("is_active = ?", true).Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("store: active rules: %w", err)
	}
	return rules, nil
}

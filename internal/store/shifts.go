package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/hferris/dutywatch/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound reports that a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DateRange bounds a shift query to shifts touching [From, To] (inclusive).
type DateRange struct {
	From time.Time
	To   time.Time
}

// FindShiftsByProvider returns all non-inactive shifts for a provider,
// optionally restricted to those overlapping a date range, ordered by start.
func FindShiftsByProvider(db *gorm.DB, providerID string, rng *DateRange) ([]models.Shift, error) {
	if providerID == "" {
		return nil, fmt.Errorf("store: providerID is required")
	}

	q := db.Where("provider_id = ? AND status != ?", providerID, models.ShiftInactive)
	if rng != nil {
		q = q.Where("start_date <= ? AND end_date >= ?", rng.To, rng.From)
	}

	var shifts []models.Shift
	if err := q.Order("start_date ASC").Find(&shifts).Error; err != nil {
		return nil, fmt.Errorf("store: shifts for %s: %w", providerID, err)
	}
	return shifts, nil
}

// FindConfirmedShifts returns confirmed shifts for a provider, excluding one
// shift id (the candidate itself on edit; pass "" to exclude none).
func FindConfirmedShifts(db *gorm.DB, providerID, excludeShiftID string) ([]models.Shift, error) {
	if providerID == "" {
		return nil, fmt.Errorf("store: providerID is required")
	}

	q := db.Where("provider_id = ? AND status = ?", providerID, models.ShiftConfirmed)
	if excludeShiftID != "" {
		q = q.Where("id != ?", excludeShiftID)
	}

	var shifts []models.Shift
	if err := q.Order("start_date ASC").Find(&shifts).Error; err != nil {
		return nil, fmt.Errorf("store: confirmed shifts for %s: %w", providerID, err)
	}
	return shifts, nil
}

// GetShift loads one shift by id.
func GetShift(db *gorm.DB, id string) (*models.Shift, error) {
	if id == "" {
		return nil, fmt.Errorf("store: shift id is required")
	}
	var s models.Shift
	if err := db.First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store: shift %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: shift %s: %w", id, err)
	}
	return &s, nil
}

// CreateShift inserts a shift, assigning an id if one is not set.
func CreateShift(db *gorm.DB, s *models.Shift) error {
	if s == nil {
		return fmt.Errorf("store: shift is required")
	}
	if s.ProviderID == "" {
		return fmt.Errorf("store: shift provider is required")
	}
	if s.ID == "" {
		id, err := NewShiftID()
		if err != nil {
			return err
		}
		s.ID = id
	}
	if s.Status == "" {
		s.Status = models.ShiftConfirmed
	}
	if s.Source == "" {
		s.Source = models.SourceManual
	}
	if err := db.Create(s).Error; err != nil {
		return fmt.Errorf("store: create shift: %w", err)
	}
	return nil
}

// UpdateShiftStatus sets a shift's status.
func UpdateShiftStatus(db *gorm.DB, id string, status models.ShiftStatus) error {
	result := db.Model(&models.Shift{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("store: update shift %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: shift %s: %w", id, ErrNotFound)
	}
	return nil
}

// ReassignShift moves a shift to a new provider.
func ReassignShift(db *gorm.DB, shiftID, newProviderID string) error {
	if newProviderID == "" {
		return fmt.Errorf("store: new provider is required")
	}
	result := db.Model(&models.Shift{}).Where("id = ?", shiftID).
		Update("provider_id", newProviderID)
	if result.Error != nil {
		return fmt.Errorf("store: reassign shift %s: %w", shiftID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: shift %s: %w", shiftID, ErrNotFound)
	}
	return nil
}

// FindShiftByExternalID looks up an imported shift by its external id.
func FindShiftByExternalID(db *gorm.DB, externalID string) (*models.Shift, error) {
	if externalID == "" {
		return nil, fmt.Errorf("store: external id is required")
	}
	var s models.Shift
	err := db.First(&s, "external_id = ?", externalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: external shift %s: %w", externalID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: external shift %s: %w", externalID, err)
	}
	return &s, nil
}

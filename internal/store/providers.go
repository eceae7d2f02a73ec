package store

import (
	"errors"
	"fmt"

	"github.com/hferris/dutywatch/internal/models"
	"gorm.io/gorm"
)

// GetProvider loads one provider by id.
func GetProvider(db *gorm.DB, id string) (*models.Provider, error) {
	if id == "" {
		return nil, fmt.Errorf("store: provider id is required")
	}
	var p models.Provider
	if err := db.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store: provider %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: provider %s: %w", id, err)
	}
	return &p, nil
}

// FindProvidersByType returns providers of the given type, excluding one id
// (pass "" to exclude none), ordered by id for deterministic iteration.
func FindProvidersByType(db *gorm.DB, providerType, excludeID string) ([]models.Provider, error) {
	if providerType == "" {
		return nil, fmt.Errorf("store: provider type is required")
	}

	q := db.Where("type = ?", providerType)
	if excludeID != "" {
		q = q.Where("id != ?", excludeID)
	}

	var providers []models.Provider
	if err := q.Order("id ASC").Find(&providers).Error; err != nil {
		return nil, fmt.Errorf("store: providers of type %s: %w", providerType, err)
	}
	return providers, nil
}

// AssignedDays sums the inclusive day counts of a provider's confirmed shifts.
func AssignedDays(db *gorm.DB, providerID string) (int, error) {
	shifts, err := FindConfirmedShifts(db, providerID, "")
	if err != nil {
		return 0, err
	}
	total := 0
	for i := range shifts {
		total += shifts[i].Days()
	}
	return total, nil
}

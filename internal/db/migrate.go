package db

import (
	"fmt"

	"github.com/hferris/dutywatch/internal/config"
	"github.com/hferris/dutywatch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Provider{},
		&models.Shift{},
		&models.SchedulingRule{},
		&models.Conflict{},
		&models.ResolutionAttempt{},
		&models.SwapRequest{},
		&models.Notification{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedRules upserts SchedulingRule rows from configuration, keyed by name.
func SeedRules(db *gorm.DB, rules []config.RuleConfig) error {
	for _, rc := range rules {
		rule := models.SchedulingRule{
			Name:         rc.Name,
			ConflictType: models.ConflictType(rc.ConflictType),
			Strategy:     models.Strategy(rc.Strategy),
			Priority:     rc.Priority,
			IsActive:     true,
			Params:       "{}",
		}

		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"conflict_type", "strategy", "priority", "is_active"}),
		}).Create(&rule)
		if result.Error != nil {
			return fmt.Errorf("db: seed rule %q: %w", rc.Name, result.Error)
		}
	}
	return nil
}

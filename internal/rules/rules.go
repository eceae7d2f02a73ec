// Package rules selects the scheduling rule governing a conflict.
package rules

import (
	"fmt"

	"github.com/hferris/dutywatch/internal/models"
	"github.com/hferris/dutywatch/internal/store"
	"gorm.io/gorm"
)

// SelectRule returns the active rule governing a conflict type: highest
// priority wins, ties broken by lowest id so repeated calls over an
// unchanged rule set always return the same rule. A nil rule with nil
// error means no rule matches and the conflict awaits manual handling.
func SelectRule(db *gorm.DB, conflictType models.ConflictType) (*models.SchedulingRule, error) {
	if db == nil {
		return nil, fmt.Errorf("rules: db is required")
	}
	if conflictType == "" {
		return nil, fmt.Errorf("rules: conflict type is required")
	}

	active, err := store.FindActiveRules(db)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}

	var best *models.SchedulingRule
	for i := range active {
		r := &active[i]
		if r.ConflictType != conflictType {
			continue
		}
		if best == nil || r.Priority > best.Priority ||
			(r.Priority == best.Priority && r.ID < best.ID) {
			best = r
		}
	}
	return best, nil
}

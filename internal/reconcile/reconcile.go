// Package reconcile coordinates imported-vs-local shift pairs after an
// external calendar sync, applying keep/reject decisions transactionally.
package reconcile

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hferris/dutywatch/internal/broadcast"
	"github.com/hferris/dutywatch/internal/models"
	"github.com/hferris/dutywatch/internal/store"
	"gorm.io/gorm"
)

// Choice is a human decision over one conflicting pair.
type Choice string

const (
	KeepImported Choice = "keep-imported"
	KeepLocal    Choice = "keep-local"
)

// BatchChoice applies one decision uniformly to every pending pair.
type BatchChoice string

const (
	KeepImportedAll BatchChoice = "keep-imported-all"
	KeepLocalAll    BatchChoice = "keep-local-all"
)

// Pair is one imported shift colliding with a local shift of the same
// provider over overlapping dates.
type Pair struct {
	ImportedShiftID string `json:"importedShiftId"`
	LocalShiftID    string `json:"localShiftId"`
}

// Resolution is a decided pair.
type Resolution struct {
	ImportedShiftID string `json:"importedShiftId"`
	LocalShiftID    string `json:"localShiftId"`
	Choice          Choice `json:"choice"`
}

// Failure names a pair that could not be applied and why.
type Failure struct {
	ImportedShiftID string `json:"importedShiftId"`
	LocalShiftID    string `json:"localShiftId"`
	Reason          string `json:"reason"`
}

// Result reports one coordinator run. Applied is zero whenever Failures is
// non-empty: the run commits all pairs or none.
type Result struct {
	Applied  int       `json:"applied"`
	Failures []Failure `json:"failures,omitempty"`
}

// Coordinator applies reconciliation decisions. Hub may be nil.
type Coordinator struct {
	DB  *gorm.DB
	Hub *broadcast.Hub
}

// PendingPairs lists every imported shift still in play alongside each
// confirmed local shift of the same provider it overlaps, ordered by the
// imported shift's start date for stable presentation.
func (c *Coordinator) PendingPairs() ([]Pair, error) {
	if c.DB == nil {
		return nil, fmt.Errorf("reconcile: db is required")
	}

	var imported []models.Shift
	err := c.DB.Where("source = ? AND status != ?", models.SourceImported, models.ShiftInactive).
		Order("start_date ASC, id ASC").Find(&imported).Error
	if err != nil {
		return nil, fmt.Errorf("reconcile: load imported shifts: %w", err)
	}

	var pairs []Pair
	for i := range imported {
		imp := &imported[i]
		var locals []models.Shift
		err := c.DB.Where(
			"provider_id = ? AND source = ? AND status = ? AND id != ? AND start_date <= ? AND end_date >= ?",
			imp.ProviderID, models.SourceManual, models.ShiftConfirmed, imp.ID, imp.EndDate, imp.StartDate,
		).Order("start_date ASC, id ASC").Find(&locals).Error
		if err != nil {
			return nil, fmt.Errorf("reconcile: local shifts for %s: %w", imp.ID, err)
		}
		for j := range locals {
			pairs = append(pairs, Pair{ImportedShiftID: imp.ID, LocalShiftID: locals[j].ID})
		}
	}
	return pairs, nil
}

// Apply commits every resolution in a single transaction. Any pair that
// cannot be applied aborts the whole run: nothing is committed, Applied is
// zero, and Failures names every submitted pair — the blocking one with
// its error, the rest with a rolled-back reason, since none of them landed.
// The rejected shift of each pair goes inactive with the reason recorded;
// the kept shift is confirmed, and open conflicts referencing both shifts
// resolve.
func (c *Coordinator) Apply(resolutions []Resolution) (*Result, error) {
	if c.DB == nil {
		return nil, fmt.Errorf("reconcile: db is required")
	}
	if len(resolutions) == 0 {
		return nil, fmt.Errorf("reconcile: no resolutions to apply")
	}
	for _, r := range resolutions {
		if r.Choice != KeepImported && r.Choice != KeepLocal {
			return nil, fmt.Errorf("reconcile: invalid choice %q for pair %s/%s",
				r.Choice, r.ImportedShiftID, r.LocalShiftID)
		}
		if r.ImportedShiftID == "" || r.LocalShiftID == "" {
			return nil, fmt.Errorf("reconcile: pair is missing a shift id")
		}
	}

	var failures []Failure
	err := c.DB.Transaction(func(tx *gorm.DB) error {
		for i, r := range resolutions {
			if err := applyPair(tx, r); err != nil {
				failures = rollbackFailures(resolutions, i, err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.publish(broadcast.NewEvent(broadcast.EventSyncFailed, map[string]any{
			"failures": failures,
		}))
		return &Result{Applied: 0, Failures: failures}, nil
	}

	c.publish(broadcast.NewEvent(broadcast.EventSyncCompleted, map[string]any{
		"applied": len(resolutions),
	}))
	return &Result{Applied: len(resolutions)}, nil
}

// ApplyBatch expands one uniform choice over every pending pair and applies
// the result as a single run.
func (c *Coordinator) ApplyBatch(choice BatchChoice) (*Result, error) {
	var per Choice
	switch choice {
	case KeepImportedAll:
		per = KeepImported
	case KeepLocalAll:
		per = KeepLocal
	default:
		return nil, fmt.Errorf("reconcile: invalid batch choice %q", choice)
	}

	pairs, err := c.PendingPairs()
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return &Result{}, nil
	}

	resolutions := make([]Resolution, 0, len(pairs))
	for _, p := range pairs {
		resolutions = append(resolutions, Resolution{
			ImportedShiftID: p.ImportedShiftID,
			LocalShiftID:    p.LocalShiftID,
			Choice:          per,
		})
	}
	return c.Apply(resolutions)
}

// rollbackFailures names every pair of an aborted run: the one at blocked
// with its own error, everything else with the rollback reason.
func rollbackFailures(resolutions []Resolution, blocked int, cause error) []Failure {
	blocker := resolutions[blocked]
	rolledBack := fmt.Sprintf("not applied: run rolled back by pair %s/%s",
		blocker.ImportedShiftID, blocker.LocalShiftID)
	failures := make([]Failure, 0, len(resolutions))
	for i, r := range resolutions {
		reason := rolledBack
		if i == blocked {
			reason = cause.Error()
		}
		failures = append(failures, Failure{
			ImportedShiftID: r.ImportedShiftID,
			LocalShiftID:    r.LocalShiftID,
			Reason:          reason,
		})
	}
	return failures
}

func applyPair(tx *gorm.DB, r Resolution) error {
	keptID, rejectedID := r.ImportedShiftID, r.LocalShiftID
	if r.Choice == KeepLocal {
		keptID, rejectedID = r.LocalShiftID, r.ImportedShiftID
	}

	reason := fmt.Sprintf("superseded by %s (%s)", keptID, r.Choice)
	result := tx.Model(&models.Shift{}).Where("id = ?", rejectedID).
		Updates(map[string]interface{}{"status": models.ShiftInactive, "notes": reason})
	if result.Error != nil {
		return fmt.Errorf("retire shift %s: %w", rejectedID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("shift %s: %w", rejectedID, store.ErrNotFound)
	}

	if err := store.UpdateShiftStatus(tx, keptID, models.ShiftConfirmed); err != nil {
		return err
	}

	return resolvePairConflicts(tx, r, keptID, rejectedID)
}

// resolvePairConflicts closes open conflicts that reference both shifts of
// a decided pair, keeping the audit trail consistent with the decision.
func resolvePairConflicts(tx *gorm.DB, r Resolution, keptID, rejectedID string) error {
	var open []models.Conflict
	err := tx.Where("status != ?", models.ConflictResolved).Find(&open).Error
	if err != nil {
		return fmt.Errorf("load open conflicts: %w", err)
	}

	for i := range open {
		ids := open[i].AffectedShiftIDs()
		if !containsBoth(ids, keptID, rejectedID) {
			continue
		}
		details, _ := json.Marshal(map[string]any{
			"mode":       "import-reconciliation",
			"choice":     r.Choice,
			"kept":       keptID,
			"rejected":   rejectedID,
			"resolvedAt": time.Now().UTC().Format(time.RFC3339),
		})
		if err := store.MarkConflictResolved(tx, open[i].ID, string(details)); err != nil {
			return err
		}
	}
	return nil
}

func containsBoth(ids []string, a, b string) bool {
	foundA, foundB := false, false
	for _, id := range ids {
		if id == a {
			foundA = true
		}
		if id == b {
			foundB = true
		}
	}
	return foundA && foundB
}

func (c *Coordinator) publish(evt broadcast.Envelope) {
	if c.Hub != nil {
		c.Hub.Broadcast(evt)
	}
}

package qgenda

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hferris/dutywatch/internal/broadcast"
	"github.com/hferris/dutywatch/internal/detect"
	"github.com/hferris/dutywatch/internal/models"
	"github.com/hferris/dutywatch/internal/store"
	"gorm.io/gorm"
)

// Syncer pulls the external schedule into the local store as imported
// shifts, running detection on each so violations land as open conflicts
// rather than blocking the import. Hub may be nil.
type Syncer struct {
	DB     *gorm.DB
	Client *Client
	Hub    *broadcast.Hub
}

// SyncReport summarizes one sync run.
type SyncReport struct {
	Imported  int      `json:"imported"`
	Updated   int      `json:"updated"`
	Conflicts int      `json:"conflicts"`
	Skipped   []string `json:"skipped,omitempty"`
}

// Run fetches the window and reconciles each entry into the store.
// Entries that cannot be mapped (bad dates, unknown provider) are skipped
// and reported, never fatal.
func (s *Syncer) Run(ctx context.Context, from, to time.Time) (*SyncReport, error) {
	if s.DB == nil || s.Client == nil {
		return nil, fmt.Errorf("qgenda: syncer needs a db and a client")
	}

	entries, err := s.Client.FetchSchedule(ctx, from, to)
	if err != nil {
		s.publish(broadcast.NewEvent(broadcast.EventSyncFailed, map[string]any{
			"error": err.Error(),
		}))
		return nil, err
	}

	report := &SyncReport{}
	for _, e := range entries {
		if err := s.applyEntry(e, report); err != nil {
			log.Printf("qgenda: entry %s: %v", e.ID, err)
			report.Skipped = append(report.Skipped, e.ID)
		}
	}

	s.publish(broadcast.NewEvent(broadcast.EventSyncCompleted, report))
	return report, nil
}

func (s *Syncer) applyEntry(e Entry, report *SyncReport) error {
	shift, err := MapEntry(e)
	if err != nil {
		return err
	}
	provider, err := store.GetProvider(s.DB, shift.ProviderID)
	if err != nil {
		return err
	}

	existing, err := store.FindShiftByExternalID(s.DB, e.ID)
	switch {
	case err == nil:
		patch := map[string]interface{}{
			"provider_id": shift.ProviderID,
			"start_date":  shift.StartDate,
			"end_date":    shift.EndDate,
			"notes":       shift.Notes,
		}
		if err := s.DB.Model(&models.Shift{}).Where("id = ?", existing.ID).Updates(patch).Error; err != nil {
			return fmt.Errorf("update imported shift %s: %w", existing.ID, err)
		}
		shift.ID = existing.ID
		report.Updated++
		s.publish(broadcast.NewEvent(broadcast.EventShiftUpdated, map[string]any{
			"shiftId": shift.ID, "source": models.SourceImported,
		}))
	case errors.Is(err, store.ErrNotFound):
		if err := store.CreateShift(s.DB, shift); err != nil {
			return err
		}
		report.Imported++
		s.publish(broadcast.NewEvent(broadcast.EventShiftCreated, map[string]any{
			"shiftId": shift.ID, "source": models.SourceImported,
		}))
	default:
		return err
	}

	return s.recordConflicts(shift, provider, report)
}

// recordConflicts runs detection for an imported shift and opens conflicts
// for blocking violations. Imports are accepted writes, so violations open
// conflicts instead of rejecting the shift.
func (s *Syncer) recordConflicts(shift *models.Shift, provider *models.Provider, report *SyncReport) error {
	others, err := store.FindConfirmedShifts(s.DB, shift.ProviderID, shift.ID)
	if err != nil {
		return err
	}
	detections, err := detect.Detect(*shift, others, *provider)
	if err != nil {
		return err
	}

	for _, d := range detections {
		if !d.Blocking {
			continue
		}
		dup, err := openConflictExists(s.DB, d.Type, d.ShiftIDs)
		if err != nil {
			return err
		}
		if dup {
			continue
		}
		c := &models.Conflict{
			Type:        d.Type,
			ShiftIDs:    models.EncodeStrings(d.ShiftIDs),
			ProviderIDs: models.EncodeStrings(d.ProviderIDs),
			Description: d.Description,
		}
		if err := store.InsertConflict(s.DB, c); err != nil {
			return err
		}
		report.Conflicts++
		s.publish(broadcast.NewEvent(broadcast.EventConflictDetected, map[string]any{
			"conflictId":  c.ID,
			"type":        c.Type,
			"description": c.Description,
		}))
	}
	return nil
}

// openConflictExists reports whether an unresolved conflict with the same
// type and shift set is already on file. Re-syncs of an unchanged window
// must not pile up duplicate conflicts.
func openConflictExists(db *gorm.DB, typ models.ConflictType, shiftIDs []string) (bool, error) {
	encoded := models.EncodeStrings(shiftIDs)
	var n int64
	err := db.Model(&models.Conflict{}).
		Where("type = ? AND status != ? AND shift_ids = ?", typ, models.ConflictResolved, encoded).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("qgenda: check open conflicts: %w", err)
	}
	return n > 0, nil
}

func (s *Syncer) publish(evt broadcast.Envelope) {
	if s.Hub != nil {
		s.Hub.Broadcast(evt)
	}
}

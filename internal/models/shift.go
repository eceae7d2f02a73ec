package models

import "time"

// ShiftStatus is the lifecycle state of a shift.
type ShiftStatus string

const (
	ShiftConfirmed   ShiftStatus = "confirmed"
	ShiftPendingSwap ShiftStatus = "pending_swap"
	ShiftSwapped     ShiftStatus = "swapped"
	ShiftInactive    ShiftStatus = "inactive"
)

// ShiftSource records where a shift came from.
type ShiftSource string

const (
	SourceManual   ShiftSource = "manual"
	SourceImported ShiftSource = "imported"
)

// Shift is a contiguous date-range duty assignment for one provider.
// Dates are inclusive calendar days. Shifts referenced by a conflict or
// swap record are never hard-deleted; they are retired via status=inactive.
type Shift struct {
	ID         string      `gorm:"primaryKey;size:32"`
	ProviderID string      `gorm:"size:32;not null;index"`
	StartDate  time.Time   `gorm:"not null;index"`
	EndDate    time.Time   `gorm:"not null;index"`
	Status     ShiftStatus `gorm:"size:16;default:confirmed;index"`
	Source     ShiftSource `gorm:"size:16;default:manual"`
	ExternalID *string     `gorm:"size:64;index"`
	Notes      string      `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Provider *Provider `gorm:"foreignKey:ProviderID"`
}

// Days returns the number of inclusive calendar days the shift covers.
func (s *Shift) Days() int {
	return int(s.EndDate.Sub(s.StartDate).Hours()/24) + 1
}

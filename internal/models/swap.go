package models

import "time"

// SwapStatus is the lifecycle state of a swap request.
// Accepted, rejected, and cancelled are terminal.
type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"
	SwapAccepted  SwapStatus = "accepted"
	SwapRejected  SwapStatus = "rejected"
	SwapCancelled SwapStatus = "cancelled"
)

// SwapRequest proposes handing a shift from one provider to another.
// Created by a human or by the suggest_swap strategy; ownership only moves
// when the recipient accepts.
type SwapRequest struct {
	ID          string     `gorm:"primaryKey;size:36"`
	RequestorID string     `gorm:"size:32;not null;index"`
	RecipientID string     `gorm:"size:32;not null;index"`
	ShiftID     string     `gorm:"size:32;not null;index"`
	ConflictID  string     `gorm:"size:32;index"`
	Status      SwapStatus `gorm:"size:16;default:pending;index"`
	Reason      string     `gorm:"size:500"`
	CreatedAt   time.Time
	RespondedAt *time.Time

	Shift *Shift `gorm:"foreignKey:ShiftID"`
}

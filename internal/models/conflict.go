package models

import (
	"encoding/json"
	"time"
)

// ConflictType classifies a detected scheduling violation.
type ConflictType string

const (
	ConflictOverlap     ConflictType = "overlap"
	ConflictConsecutive ConflictType = "consecutive_shifts"
	ConflictMaxDays     ConflictType = "max_days"
	ConflictPreference  ConflictType = "preference"
)

// ConflictStatus is the lifecycle state of a conflict.
type ConflictStatus string

const (
	ConflictDetected  ConflictStatus = "detected"
	ConflictEscalated ConflictStatus = "escalated"
	ConflictResolved  ConflictStatus = "resolved"
)

// Conflict records a detected rule violation referencing one or more shifts
// and providers. Conflicts are never deleted; together with resolution
// attempts they form the audit trail.
type Conflict struct {
	ID                string         `gorm:"primaryKey;size:32"`
	Type              ConflictType   `gorm:"size:32;not null;index"`
	ShiftIDs          string         `gorm:"type:json"`
	ProviderIDs       string         `gorm:"type:json"`
	Description       string         `gorm:"type:text"`
	Status            ConflictStatus `gorm:"size:16;default:detected;index"`
	DetectedAt        time.Time
	ResolvedAt        *time.Time
	ResolutionDetails string `gorm:"type:json"`

	Attempts []ResolutionAttempt `gorm:"foreignKey:ConflictID"`
}

// AffectedShiftIDs decodes the JSON shift id list.
func (c *Conflict) AffectedShiftIDs() []string {
	return decodeStrings(c.ShiftIDs)
}

// AffectedProviderIDs decodes the JSON provider id list.
func (c *Conflict) AffectedProviderIDs() []string {
	return decodeStrings(c.ProviderIDs)
}

// ResolutionAttempt is one row per strategy execution against a conflict,
// including failed ones. Append-only.
type ResolutionAttempt struct {
	ID          uint     `gorm:"primaryKey;autoIncrement"`
	ConflictID  string   `gorm:"size:32;not null;index"`
	Strategy    Strategy `gorm:"size:32;not null"`
	Successful  bool     `gorm:"default:false"`
	Details     string   `gorm:"type:text"`
	AttemptedAt time.Time
}

func decodeStrings(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// EncodeStrings marshals an id list for storage in a JSON column.
// Nil encodes as an empty array so queries never see SQL NULL.
func EncodeStrings(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	data, _ := json.Marshal(ids)
	return string(data)
}

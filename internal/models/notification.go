package models

import "time"

// Notification is an ephemeral delivery record for a provider. Losing one
// never loses the underlying conflict or shift state; it exists so a client
// can show what was pushed while it was away.
type Notification struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	ProviderID string `gorm:"size:32;not null;index"`
	Channel    string `gorm:"size:16;default:ws"`
	Type       string `gorm:"size:50;not null"`
	Payload    string `gorm:"type:json"`
	Read       bool   `gorm:"default:false;index"`
	CreatedAt  time.Time
}

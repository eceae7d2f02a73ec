package models

import (
	"encoding/json"
	"time"
)

// Provider is a schedulable person in the duty pool.
type Provider struct {
	ID                  string `gorm:"primaryKey;size:32"`
	Name                string `gorm:"not null"`
	Title               string `gorm:"size:64"`
	Type                string `gorm:"size:32;index"`
	TargetDays          int    `gorm:"default:0"`
	ToleranceDays       int    `gorm:"default:0"`
	MaxConsecutiveWeeks int    `gorm:"default:0"`

	// Scheduling preferences. The day-of-week and coworker lists are stored
	// as JSON arrays, like track conventions.
	PreferredShiftLength int    `gorm:"default:0"`
	MaxShiftsPerWeek     int    `gorm:"default:0"`
	MinDaysBetweenShifts int    `gorm:"default:0"`
	PreferredDaysOfWeek  string `gorm:"type:json"`
	AvoidedDaysOfWeek    string `gorm:"type:json"`
	PreferredCoworkers   string `gorm:"type:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PreferredWeekdays decodes the preferred day-of-week list (0=Sunday).
// Malformed or empty JSON decodes to nil.
func (p *Provider) PreferredWeekdays() []time.Weekday {
	return decodeWeekdays(p.PreferredDaysOfWeek)
}

// AvoidedWeekdays decodes the avoided day-of-week list.
func (p *Provider) AvoidedWeekdays() []time.Weekday {
	return decodeWeekdays(p.AvoidedDaysOfWeek)
}

// PreferredCoworkerIDs decodes the preferred coworker provider id list.
func (p *Provider) PreferredCoworkerIDs() []string {
	if p.PreferredCoworkers == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(p.PreferredCoworkers), &ids); err != nil {
		return nil
	}
	return ids
}

func decodeWeekdays(raw string) []time.Weekday {
	if raw == "" {
		return nil
	}
	var days []int
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return nil
	}
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d >= 0 && d <= 6 {
			out = append(out, time.Weekday(d))
		}
	}
	return out
}

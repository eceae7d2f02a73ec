// Package detect implements pure conflict detection over candidate shifts.
package detect

import (
	"time"

	"github.com/hferris/dutywatch/internal/models"
)

// Overlaps reports whether two inclusive date intervals share at least one
// calendar day.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}

// DaysBetween returns the whole calendar days from a to b (negative if b is
// before a).
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// CountStartsInWindow counts shifts whose start date falls within the
// trailing window [anchor - days, anchor], inclusive on both ends. The
// window is anchored at the candidate's start date, not a calendar week.
func CountStartsInWindow(shifts []models.Shift, anchor time.Time, days int) int {
	windowStart := anchor.AddDate(0, 0, -days)
	count := 0
	for i := range shifts {
		start := shifts[i].StartDate
		if !start.Before(windowStart) && !start.After(anchor) {
			count++
		}
	}
	return count
}

// GapDays returns the number of free days between two shifts: 0 when they
// overlap or are adjacent, otherwise the count of days separating the
// nearer edges.
func GapDays(a, b models.Shift) int {
	if Overlaps(a.StartDate, a.EndDate, b.StartDate, b.EndDate) {
		return 0
	}
	if a.EndDate.Before(b.StartDate) {
		return DaysBetween(a.EndDate, b.StartDate) - 1
	}
	return DaysBetween(b.EndDate, a.StartDate) - 1
}

package detect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hferris/dutywatch/internal/models"
)

// consecutiveWindowDays is the trailing window used for the weekly shift
// count, anchored at the candidate's start date.
const consecutiveWindowDays = 7

// Detection is a conflict descriptor produced by detection, not yet
// persisted. Blocking detections should reject the write that produced
// them; advisory ones are informational.
type Detection struct {
	Type        models.ConflictType
	ShiftIDs    []string
	ProviderIDs []string
	Description string
	Blocking    bool
}

// Detect runs every rule check for a candidate shift against the provider's
// existing confirmed shifts and preferences. It is pure: the same inputs
// always yield the same detections, and it performs no writes. The existing
// set must not contain the candidate itself (callers exclude it on edit).
func Detect(candidate models.Shift, existing []models.Shift, provider models.Provider) ([]Detection, error) {
	if candidate.StartDate.IsZero() || candidate.EndDate.IsZero() {
		return nil, fmt.Errorf("detect: candidate shift dates are required")
	}
	if candidate.EndDate.Before(candidate.StartDate) {
		return nil, fmt.Errorf("detect: candidate shift ends before it starts")
	}
	if candidate.ProviderID == "" {
		return nil, fmt.Errorf("detect: candidate shift provider is required")
	}

	var out []Detection

	if d, ok := detectOverlap(candidate, existing); ok {
		out = append(out, d)
	}
	if d, ok := detectConsecutive(candidate, existing, provider); ok {
		out = append(out, d)
	}
	if d, ok := detectMaxDays(candidate, existing, provider); ok {
		out = append(out, d)
	}
	out = append(out, detectPreference(candidate, existing, provider)...)

	return out, nil
}

// detectOverlap aggregates every overlapping confirmed shift into a single
// detection, so a candidate overlapping three shifts yields one conflict
// referencing all four.
func detectOverlap(candidate models.Shift, existing []models.Shift) (Detection, bool) {
	var overlapping []string
	for i := range existing {
		other := existing[i]
		if other.ID == candidate.ID || other.Status != models.ShiftConfirmed {
			continue
		}
		if Overlaps(candidate.StartDate, candidate.EndDate, other.StartDate, other.EndDate) {
			overlapping = append(overlapping, other.ID)
		}
	}
	if len(overlapping) == 0 {
		return Detection{}, false
	}
	sort.Strings(overlapping)

	shiftIDs := append([]string{candidate.ID}, overlapping...)
	return Detection{
		Type:        models.ConflictOverlap,
		ShiftIDs:    shiftIDs,
		ProviderIDs: []string{candidate.ProviderID},
		Description: fmt.Sprintf("shift %s (%s to %s) overlaps %d existing shift(s): %s",
			candidate.ID,
			candidate.StartDate.Format("2006-01-02"),
			candidate.EndDate.Format("2006-01-02"),
			len(overlapping),
			strings.Join(overlapping, ", ")),
		Blocking: true,
	}, true
}

func detectConsecutive(candidate models.Shift, existing []models.Shift, provider models.Provider) (Detection, bool) {
	max := provider.MaxShiftsPerWeek
	if max <= 0 {
		return Detection{}, false
	}

	var confirmed []models.Shift
	ids := []string{candidate.ID}
	for i := range existing {
		other := existing[i]
		if other.ID == candidate.ID || other.Status != models.ShiftConfirmed {
			continue
		}
		confirmed = append(confirmed, other)
	}

	count := CountStartsInWindow(confirmed, candidate.StartDate, consecutiveWindowDays)
	if count < max {
		return Detection{}, false
	}

	windowStart := candidate.StartDate.AddDate(0, 0, -consecutiveWindowDays)
	for i := range confirmed {
		start := confirmed[i].StartDate
		if !start.Before(windowStart) && !start.After(candidate.StartDate) {
			ids = append(ids, confirmed[i].ID)
		}
	}

	return Detection{
		Type:        models.ConflictConsecutive,
		ShiftIDs:    ids,
		ProviderIDs: []string{candidate.ProviderID},
		Description: fmt.Sprintf("%d shift(s) already start in the 7 days before %s (max %d per week)",
			count, candidate.StartDate.Format("2006-01-02"), max),
		Blocking: true,
	}, true
}

// detectMaxDays flags a candidate that would push the provider past their
// yearly day target plus tolerance. Advisory.
func detectMaxDays(candidate models.Shift, existing []models.Shift, provider models.Provider) (Detection, bool) {
	if provider.TargetDays <= 0 {
		return Detection{}, false
	}
	total := candidate.Days()
	for i := range existing {
		if existing[i].ID == candidate.ID || existing[i].Status != models.ShiftConfirmed {
			continue
		}
		total += existing[i].Days()
	}
	limit := provider.TargetDays + provider.ToleranceDays
	if total <= limit {
		return Detection{}, false
	}
	return Detection{
		Type:        models.ConflictMaxDays,
		ShiftIDs:    []string{candidate.ID},
		ProviderIDs: []string{candidate.ProviderID},
		Description: fmt.Sprintf("accepting this shift brings %s to %d assigned days (target %d, tolerance %d)",
			provider.Name, total, provider.TargetDays, provider.ToleranceDays),
		Blocking: false,
	}, true
}

// detectPreference checks min gap to the nearest adjacent shift and shift
// length against the provider's preferences. Advisory: these never block.
func detectPreference(candidate models.Shift, existing []models.Shift, provider models.Provider) []Detection {
	var out []Detection

	if minGap := provider.MinDaysBetweenShifts; minGap > 0 {
		nearest, gap := nearestShift(candidate, existing)
		if nearest != nil && gap < minGap {
			out = append(out, Detection{
				Type:        models.ConflictPreference,
				ShiftIDs:    []string{candidate.ID, nearest.ID},
				ProviderIDs: []string{candidate.ProviderID},
				Description: fmt.Sprintf("only %d day(s) between this shift and %s (prefers at least %d)",
					gap, nearest.ID, minGap),
				Blocking: false,
			})
		}
	}

	if pref := provider.PreferredShiftLength; pref > 0 {
		length := candidate.Days()
		if length > pref+provider.ToleranceDays {
			out = append(out, Detection{
				Type:        models.ConflictPreference,
				ShiftIDs:    []string{candidate.ID},
				ProviderIDs: []string{candidate.ProviderID},
				Description: fmt.Sprintf("shift length %d day(s) exceeds preferred length %d",
					length, pref),
				Blocking: false,
			})
		}
	}

	return out
}

// nearestShift returns the confirmed shift closest to the candidate (by gap
// days) and the gap. Overlapping shifts are skipped: the overlap check
// already covers them.
func nearestShift(candidate models.Shift, existing []models.Shift) (*models.Shift, int) {
	var nearest *models.Shift
	best := 0
	for i := range existing {
		other := existing[i]
		if other.ID == candidate.ID || other.Status != models.ShiftConfirmed {
			continue
		}
		if Overlaps(candidate.StartDate, candidate.EndDate, other.StartDate, other.EndDate) {
			continue
		}
		gap := GapDays(candidate, other)
		if nearest == nil || gap < best {
			nearest = &existing[i]
			best = gap
		}
	}
	return nearest, best
}

// HasBlocking reports whether any detection would block a write.
func HasBlocking(detections []Detection) bool {
	for _, d := range detections {
		if d.Blocking {
			return true
		}
	}
	return false
}

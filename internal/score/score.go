// Package score ranks swap candidates for a shift by weighted fitness.
package score

import (
	"fmt"
	"sort"
	"time"

	"github.com/hferris/dutywatch/internal/detect"
	"github.com/hferris/dutywatch/internal/models"
)

// Point weights. Compatibility partitions the scale so that any candidate
// who would gain a new blocking conflict scores strictly below every
// candidate who would not, regardless of workload balance.
const (
	compatibleBase = 50
	balanceMax     = 30
	policyMax      = 20
)

// Candidate is one provider considered for taking over a shift, together
// with the inputs the scorer needs about them.
type Candidate struct {
	Provider     models.Provider
	Shifts       []models.Shift // existing confirmed shifts
	AssignedDays int
}

// Recommendation is a scored swap candidate with human-readable reasons.
type Recommendation struct {
	ProviderID    string   `json:"providerId"`
	Name          string   `json:"name"`
	Score         int      `json:"score"`
	Reasons       []string `json:"reasons"`
	WouldConflict bool     `json:"wouldConflict"`
}

// Rank scores every candidate for taking over the shift and returns them
// sorted by score descending, ties broken by ascending provider id. It is
// read-only over its inputs and safe to call repeatedly.
func Rank(shift models.Shift, requestor models.Provider, candidates []Candidate) []Recommendation {
	out := make([]Recommendation, 0, len(candidates))
	for i := range candidates {
		out = append(out, scoreOne(shift, requestor, candidates[i]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProviderID < out[j].ProviderID
	})
	return out
}

func scoreOne(shift models.Shift, requestor models.Provider, c Candidate) Recommendation {
	rec := Recommendation{ProviderID: c.Provider.ID, Name: c.Provider.Name}

	compatible, why := compatibility(shift, c)
	rec.WouldConflict = !compatible
	rec.Reasons = append(rec.Reasons, why...)

	balance, balanceWhy := workloadBalance(c)
	rec.Reasons = append(rec.Reasons, balanceWhy)

	policy, policyWhy := policyBonus(shift, requestor, c.Provider)
	rec.Reasons = append(rec.Reasons, policyWhy...)

	if compatible {
		rec.Score = compatibleBase + balance + policy
	} else {
		// Scale into [0, compatibleBase) so compatibility always dominates.
		rec.Score = (balance + policy) * (compatibleBase - 1) / (balanceMax + policyMax)
	}
	return rec
}

// compatibility hypothetically reassigns the shift to the candidate and
// runs detection against their own schedule.
func compatibility(shift models.Shift, c Candidate) (bool, []string) {
	hypothetical := shift
	hypothetical.ProviderID = c.Provider.ID

	detections, err := detect.Detect(hypothetical, c.Shifts, c.Provider)
	if err != nil {
		return false, []string{fmt.Sprintf("could not evaluate schedule: %v", err)}
	}

	var reasons []string
	blocking := false
	for _, d := range detections {
		if d.Blocking {
			blocking = true
			reasons = append(reasons, "would create a conflict: "+d.Description)
		}
	}
	if !blocking {
		reasons = append(reasons, "schedule is clear for these dates")
	}
	return !blocking, reasons
}

// workloadBalance awards more points the further the candidate sits below
// their target days, proportionally to the deficit.
func workloadBalance(c Candidate) (int, string) {
	target := c.Provider.TargetDays
	if target <= 0 {
		return balanceMax / 2, "no day target set"
	}
	deficit := target - c.AssignedDays
	if deficit <= 0 {
		return 0, fmt.Sprintf("already at or over target (%d of %d days)", c.AssignedDays, target)
	}
	points := balanceMax * deficit / target
	if points > balanceMax {
		points = balanceMax
	}
	return points, fmt.Sprintf("%d days below target (%d of %d assigned)", deficit, c.AssignedDays, target)
}

// policyBonus awards points for preferred-coworker and day-of-week fit.
func policyBonus(shift models.Shift, requestor models.Provider, candidate models.Provider) (int, []string) {
	points := 0
	var reasons []string

	for _, id := range requestor.PreferredCoworkerIDs() {
		if id == candidate.ID {
			points += policyMax / 2
			reasons = append(reasons, "preferred coworker of the requestor")
			break
		}
	}

	if avoided := candidate.AvoidedWeekdays(); shiftTouchesWeekday(shift, avoided) {
		reasons = append(reasons, "shift falls on an avoided day of week")
		return points, reasons
	}
	if preferred := candidate.PreferredWeekdays(); shiftTouchesWeekday(shift, preferred) {
		points += policyMax / 2
		reasons = append(reasons, "shift matches preferred days of week")
	}
	return points, reasons
}

// shiftTouchesWeekday reports whether any day of the shift falls on one of
// the given weekdays.
func shiftTouchesWeekday(shift models.Shift, days []time.Weekday) bool {
	if len(days) == 0 {
		return false
	}
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[d] = true
	}
	for d := shift.StartDate; !d.After(shift.EndDate); d = d.AddDate(0, 0, 1) {
		if set[d.Weekday()] {
			return true
		}
	}
	return false
}

// Package resolve executes resolution strategies against detected conflicts
// and drives the swap-request lifecycle those strategies open.
package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hferris/dutywatch/internal/broadcast"
	"github.com/hferris/dutywatch/internal/models"
	"github.com/hferris/dutywatch/internal/notify"
	"github.com/hferris/dutywatch/internal/rules"
	"github.com/hferris/dutywatch/internal/score"
	"github.com/hferris/dutywatch/internal/store"
	"gorm.io/gorm"
)

// maxSuggestedSwaps caps how many pending requests suggest_swap opens for
// one conflict so a large provider pool does not flood recipients.
const maxSuggestedSwaps = 3

// Service runs strategies against conflicts. Hub and Adapters may be nil
// (CLI invocations run without a live fan-out or chat channels).
type Service struct {
	DB       *gorm.DB
	Hub      *broadcast.Hub
	Adapters []notify.Adapter
}

// Outcome reports one strategy execution. Every execution, successful or
// not, also lands as a ResolutionAttempt row on the conflict's audit trail.
type Outcome struct {
	ConflictID string          `json:"conflictId"`
	Strategy   models.Strategy `json:"strategy"`
	Successful bool            `json:"successful"`
	Details    string          `json:"details"`
}

// Resolve runs one strategy against a conflict. The attempt row is written
// before the strategy runs and updated with the outcome afterwards, so a
// crash mid-strategy still leaves a trace. Strategy failures are reported
// in the Outcome, not as errors; the error return covers bad input and the
// conflict not existing.
func (s *Service) Resolve(ctx context.Context, conflictID string, strategy models.Strategy) (*Outcome, error) {
	if s.DB == nil {
		return nil, fmt.Errorf("resolve: db is required")
	}
	if conflictID == "" {
		return nil, fmt.Errorf("resolve: conflict id is required")
	}
	known := false
	for _, k := range models.KnownStrategies {
		if k == strategy {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("resolve: unknown strategy %q", strategy)
	}

	conflict, err := store.GetConflict(s.DB, conflictID)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	attempt := &models.ResolutionAttempt{
		ConflictID: conflict.ID,
		Strategy:   strategy,
		Details:    "in progress",
	}
	if err := store.InsertAttempt(s.DB, attempt); err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	ok, details := s.execute(ctx, conflict, strategy, 0)
	if err := store.UpdateAttempt(s.DB, attempt.ID, ok, details); err != nil {
		log.Printf("resolve: record attempt %d outcome: %v", attempt.ID, err)
	}

	return &Outcome{
		ConflictID: conflict.ID,
		Strategy:   strategy,
		Successful: ok,
		Details:    details,
	}, nil
}

// execute dispatches one strategy. Panics inside a strategy are contained
// and reported as a failed outcome so one bad conflict cannot take down a
// batch resolution pass.
func (s *Service) execute(ctx context.Context, c *models.Conflict, strategy models.Strategy, depth int) (ok bool, details string) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			details = fmt.Sprintf("strategy %s panicked: %v", strategy, r)
			log.Printf("resolve: conflict %s: %s", c.ID, details)
		}
	}()

	if c.Status == models.ConflictResolved {
		return false, "conflict is already resolved"
	}

	switch strategy {
	case models.StrategyAutoReassign:
		return s.autoReassign(c)
	case models.StrategyNotifyAdmin:
		return s.notifyAdmin(ctx, c)
	case models.StrategySuggestSwap:
		return s.suggestSwap(c)
	case models.StrategyEnforceRule:
		return s.enforceRule(ctx, c, depth)
	default:
		return false, fmt.Sprintf("unknown strategy %q", strategy)
	}
}

// autoReassign moves the conflicting shift to the best-ranked provider whose
// own schedule stays clean. The resolved transition and the reassignment
// commit together; losing the optimistic status race rolls both back.
func (s *Service) autoReassign(c *models.Conflict) (bool, string) {
	shift, requestor, err := s.conflictShift(c)
	if err != nil {
		return false, err.Error()
	}

	recs, err := RankSwapCandidates(s.DB, *shift, *requestor)
	if err != nil {
		return false, fmt.Sprintf("rank candidates: %v", err)
	}

	var best *score.Recommendation
	for i := range recs {
		if !recs[i].WouldConflict {
			best = &recs[i]
			break
		}
	}
	if best == nil {
		return false, fmt.Sprintf("no compatible provider available for shift %s", shift.ID)
	}

	details := encodeDetails(map[string]any{
		"strategy":   models.StrategyAutoReassign,
		"shiftId":    shift.ID,
		"from":       requestor.ID,
		"to":         best.ProviderID,
		"score":      best.Score,
		"resolvedAt": time.Now().UTC().Format(time.RFC3339),
	})

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := store.MarkConflictResolved(tx, c.ID, details); err != nil {
			return err
		}
		return store.ReassignShift(tx, shift.ID, best.ProviderID)
	})
	if err != nil {
		return false, fmt.Sprintf("could not commit reassignment: %v", err)
	}

	s.publish(broadcast.NewEvent(broadcast.EventShiftUpdated, map[string]any{
		"shiftId":    shift.ID,
		"providerId": best.ProviderID,
	}))
	s.publish(broadcast.NewEvent(broadcast.EventConflictResolved, map[string]any{
		"conflictId": c.ID,
		"strategy":   models.StrategyAutoReassign,
	}))
	s.notifyProvider(best.ProviderID, broadcast.EventShiftUpdated, map[string]any{
		"shiftId":    shift.ID,
		"conflictId": c.ID,
		"from":       requestor.ID,
	})
	return true, fmt.Sprintf("reassigned shift %s from %s to %s (score %d)",
		shift.ID, requestor.ID, best.ProviderID, best.Score)
}

// notifyAdmin escalates the conflict to humans. Delivery is best-effort and
// the strategy always succeeds: the escalation is the resolution action, a
// dead chat channel is not a scheduling failure.
func (s *Service) notifyAdmin(ctx context.Context, c *models.Conflict) (bool, string) {
	esc := notify.Escalation{
		ConflictID: c.ID,
		Subject:    fmt.Sprintf("%s conflict needs review", c.Type),
		Body:       c.Description,
		Severity:   severityFor(c.Type),
	}
	notify.Dispatch(ctx, s.Adapters, esc)

	// Only a detected conflict moves to escalated; re-escalating an already
	// escalated conflict just re-notifies.
	err := s.DB.Model(&models.Conflict{}).
		Where("id = ? AND status = ?", c.ID, models.ConflictDetected).
		Update("status", models.ConflictEscalated).Error
	if err != nil {
		return false, fmt.Sprintf("could not escalate conflict: %v", err)
	}

	s.publish(broadcast.NewEvent(broadcast.EventConflictEscalated, map[string]any{
		"conflictId":  c.ID,
		"type":        c.Type,
		"description": c.Description,
	}))
	return true, fmt.Sprintf("escalated to %d channel(s), awaiting manual resolution", len(s.Adapters))
}

// suggestSwap opens pending swap requests toward the most compatible peers.
// The conflict stays open; it resolves when a recipient accepts.
func (s *Service) suggestSwap(c *models.Conflict) (bool, string) {
	shift, requestor, err := s.conflictShift(c)
	if err != nil {
		return false, err.Error()
	}

	recs, err := RankSwapCandidates(s.DB, *shift, *requestor)
	if err != nil {
		return false, fmt.Sprintf("rank candidates: %v", err)
	}

	var opened []string
	var openedReqs []*models.SwapRequest
	for i := range recs {
		if recs[i].WouldConflict {
			continue
		}
		req := &models.SwapRequest{
			RequestorID: requestor.ID,
			RecipientID: recs[i].ProviderID,
			ShiftID:     shift.ID,
			ConflictID:  c.ID,
			Reason:      fmt.Sprintf("proposed to resolve %s conflict %s", c.Type, c.ID),
		}
		if err := store.InsertSwapRequest(s.DB, req); err != nil {
			return false, fmt.Sprintf("open swap request: %v", err)
		}
		opened = append(opened, req.ID)
		openedReqs = append(openedReqs, req)
		if len(opened) == maxSuggestedSwaps {
			break
		}
	}
	if len(opened) == 0 {
		return false, fmt.Sprintf("no compatible swap candidates for shift %s", shift.ID)
	}

	if err := store.UpdateShiftStatus(s.DB, shift.ID, models.ShiftPendingSwap); err != nil {
		return false, fmt.Sprintf("mark shift pending swap: %v", err)
	}

	s.publish(broadcast.NewEvent(broadcast.EventSwapRequested, map[string]any{
		"shiftId":    shift.ID,
		"conflictId": c.ID,
		"requestIds": opened,
	}))
	for _, req := range openedReqs {
		s.notifyProvider(req.RecipientID, broadcast.EventSwapRequested, map[string]any{
			"requestId":   req.ID,
			"shiftId":     shift.ID,
			"requestorId": requestor.ID,
		})
	}
	return true, fmt.Sprintf("opened %d swap request(s) for shift %s; conflict stays open until one is accepted",
		len(opened), shift.ID)
}

// enforceRule re-dispatches to the strategy named by the highest-priority
// active rule for the conflict's type. Indirection is limited to one level
// so a rule pointing at enforce_rule cannot loop.
func (s *Service) enforceRule(ctx context.Context, c *models.Conflict, depth int) (bool, string) {
	if depth > 0 {
		return false, "rule indirection is limited to one level"
	}

	rule, err := rules.SelectRule(s.DB, c.Type)
	if err != nil {
		return false, fmt.Sprintf("select rule: %v", err)
	}
	if rule == nil {
		return false, fmt.Sprintf("no active rule for %s conflicts", c.Type)
	}
	if rule.Strategy == models.StrategyEnforceRule {
		return false, fmt.Sprintf("rule %q does not name a concrete strategy", rule.Name)
	}

	ok, details := s.execute(ctx, c, rule.Strategy, depth+1)
	return ok, fmt.Sprintf("rule %q applied %s: %s", rule.Name, rule.Strategy, details)
}

// RankSwapCandidates scores every same-type peer of the requestor for
// taking over the shift, best first.
func RankSwapCandidates(db *gorm.DB, shift models.Shift, requestor models.Provider) ([]score.Recommendation, error) {
	peers, err := store.FindProvidersByType(db, requestor.Type, requestor.ID)
	if err != nil {
		return nil, err
	}

	candidates := make([]score.Candidate, 0, len(peers))
	for i := range peers {
		shifts, err := store.FindShiftsByProvider(db, peers[i].ID, nil)
		if err != nil {
			return nil, err
		}
		days, err := store.AssignedDays(db, peers[i].ID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, score.Candidate{
			Provider:     peers[i],
			Shifts:       shifts,
			AssignedDays: days,
		})
	}
	return score.Rank(shift, requestor, candidates), nil
}

// conflictShift loads the first shift a conflict references and its current
// provider. Detection lists the candidate shift first, so for overlap and
// consecutive conflicts this is the shift whose write caused the conflict.
func (s *Service) conflictShift(c *models.Conflict) (*models.Shift, *models.Provider, error) {
	ids := c.AffectedShiftIDs()
	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("conflict %s references no shifts", c.ID)
	}
	shift, err := store.GetShift(s.DB, ids[0])
	if err != nil {
		return nil, nil, err
	}
	provider, err := store.GetProvider(s.DB, shift.ProviderID)
	if err != nil {
		return nil, nil, err
	}
	return shift, provider, nil
}

func (s *Service) publish(evt broadcast.Envelope) {
	if s.Hub != nil {
		s.Hub.Broadcast(evt)
	}
}

// notifyProvider persists a catch-up record for a push addressed to one
// provider, so a client that was offline can show it later. Best-effort:
// losing the record never loses the shift or conflict state behind it.
func (s *Service) notifyProvider(providerID string, evtType broadcast.EventType, data map[string]any) {
	n := &models.Notification{
		ProviderID: providerID,
		Type:       string(evtType),
		Payload:    encodeDetails(data),
	}
	if err := store.InsertNotification(s.DB, n); err != nil {
		log.Printf("resolve: record notification for %s: %v", providerID, err)
	}
}

func severityFor(t models.ConflictType) notify.Severity {
	switch t {
	case models.ConflictOverlap:
		return notify.SeverityError
	case models.ConflictConsecutive:
		return notify.SeverityWarning
	default:
		return notify.SeverityInfo
	}
}

func encodeDetails(m map[string]any) string {
	data, _ := json.Marshal(m)
	return string(data)
}

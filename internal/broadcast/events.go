// Package broadcast fans typed events out to connected WebSocket clients.
package broadcast

import "time"

// EventType discriminates real-time event payloads.
type EventType string

const (
	EventConnected EventType = "connected"

	EventShiftCreated EventType = "shift_created"
	EventShiftUpdated EventType = "shift_updated"
	EventShiftDeleted EventType = "shift_deleted"

	EventSwapRequested EventType = "shift_swap_requested"
	EventSwapResponded EventType = "shift_swap_responded"
	EventSwapCancelled EventType = "shift_swap_cancelled"

	EventTimeOffRequested EventType = "time_off_requested"
	EventTimeOffResponded EventType = "time_off_responded"
	EventTimeOffCancelled EventType = "time_off_cancelled"

	EventConflictDetected  EventType = "conflict_detected"
	EventConflictResolved  EventType = "conflict_resolved"
	EventConflictEscalated EventType = "conflict_escalated"

	EventSyncCompleted EventType = "qgenda_sync_completed"
	EventSyncFailed    EventType = "qgenda_sync_failed"
)

// UserSummary optionally identifies the acting user on an event.
type UserSummary struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
}

// Envelope is the wire format for every real-time event.
type Envelope struct {
	Type      EventType    `json:"type"`
	Data      any          `json:"data,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Message   string       `json:"message,omitempty"`
	User      *UserSummary `json:"user,omitempty"`
}

// NewEvent builds an envelope stamped with the current time.
func NewEvent(t EventType, data any) Envelope {
	return Envelope{Type: t, Data: data, Timestamp: time.Now().UTC()}
}

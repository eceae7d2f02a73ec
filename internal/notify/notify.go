// Package notify bridges escalation events to chat platforms (Slack, Discord).
package notify

import (
	"context"
	"log"
)

// Severity hints how an escalation should be rendered.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Escalation is a conflict escalation formatted for a chat channel.
type Escalation struct {
	ConflictID string
	Subject    string
	Body       string
	Severity   Severity
}

// Adapter is the interface platform-specific implementations satisfy.
// Sending is one-way: escalations flow out, nothing flows back.
type Adapter interface {
	// Name identifies the platform, e.g. "slack".
	Name() string

	// Send delivers an escalation to the platform.
	Send(ctx context.Context, esc Escalation) error
}

// Dispatch delivers an escalation to every adapter. Best-effort: a failing
// adapter is logged and skipped; delivery to the rest continues and the
// caller never sees transport errors.
func Dispatch(ctx context.Context, adapters []Adapter, esc Escalation) {
	for _, a := range adapters {
		if err := a.Send(ctx, esc); err != nil {
			log.Printf("notify: %s send failed for conflict %s: %v", a.Name(), esc.ConflictID, err)
		}
	}
}

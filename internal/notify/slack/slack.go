// Package slack implements the notify Adapter for Slack.
package slack

import (
	"context"
	"fmt"

	"github.com/hferris/dutywatch/internal/notify"
	slackapi "github.com/slack-go/slack"
)

// severityColors maps escalation severities to attachment sidebar colors.
var severityColors = map[notify.Severity]string{
	notify.SeverityInfo:    "#36a64f",
	notify.SeverityWarning: "#f2c744",
	notify.SeverityError:   "#d00000",
}

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter implements notify.Adapter for Slack.
type Adapter struct {
	client    slackClient
	channelID string
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // channel to post escalations to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel id is required")
	}

	a := &Adapter{channelID: opts.ChannelID}
	if opts.Client != nil {
		a.client = opts.Client
	} else {
		a.client = slackapi.New(opts.BotToken)
	}
	return a, nil
}

// Name identifies the platform.
func (a *Adapter) Name() string { return "slack" }

// Send posts an escalation to the configured channel as an attachment.
func (a *Adapter) Send(ctx context.Context, esc notify.Escalation) error {
	color, ok := severityColors[esc.Severity]
	if !ok {
		color = severityColors[notify.SeverityWarning]
	}

	attachment := slackapi.Attachment{
		Title: esc.Subject,
		Text:  esc.Body,
		Color: color,
		Fields: []slackapi.AttachmentField{
			{Title: "Conflict", Value: esc.ConflictID, Short: true},
		},
	}

	_, _, err := a.client.PostMessageContext(ctx, a.channelID,
		slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("slack: post escalation for %s: %w", esc.ConflictID, err)
	}
	return nil
}

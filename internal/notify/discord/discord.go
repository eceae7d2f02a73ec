// Package discord implements the notify Adapter for Discord.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/hferris/dutywatch/internal/notify"
)

// severityColors maps escalation severities to embed colors.
var severityColors = map[notify.Severity]int{
	notify.SeverityInfo:    0x36a64f,
	notify.SeverityWarning: 0xf2c744,
	notify.SeverityError:   0xd00000,
}

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Adapter implements notify.Adapter for Discord.
type Adapter struct {
	sess      session
	channelID string
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken  string // Discord bot token
	ChannelID string // channel to post escalations to
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}

	a := &Adapter{channelID: opts.ChannelID}
	if opts.Session != nil {
		a.sess = opts.Session
	} else {
		sess, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		a.sess = sess
	}
	return a, nil
}

// Name identifies the platform.
func (a *Adapter) Name() string { return "discord" }

// Send posts an escalation to the configured channel as an embed.
func (a *Adapter) Send(ctx context.Context, esc notify.Escalation) error {
	color, ok := severityColors[esc.Severity]
	if !ok {
		color = severityColors[notify.SeverityWarning]
	}

	embed := &discordgo.MessageEmbed{
		Title:       esc.Subject,
		Description: esc.Body,
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Conflict", Value: esc.ConflictID, Inline: true},
		},
	}

	if _, err := a.sess.ChannelMessageSendEmbed(a.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: post escalation for %s: %w", esc.ConflictID, err)
	}
	return nil
}

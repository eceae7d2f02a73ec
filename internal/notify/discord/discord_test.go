package discord

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/hferris/dutywatch/internal/notify"
)

type mockSession struct {
	channels []string
	embeds   []*discordgo.MessageEmbed
	err      error
}

func (m *mockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.channels = append(m.channels, channelID)
	m.embeds = append(m.embeds, embed)
	return &discordgo.Message{}, nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(AdapterOpts{ChannelID: "123"}); err == nil {
		t.Error("expected error for missing bot token")
	}
	if _, err := New(AdapterOpts{BotToken: "token"}); err == nil {
		t.Error("expected error for missing channel id")
	}
}

func TestSend_EmbedContent(t *testing.T) {
	mock := &mockSession{}
	a, err := New(AdapterOpts{Session: mock, ChannelID: "123456"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	esc := notify.Escalation{
		ConflictID: "cfl-7",
		Subject:    "consecutive shifts escalated",
		Body:       "2 shifts start within 7 days",
		Severity:   notify.SeverityWarning,
	}
	if err := a.Send(context.Background(), esc); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(mock.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(mock.embeds))
	}
	embed := mock.embeds[0]
	if embed.Title != esc.Subject || embed.Description != esc.Body {
		t.Errorf("embed = %+v", embed)
	}
	if embed.Color != severityColors[notify.SeverityWarning] {
		t.Errorf("color = %#x, want warning color", embed.Color)
	}
	if len(embed.Fields) != 1 || embed.Fields[0].Value != "cfl-7" {
		t.Errorf("fields = %+v", embed.Fields)
	}
}

func TestSend_UnknownSeverityFallsBack(t *testing.T) {
	mock := &mockSession{}
	a, _ := New(AdapterOpts{Session: mock, ChannelID: "123"})

	if err := a.Send(context.Background(), notify.Escalation{ConflictID: "cfl-1", Severity: "odd"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if mock.embeds[0].Color != severityColors[notify.SeverityWarning] {
		t.Errorf("color = %#x, want warning fallback", mock.embeds[0].Color)
	}
}

func TestSend_WrapsError(t *testing.T) {
	mock := &mockSession{err: errors.New("missing access")}
	a, _ := New(AdapterOpts{Session: mock, ChannelID: "123"})

	err := a.Send(context.Background(), notify.Escalation{ConflictID: "cfl-2"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "discord: post escalation for cfl-2") {
		t.Errorf("error = %q", err)
	}
}

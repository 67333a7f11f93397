package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/vigil/internal/monitor"
)

const (
	embedColorAlert      = 0xE74C3C
	embedColorSuggestion = 0xF1C40F
)

// ChannelPoster is the part of *discordgo.Session the Discord sink uses.
type ChannelPoster interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSink posts alerts as embeds to a Discord channel. It uses the REST
// API only; no gateway connection is opened.
type DiscordSink struct {
	poster    ChannelPoster
	channelID string
	hostname  string
}

// NewDiscordSink creates a [DiscordSink] that authenticates with a bot token.
func NewDiscordSink(token, channelID, hostname string) (*DiscordSink, error) {
	if token == "" || channelID == "" {
		return nil, errors.New("discord: token and channel_id are required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return NewDiscordSinkWithPoster(session, channelID, hostname), nil
}

// NewDiscordSinkWithPoster creates a [DiscordSink] over an existing poster.
func NewDiscordSinkWithPoster(p ChannelPoster, channelID, hostname string) *DiscordSink {
	return &DiscordSink{poster: p, channelID: channelID, hostname: hostname}
}

func (d *DiscordSink) Name() string { return "discord" }

// Send posts a as an embed.
func (d *DiscordSink) Send(ctx context.Context, a monitor.Alert) error {
	if _, err := d.poster.ChannelMessageSendEmbed(d.channelID, buildEmbed(a, d.hostname), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

func buildEmbed(a monitor.Alert, hostname string) *discordgo.MessageEmbed {
	color := embedColorSuggestion
	if a.Severity == monitor.SeverityAlert {
		color = embedColorAlert
	}
	embed := &discordgo.MessageEmbed{
		Title:       title(a.Category),
		Description: a.Message,
		Color:       color,
		Timestamp:   a.Time.UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Severity", Value: a.Severity.String(), Inline: true},
			{Name: "Category", Value: string(a.Category), Inline: true},
		},
	}
	if hostname != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: hostname}
	}
	return embed
}

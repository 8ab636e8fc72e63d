package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Compile-time interface guard.
var _ Notifier = (*DiscordNotifier)(nil)

// DiscordNotifier delivers notifications to a Discord channel via a bot.
// Messages go over the REST API so no gateway connection is held open.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscordNotifier creates a new Discord notifier with the given config.
func NewDiscordNotifier(cfg DiscordConfig) (*DiscordNotifier, error) {
	if cfg.BotToken == "" || cfg.ChannelID == "" {
		return nil, fmt.Errorf("discord channel: bot_token and channel_id are required")
	}
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: cfg.ChannelID}, nil
}

// Notify sends an embed describing the event to the configured channel.
func (d *DiscordNotifier) Notify(ctx context.Context, ev *Event, message string) error {
	embed := &discordgo.MessageEmbed{
		Title:       embedTitle(ev),
		Description: message,
		Color:       embedColor(ev),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Severity", Value: ev.Severity, Inline: true},
			{Name: "Status", Value: ev.Status, Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Event ID: %s", ev.ID),
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_, err := d.session.ChannelMessageSendEmbed(d.channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	return nil
}

// Type returns the notifier type identifier.
func (d *DiscordNotifier) Type() string {
	return "discord"
}

func embedTitle(ev *Event) string {
	if ev.Status == StatusResolved {
		return "Resolved"
	}
	return "Problem"
}

func embedColor(ev *Event) int {
	if ev.Status == StatusResolved {
		return 3066993 // green
	}
	switch ev.Severity {
	case "critical":
		return 15158332 // red
	case "warning":
		return 15844367 // gold
	default:
		return 3447003 // blue
	}
}

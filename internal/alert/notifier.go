package alert

import (
	"context"
	"encoding/json"
	"fmt"
)

// Notifier delivers alert messages to an external destination.
type Notifier interface {
	// Notify sends a formatted message for the given event.
	Notify(ctx context.Context, ev *Event, message string) error
	// Type returns the notifier type identifier.
	Type() string
}

// WebhookConfig configures an HTTP webhook channel.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Secret  string            `json:"secret,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// EmailConfig configures a SendGrid email channel.
type EmailConfig struct {
	APIKey   string   `json:"api_key"`
	FromName string   `json:"from_name"`
	FromAddr string   `json:"from_addr"`
	To       []string `json:"to"`
}

// DiscordConfig configures a Discord bot channel.
type DiscordConfig struct {
	BotToken  string `json:"bot_token"`
	ChannelID string `json:"channel_id"`
}

// BuildNotifier constructs a Notifier from a stored channel definition.
func BuildNotifier(c *Channel) (Notifier, error) {
	switch c.Type {
	case "webhook":
		var cfg WebhookConfig
		if err := json.Unmarshal([]byte(c.Config), &cfg); err != nil {
			return nil, fmt.Errorf("parse webhook config for channel %s: %w", c.Name, err)
		}
		if cfg.URL == "" {
			return nil, fmt.Errorf("webhook channel %s: url is required", c.Name)
		}
		return NewWebhookNotifier(cfg), nil
	case "email":
		var cfg EmailConfig
		if err := json.Unmarshal([]byte(c.Config), &cfg); err != nil {
			return nil, fmt.Errorf("parse email config for channel %s: %w", c.Name, err)
		}
		if cfg.APIKey == "" || len(cfg.To) == 0 {
			return nil, fmt.Errorf("email channel %s: api_key and to are required", c.Name)
		}
		return NewEmailNotifier(cfg), nil
	case "discord":
		var cfg DiscordConfig
		if err := json.Unmarshal([]byte(c.Config), &cfg); err != nil {
			return nil, fmt.Errorf("parse discord config for channel %s: %w", c.Name, err)
		}
		return NewDiscordNotifier(cfg)
	default:
		return nil, fmt.Errorf("unknown channel type %q", c.Type)
	}
}

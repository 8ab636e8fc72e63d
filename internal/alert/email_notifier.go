package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Compile-time interface guard.
var _ Notifier = (*EmailNotifier)(nil)

// EmailNotifier delivers notifications by email through SendGrid.
type EmailNotifier struct {
	client *sendgrid.Client
	cfg    EmailConfig
}

// NewEmailNotifier creates a new email notifier with the given config.
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	if cfg.FromName == "" {
		cfg.FromName = "WirePoll"
	}
	if cfg.FromAddr == "" && len(cfg.To) > 0 {
		cfg.FromAddr = cfg.To[0]
	}
	return &EmailNotifier{
		client: sendgrid.NewSendClient(cfg.APIKey),
		cfg:    cfg,
	}
}

// Notify sends one email per configured recipient.
func (e *EmailNotifier) Notify(ctx context.Context, ev *Event, message string) error {
	subject := message
	if idx := strings.IndexByte(subject, '\n'); idx > 0 {
		subject = subject[:idx]
	}
	if len(subject) > 120 {
		subject = subject[:120]
	}

	body := fmt.Sprintf(`%s

EVENT DETAILS:
Status: %s
Severity: %s
Opened: %s
Last change: %s

---
Event ID: %s`,
		message,
		ev.Status,
		ev.Severity,
		ev.CreatedAt.Format(time.RFC3339),
		ev.UpdatedAt.Format(time.RFC3339),
		ev.ID,
	)

	from := mail.NewEmail(e.cfg.FromName, e.cfg.FromAddr)
	var firstErr error
	for _, addr := range e.cfg.To {
		to := mail.NewEmail("", addr)
		msg := mail.NewSingleEmail(from, subject, to, body, body)
		resp, err := e.client.SendWithContext(ctx, msg)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("send email to %s: %w", addr, err)
			}
			continue
		}
		if resp.StatusCode >= 300 {
			if firstErr == nil {
				firstErr = fmt.Errorf("send email to %s: status %d", addr, resp.StatusCode)
			}
		}
	}
	return firstErr
}

// Type returns the notifier type identifier.
func (e *EmailNotifier) Type() string {
	return "email"
}

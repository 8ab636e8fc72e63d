// Package alert turns trigger transitions into alert events and fans
// notifications out to configured channels.
package alert

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wirepoll/wirepoll/internal/store"
)

// Event statuses. RESOLVED is not terminal; a trigger can reopen.
const (
	StatusProblem  = "PROBLEM"
	StatusResolved = "RESOLVED"
)

// Event is one alertable occurrence of a trigger's satisfied state.
type Event struct {
	ID        string    `json:"id"`
	TriggerID string    `json:"trigger_id"`
	DeviceID  string    `json:"device_id"`
	Severity  string    `json:"severity"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Channel is a configured notification delivery channel.
type Channel struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`   // "webhook", "email", "discord"
	Config    string    `json:"config"` // JSON blob
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store provides database access for events and notification channels.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrations returns the alert schema.
func Migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create events and notification channels tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS events (
						id TEXT PRIMARY KEY,
						trigger_id TEXT NOT NULL,
						device_id TEXT NOT NULL,
						severity TEXT NOT NULL DEFAULT 'warning',
						status TEXT NOT NULL,
						message TEXT NOT NULL,
						created_at DATETIME NOT NULL,
						updated_at DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_events_trigger_status ON events(trigger_id, status)`,

					`CREATE TABLE IF NOT EXISTS notification_channels (
						id TEXT PRIMARY KEY,
						name TEXT NOT NULL,
						type TEXT NOT NULL,
						config TEXT NOT NULL,
						enabled INTEGER NOT NULL DEFAULT 1,
						created_at DATETIME NOT NULL,
						updated_at DATETIME NOT NULL
					)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}

// -- Events --

// InsertEvent inserts a new event.
func (s *Store) InsertEvent(ctx context.Context, ev *Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, trigger_id, device_id, severity, status, message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.TriggerID, ev.DeviceID, ev.Severity, ev.Status, ev.Message,
		ev.CreatedAt, ev.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetOpenEvent returns the PROBLEM event for a trigger. At most one can be
// open at any time. Returns nil, nil if none.
func (s *Store) GetOpenEvent(ctx context.Context, triggerID string) (*Event, error) {
	var ev Event
	err := s.db.QueryRowContext(ctx, `
		SELECT id, trigger_id, device_id, severity, status, message, created_at, updated_at
		FROM events WHERE trigger_id = ? AND status = ?`,
		triggerID, StatusProblem,
	).Scan(
		&ev.ID, &ev.TriggerID, &ev.DeviceID, &ev.Severity, &ev.Status,
		&ev.Message, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get open event: %w", err)
	}
	return &ev, nil
}

// ResolveEvent sets an event's status to RESOLVED.
func (s *Store) ResolveEvent(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE events SET status = ?, updated_at = ? WHERE id = ?`,
		StatusResolved, at, id,
	)
	if err != nil {
		return fmt.Errorf("resolve event: %w", err)
	}
	return nil
}

// ListEvents returns events for a trigger, newest first. If limit <= 0,
// defaults to 100.
func (s *Store) ListEvents(ctx context.Context, triggerID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trigger_id, device_id, severity, status, message, created_at, updated_at
		FROM events WHERE trigger_id = ? ORDER BY created_at DESC LIMIT ?`,
		triggerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(
			&ev.ID, &ev.TriggerID, &ev.DeviceID, &ev.Severity, &ev.Status,
			&ev.Message, &ev.CreatedAt, &ev.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DeleteOldResolved deletes resolved events older than the given time.
// Returns the number of rows deleted.
func (s *Store) DeleteOldResolved(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM events WHERE status = ? AND updated_at < ?`,
		StatusResolved, before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}
	return result.RowsAffected()
}

// -- Channels --

// InsertChannel inserts a notification channel.
func (s *Store) InsertChannel(ctx context.Context, c *Channel) error {
	enabled := 0
	if c.Enabled {
		enabled = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_channels (id, name, type, config, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Type, c.Config, enabled, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

// ListEnabledChannels returns all enabled notification channels.
func (s *Store) ListEnabledChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, config, enabled, created_at, updated_at
		FROM notification_channels WHERE enabled = 1 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var c Channel
		var enabled int
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Config, &enabled, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan channel row: %w", err)
		}
		c.Enabled = enabled != 0
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

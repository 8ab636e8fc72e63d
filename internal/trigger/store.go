package trigger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wirepoll/wirepoll/internal/store"
)

// Trigger is a persisted boolean rule over item metrics. TermStates holds the
// last-evaluated truth value of each parsed term; Satisfied is the folded
// whole-expression flag.
type Trigger struct {
	ID                 string    `json:"id"`
	DeviceID           string    `json:"device_id"`
	Name               string    `json:"name"`
	Expression         string    `json:"expression"`
	RecoveryExpression string    `json:"recovery_expression,omitempty"`
	TermStates         []bool    `json:"term_states"`
	Satisfied          bool      `json:"satisfied"`
	RecoveryStates     []bool    `json:"recovery_states,omitempty"`
	RecoverySatisfied  bool      `json:"recovery_satisfied"`
	Severity           string    `json:"severity"`
	Enabled            bool      `json:"enabled"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Store provides database access for triggers.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrations returns the trigger schema.
func Migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create triggers table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS triggers (
						id TEXT PRIMARY KEY,
						device_id TEXT NOT NULL,
						name TEXT NOT NULL,
						expression TEXT NOT NULL,
						recovery_expression TEXT NOT NULL DEFAULT '',
						term_states TEXT NOT NULL DEFAULT '[]',
						satisfied INTEGER NOT NULL DEFAULT 0,
						recovery_states TEXT NOT NULL DEFAULT '[]',
						recovery_satisfied INTEGER NOT NULL DEFAULT 0,
						severity TEXT NOT NULL DEFAULT 'warning',
						enabled INTEGER NOT NULL DEFAULT 1,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_triggers_device ON triggers(device_id, enabled)`,
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

func scanTrigger(row interface{ Scan(...any) error }) (*Trigger, error) {
	var t Trigger
	var termStates, recoveryStates string
	var satisfied, recoverySatisfied, enabled int
	err := row.Scan(
		&t.ID, &t.DeviceID, &t.Name, &t.Expression, &t.RecoveryExpression,
		&termStates, &satisfied, &recoveryStates, &recoverySatisfied, &t.Severity, &enabled,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Satisfied = satisfied != 0
	t.RecoverySatisfied = recoverySatisfied != 0
	t.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(termStates), &t.TermStates); err != nil {
		return nil, fmt.Errorf("decode term states: %w", err)
	}
	if err := json.Unmarshal([]byte(recoveryStates), &t.RecoveryStates); err != nil {
		return nil, fmt.Errorf("decode recovery states: %w", err)
	}
	return &t, nil
}

const triggerColumns = `id, device_id, name, expression, recovery_expression,
	term_states, satisfied, recovery_states, recovery_satisfied, severity, enabled, created_at, updated_at`

// Insert inserts a new trigger.
func (s *Store) Insert(ctx context.Context, t *Trigger) error {
	termStates, err := encodeStates(t.TermStates)
	if err != nil {
		return err
	}
	recoveryStates, err := encodeStates(t.RecoveryStates)
	if err != nil {
		return err
	}
	satisfied, recoverySatisfied, enabled := 0, 0, 0
	if t.Satisfied {
		satisfied = 1
	}
	if t.RecoverySatisfied {
		recoverySatisfied = 1
	}
	if t.Enabled {
		enabled = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO triggers (
			id, device_id, name, expression, recovery_expression,
			term_states, satisfied, recovery_states, recovery_satisfied, severity, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.DeviceID, t.Name, t.Expression, t.RecoveryExpression,
		termStates, satisfied, recoveryStates, recoverySatisfied, t.Severity, enabled,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trigger: %w", err)
	}
	return nil
}

// Get returns a trigger by ID. Returns nil, nil if not found.
func (s *Store) Get(ctx context.Context, id string) (*Trigger, error) {
	t, err := scanTrigger(s.db.QueryRowContext(ctx,
		`SELECT `+triggerColumns+` FROM triggers WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get trigger: %w", err)
	}
	return t, nil
}

// ListEnabledForDevice returns all enabled triggers on a device.
func (s *Store) ListEnabledForDevice(ctx context.Context, deviceID string) ([]Trigger, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+triggerColumns+` FROM triggers WHERE device_id = ? AND enabled = 1 ORDER BY created_at`,
		deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	var triggers []Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trigger row: %w", err)
		}
		triggers = append(triggers, *t)
	}
	return triggers, rows.Err()
}

// UpdateState persists a trigger's truth arrays and satisfied flags.
func (s *Store) UpdateState(ctx context.Context, id string, termStates []bool, satisfied bool, recoveryStates []bool, recoverySatisfied bool) error {
	encodedTerms, err := encodeStates(termStates)
	if err != nil {
		return err
	}
	encodedRecovery, err := encodeStates(recoveryStates)
	if err != nil {
		return err
	}
	satisfiedInt, recoverySatisfiedInt := 0, 0
	if satisfied {
		satisfiedInt = 1
	}
	if recoverySatisfied {
		recoverySatisfiedInt = 1
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE triggers SET term_states = ?, satisfied = ?, recovery_states = ?, recovery_satisfied = ?, updated_at = ?
		WHERE id = ?`,
		encodedTerms, satisfiedInt, encodedRecovery, recoverySatisfiedInt, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update trigger state: %w", err)
	}
	return nil
}

// Delete removes a trigger.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM triggers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	return nil
}

func encodeStates(states []bool) (string, error) {
	if states == nil {
		states = []bool{}
	}
	b, err := json.Marshal(states)
	if err != nil {
		return "", fmt.Errorf("encode states: %w", err)
	}
	return string(b), nil
}

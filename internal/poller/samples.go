package poller

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wirepoll/wirepoll/internal/store"
)

// Sample is one polled measurement: the raw counter value and the rate
// derived from the previous sample. Append-only, never updated.
type Sample struct {
	ID        int64     `json:"id"`
	ItemID    string    `json:"item_id"`
	DeviceID  string    `json:"device_id"`
	Value     float64   `json:"value"`
	Rate      float64   `json:"rate"`
	SampledAt time.Time `json:"sampled_at"`
}

// Aggregate summarizes the rates of samples inside a time window.
type Aggregate struct {
	Count int
	Avg   float64
	Min   float64
	Max   float64
}

// SampleStore provides append and windowed-read access to samples.
type SampleStore struct {
	db *sql.DB
}

// NewSampleStore creates a SampleStore backed by the given database.
func NewSampleStore(db *sql.DB) *SampleStore {
	return &SampleStore{db: db}
}

// Migrations returns the sample schema.
func Migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create samples table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS samples (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						item_id TEXT NOT NULL,
						device_id TEXT NOT NULL,
						value REAL NOT NULL,
						rate REAL NOT NULL DEFAULT 0,
						sampled_at DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_samples_item_time ON samples(item_id, sampled_at)`,
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

// Insert appends a sample.
func (s *SampleStore) Insert(ctx context.Context, sm *Sample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO samples (item_id, device_id, value, rate, sampled_at)
		VALUES (?, ?, ?, ?, ?)`,
		sm.ItemID, sm.DeviceID, sm.Value, sm.Rate, sm.SampledAt,
	)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// Latest returns the most recent sample for an item. Returns nil, nil when
// the item has never been sampled.
func (s *SampleStore) Latest(ctx context.Context, itemID string) (*Sample, error) {
	var sm Sample
	err := s.db.QueryRowContext(ctx, `
		SELECT id, item_id, device_id, value, rate, sampled_at
		FROM samples WHERE item_id = ? ORDER BY sampled_at DESC, id DESC LIMIT 1`,
		itemID,
	).Scan(&sm.ID, &sm.ItemID, &sm.DeviceID, &sm.Value, &sm.Rate, &sm.SampledAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest sample: %w", err)
	}
	return &sm, nil
}

// Recent returns up to limit samples for an item, newest first.
func (s *SampleStore) Recent(ctx context.Context, itemID string, limit int) ([]Sample, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, device_id, value, rate, sampled_at
		FROM samples WHERE item_id = ? ORDER BY sampled_at DESC, id DESC LIMIT ?`,
		itemID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sm Sample
		if err := rows.Scan(&sm.ID, &sm.ItemID, &sm.DeviceID, &sm.Value, &sm.Rate, &sm.SampledAt); err != nil {
			return nil, fmt.Errorf("scan sample row: %w", err)
		}
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

// AggregateSince computes rate aggregates over samples with
// sampled_at >= since. Count is zero when the window is empty.
func (s *SampleStore) AggregateSince(ctx context.Context, itemID string, since time.Time) (Aggregate, error) {
	var agg Aggregate
	var avg, min, max sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(rate), MIN(rate), MAX(rate)
		FROM samples WHERE item_id = ? AND sampled_at >= ?`,
		itemID, since,
	).Scan(&agg.Count, &avg, &min, &max)
	if err != nil {
		return Aggregate{}, fmt.Errorf("aggregate samples: %w", err)
	}
	agg.Avg = avg.Float64
	agg.Min = min.Float64
	agg.Max = max.Float64
	return agg, nil
}

// DeleteOld deletes samples older than the given time. Returns the number of
// rows deleted.
func (s *SampleStore) DeleteOld(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM samples WHERE sampled_at < ?`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete old samples: %w", err)
	}
	return result.RowsAffected()
}

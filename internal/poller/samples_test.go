package poller

import (
	"context"
	"testing"
	"time"

	"github.com/wirepoll/wirepoll/internal/store"
)

func newTestSampleStore(t *testing.T) *SampleStore {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background(), "poller", Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSampleStore(db.DB())
}

func insertSample(t *testing.T, s *SampleStore, itemID string, value, rate float64, at time.Time) {
	t.Helper()
	err := s.Insert(context.Background(), &Sample{
		ItemID:    itemID,
		DeviceID:  "dev-1",
		Value:     value,
		Rate:      rate,
		SampledAt: at,
	})
	if err != nil {
		t.Fatalf("insert sample: %v", err)
	}
}

func TestSampleStore_LatestEmpty(t *testing.T) {
	s := newTestSampleStore(t)
	sm, err := s.Latest(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sm != nil {
		t.Errorf("expected nil sample, got %+v", sm)
	}
}

func TestSampleStore_Latest(t *testing.T) {
	s := newTestSampleStore(t)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	insertSample(t, s, "item-1", 100, 0, t0)
	insertSample(t, s, "item-1", 150, 5, t0.Add(10*time.Second))
	insertSample(t, s, "item-other", 999, 99, t0.Add(time.Minute))

	sm, err := s.Latest(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sm == nil {
		t.Fatal("expected a sample")
	}
	if sm.Value != 150 || sm.Rate != 5 {
		t.Errorf("latest = value %v rate %v, want 150/5", sm.Value, sm.Rate)
	}
}

func TestSampleStore_AggregateSince(t *testing.T) {
	s := newTestSampleStore(t)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	insertSample(t, s, "item-1", 0, 2, t0.Add(-time.Hour)) // outside window
	insertSample(t, s, "item-1", 0, 4, t0)
	insertSample(t, s, "item-1", 0, 8, t0.Add(10*time.Second))

	agg, err := s.AggregateSince(context.Background(), "item-1", t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agg.Count != 2 {
		t.Fatalf("count = %d, want 2", agg.Count)
	}
	if agg.Avg != 6 || agg.Min != 4 || agg.Max != 8 {
		t.Errorf("agg = %+v, want avg 6 min 4 max 8", agg)
	}
}

func TestSampleStore_AggregateEmptyWindow(t *testing.T) {
	s := newTestSampleStore(t)
	agg, err := s.AggregateSince(context.Background(), "item-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agg.Count != 0 {
		t.Errorf("count = %d, want 0", agg.Count)
	}
}

func TestSampleStore_DeleteOld(t *testing.T) {
	s := newTestSampleStore(t)
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	insertSample(t, s, "item-1", 1, 0, t0.Add(-48*time.Hour))
	insertSample(t, s, "item-1", 2, 0, t0)

	deleted, err := s.DeleteOld(context.Background(), t0.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	left, err := s.Recent(context.Background(), "item-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(left) != 1 {
		t.Errorf("remaining = %d, want 1", len(left))
	}
}

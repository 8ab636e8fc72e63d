package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wirepoll/wirepoll/internal/inventory"
)

func testItem(id string, interval int) inventory.Item {
	return inventory.Item{
		ID:              id,
		DeviceID:        "dev-1",
		Name:            "wan-in",
		OID:             "1.3.6.1.2.1.2.2.1.10.1",
		IntervalSeconds: interval,
		Enabled:         true,
	}
}

func TestScheduler_FiresImmediately(t *testing.T) {
	var fires atomic.Int64
	s := NewScheduler(nil, func(ctx context.Context, item inventory.Item) {
		fires.Add(1)
	}, zap.NewNop())
	defer s.Shutdown()

	s.Start(context.Background(), testItem("item-1", 3600))

	deadline := time.After(2 * time.Second)
	for fires.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("no fire within 2s of scheduling")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestScheduler_RestartReplacesTimer(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int]int) // interval -> fires
	s := NewScheduler(nil, func(ctx context.Context, item inventory.Item) {
		mu.Lock()
		seen[item.IntervalSeconds]++
		mu.Unlock()
	}, zap.NewNop())
	defer s.Shutdown()

	ctx := context.Background()
	s.Start(ctx, testItem("item-1", 1800))
	s.Start(ctx, testItem("item-1", 3600))

	if s.Count() != 1 {
		t.Fatalf("count = %d, want exactly one timer after restart", s.Count())
	}

	// Give both the old (cancelled) and new goroutines time to settle.
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	newFires := seen[3600]
	mu.Unlock()
	if newFires == 0 {
		t.Error("replacement timer never fired")
	}
}

func TestScheduler_StopUnknownIsNoop(t *testing.T) {
	s := NewScheduler(nil, func(ctx context.Context, item inventory.Item) {}, zap.NewNop())
	s.Stop("never-scheduled") // must not panic
	if s.Count() != 0 {
		t.Errorf("count = %d, want 0", s.Count())
	}
}

func TestScheduler_StopCancelsFires(t *testing.T) {
	var fires atomic.Int64
	s := NewScheduler(nil, func(ctx context.Context, item inventory.Item) {
		fires.Add(1)
	}, zap.NewNop())

	s.Start(context.Background(), testItem("item-1", 3600))
	for fires.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop("item-1")

	if s.Scheduled("item-1") {
		t.Error("item still scheduled after Stop")
	}

	before := fires.Load()
	time.Sleep(100 * time.Millisecond)
	if fires.Load() != before {
		t.Error("fire occurred after Stop")
	}
}

func TestScheduler_RunnerPanicDoesNotKillTimer(t *testing.T) {
	var fires atomic.Int64
	s := NewScheduler(nil, func(ctx context.Context, item inventory.Item) {
		fires.Add(1)
		panic("poll blew up")
	}, zap.NewNop())
	defer s.Shutdown()

	s.Start(context.Background(), testItem("item-1", 3600))

	deadline := time.After(2 * time.Second)
	for fires.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("panicking runner never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if !s.Scheduled("item-1") {
		t.Error("timer gone after runner panic")
	}
}

func TestScheduler_Shutdown(t *testing.T) {
	s := NewScheduler(nil, func(ctx context.Context, item inventory.Item) {}, zap.NewNop())
	ctx := context.Background()
	s.Start(ctx, testItem("a", 3600))
	s.Start(ctx, testItem("b", 3600))

	s.Shutdown()

	if s.Count() != 0 {
		t.Errorf("count = %d after shutdown, want 0", s.Count())
	}
}

package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wirepoll/wirepoll/internal/inventory"
	"github.com/wirepoll/wirepoll/internal/metrics"
)

// ItemRunner is invoked by the scheduler on every timer fire for an item.
type ItemRunner func(ctx context.Context, item inventory.Item)

// Scheduler owns one independent repeating timer per monitored item. Timers
// run concurrently; a slow or failing fire never delays other items.
type Scheduler struct {
	inventory *inventory.Store
	runner    ItemRunner
	logger    *zap.Logger

	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
}

type task struct {
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler that dispatches item fires to the runner.
func NewScheduler(inv *inventory.Store, runner ItemRunner, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		inventory: inv,
		runner:    runner,
		logger:    logger,
		tasks:     make(map[string]*task),
	}
}

// Start begins a periodic task for the item. If a task already exists for
// the item's identity it is cancelled first, so interval changes take effect
// without duplicate timers.
func (s *Scheduler) Start(ctx context.Context, item inventory.Item) {
	interval := item.Interval()
	if interval <= 0 {
		interval = time.Minute
	}

	s.mu.Lock()
	if old, ok := s.tasks[item.ID]; ok {
		old.cancel()
	} else {
		metrics.ActiveTimers.Inc()
	}

	taskCtx, cancel := context.WithCancel(ctx)
	s.tasks[item.ID] = &task{cancel: cancel}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Poll immediately on schedule, then on each tick.
		s.fire(taskCtx, item)

		for {
			select {
			case <-taskCtx.Done():
				return
			case <-ticker.C:
				s.fire(taskCtx, item)
			}
		}
	}()

	s.logger.Debug("item scheduled",
		zap.String("item_id", item.ID),
		zap.Duration("interval", interval),
	)
}

// Stop cancels and removes the task for an item. No-op for unknown ids.
// No further fires begin after Stop returns; an in-flight fire completes
// but does not reschedule.
func (s *Scheduler) Stop(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[itemID]
	if !ok {
		return
	}
	t.cancel()
	delete(s.tasks, itemID)
	metrics.ActiveTimers.Dec()

	s.logger.Debug("item unscheduled", zap.String("item_id", itemID))
}

// StartAll loads every enabled item and schedules it. Called once at
// process start.
func (s *Scheduler) StartAll(ctx context.Context) error {
	items, err := s.inventory.ListEnabledItems(ctx)
	if err != nil {
		return err
	}
	for i := range items {
		s.Start(ctx, items[i])
	}
	s.logger.Info("item timers started", zap.Int("count", len(items)))
	return nil
}

// Shutdown cancels all tasks and waits for in-flight fires to complete.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for id, t := range s.tasks {
		t.cancel()
		delete(s.tasks, id)
		metrics.ActiveTimers.Dec()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Scheduled reports whether a timer exists for the item.
func (s *Scheduler) Scheduled(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[itemID]
	return ok
}

// Count returns the number of active timers.
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// fire runs one scheduled poll, containing panics so the timer cadence
// survives any single failure.
func (s *Scheduler) fire(ctx context.Context, item inventory.Item) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("item fire panicked",
				zap.String("item_id", item.ID),
				zap.Any("panic", r),
			)
		}
	}()
	s.runner(ctx, item)
}

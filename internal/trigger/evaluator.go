package trigger

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wirepoll/wirepoll/internal/event"
	"github.com/wirepoll/wirepoll/internal/inventory"
	"github.com/wirepoll/wirepoll/internal/metrics"
	"github.com/wirepoll/wirepoll/internal/poller"
)

// Bus topics emitted on trigger state transitions.
const (
	TopicFired    = "trigger.fired"
	TopicResolved = "trigger.resolved"
)

// Transition is the payload published on TopicFired and TopicResolved.
type Transition struct {
	Trigger    Trigger
	DeviceID   string
	ItemName   string
	Value      float64 // measured value of the comparison that fired
	Comparison string  // the term as written, e.g. "avg(wan-in,15m) > 80"
}

// ItemResolver resolves the items named inside expressions.
type ItemResolver interface {
	GetItemByName(ctx context.Context, deviceID, name string) (*inventory.Item, error)
}

// SampleReader reads stored samples for term resolution.
type SampleReader interface {
	Latest(ctx context.Context, itemID string) (*poller.Sample, error)
	AggregateSince(ctx context.Context, itemID string, since time.Time) (poller.Aggregate, error)
}

// Evaluator finds and evaluates the triggers affected by a new sample.
// Evaluation of any one trigger is serialized through a lock keyed by
// trigger id, so two items of the same compound expression firing close
// together cannot clobber each other's truth-array update.
type Evaluator struct {
	triggers *Store
	items    ItemResolver
	samples  SampleReader
	bus      *event.Bus
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEvaluator creates a trigger evaluator.
func NewEvaluator(triggers *Store, items ItemResolver, samples SampleReader, bus *event.Bus, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		triggers: triggers,
		items:    items,
		samples:  samples,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Evaluate processes a new rate for an item: every enabled trigger on the
// device whose expression references the item is re-evaluated. A malformed
// expression skips that trigger only; sibling triggers still run.
func (e *Evaluator) Evaluate(ctx context.Context, deviceID, itemName string, rate float64) {
	triggers, err := e.triggers.ListEnabledForDevice(ctx, deviceID)
	if err != nil {
		e.logger.Warn("trigger lookup failed",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return
	}

	for i := range triggers {
		e.evaluateOne(ctx, &triggers[i], itemName)
	}
}

func (e *Evaluator) evaluateOne(ctx context.Context, t *Trigger, itemName string) {
	expr, err := Parse(t.Expression)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("parse_error").Inc()
		e.logger.Warn("skipping trigger with malformed expression",
			zap.String("trigger_id", t.ID),
			zap.Error(err),
		)
		return
	}
	if !expr.References(itemName) {
		return
	}

	lock := e.lockFor(t.ID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock so concurrent evaluations fold over fresh state.
	current, err := e.triggers.Get(ctx, t.ID)
	if err != nil || current == nil {
		if err != nil {
			e.logger.Warn("trigger re-read failed", zap.String("trigger_id", t.ID), zap.Error(err))
		}
		return
	}

	states, fired := e.resolveTerms(ctx, current.DeviceID, expr, itemName)
	satisfied := Fold(states, expr.Connectives)

	if satisfied {
		metrics.EvaluationsTotal.WithLabelValues("satisfied").Inc()
	} else {
		metrics.EvaluationsTotal.WithLabelValues("unsatisfied").Inc()
	}

	recoveryStates := current.RecoveryStates
	recoverySatisfied := current.RecoverySatisfied

	// A satisfied trigger with a recovery expression stays in problem state
	// until the recovery expression holds. Without one, clearing the problem
	// expression resolves immediately.
	if current.Satisfied && !satisfied && current.RecoveryExpression != "" {
		var resolveReady bool
		recoveryStates, recoverySatisfied, resolveReady = e.evaluateRecovery(ctx, current)
		if !resolveReady {
			satisfied = true
		}
	}
	transitionedDown := current.Satisfied && !satisfied

	changed := !equalStates(states, current.TermStates) ||
		satisfied != current.Satisfied ||
		!equalStates(recoveryStates, current.RecoveryStates) ||
		recoverySatisfied != current.RecoverySatisfied
	if !changed {
		return
	}

	if err := e.triggers.UpdateState(ctx, current.ID, states, satisfied, recoveryStates, recoverySatisfied); err != nil {
		e.logger.Warn("trigger state write failed", zap.String("trigger_id", current.ID), zap.Error(err))
		return
	}

	updated := *current
	updated.TermStates = states
	updated.Satisfied = satisfied
	updated.RecoveryStates = recoveryStates
	updated.RecoverySatisfied = recoverySatisfied

	switch {
	case !current.Satisfied && satisfied:
		e.publish(ctx, TopicFired, &updated, itemName, fired)
	case transitionedDown:
		e.publish(ctx, TopicResolved, &updated, itemName, fired)
	}
}

// evaluateRecovery runs the symmetric recovery expression. The trigger may
// only resolve once the recovery expression is satisfied.
func (e *Evaluator) evaluateRecovery(ctx context.Context, t *Trigger) (states []bool, satisfied, resolveReady bool) {
	expr, err := Parse(t.RecoveryExpression)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("parse_error").Inc()
		e.logger.Warn("skipping malformed recovery expression",
			zap.String("trigger_id", t.ID),
			zap.Error(err),
		)
		// Unverifiable recovery condition: hold the resolve.
		return t.RecoveryStates, t.RecoverySatisfied, false
	}

	states, _ = e.resolveTerms(ctx, t.DeviceID, expr, "")
	satisfied = Fold(states, expr.Connectives)
	return states, satisfied, satisfied
}

// resolveTerms computes each term's truth value. A term with no samples in
// its window evaluates to false, not an error. fired describes the first
// satisfied term referencing itemName (falling back to the first satisfied
// term) for event messages.
func (e *Evaluator) resolveTerms(ctx context.Context, deviceID string, expr *Expression, itemName string) (states []bool, fired Transition) {
	states = make([]bool, len(expr.Terms))

	for i := range expr.Terms {
		term := &expr.Terms[i]

		value, ok := e.termValue(ctx, deviceID, term)
		if !ok {
			continue
		}

		states[i] = term.Compare(value)
		if !states[i] {
			continue
		}
		if fired.Comparison == "" || (itemName != "" && term.Item == itemName && fired.ItemName != itemName) {
			fired = Transition{ItemName: term.Item, Value: value, Comparison: term.String()}
		}
	}

	return states, fired
}

// termValue resolves a term's numeric operand from stored samples. ok is
// false when the item is unknown or the window holds no samples.
func (e *Evaluator) termValue(ctx context.Context, deviceID string, term *Term) (float64, bool) {
	item, err := e.items.GetItemByName(ctx, deviceID, term.Item)
	if err != nil {
		e.logger.Warn("item lookup failed",
			zap.String("device_id", deviceID),
			zap.String("item", term.Item),
			zap.Error(err),
		)
		return 0, false
	}
	if item == nil {
		return 0, false
	}

	if term.Func == "last" {
		sample, err := e.samples.Latest(ctx, item.ID)
		if err != nil {
			e.logger.Warn("latest sample read failed", zap.String("item_id", item.ID), zap.Error(err))
			return 0, false
		}
		if sample == nil {
			return 0, false
		}
		return sample.Rate, true
	}

	agg, err := e.samples.AggregateSince(ctx, item.ID, e.now().UTC().Add(-term.Window))
	if err != nil {
		e.logger.Warn("aggregate read failed", zap.String("item_id", item.ID), zap.Error(err))
		return 0, false
	}
	if agg.Count == 0 {
		// Empty window: the term is false, never an error.
		return 0, false
	}

	switch term.Func {
	case "avg":
		return agg.Avg, true
	case "min":
		return agg.Min, true
	case "max":
		return agg.Max, true
	default:
		return 0, false
	}
}

func (e *Evaluator) publish(ctx context.Context, topic string, t *Trigger, itemName string, fired Transition) {
	fired.Trigger = *t
	fired.DeviceID = t.DeviceID
	if fired.ItemName == "" {
		fired.ItemName = itemName
	}

	e.bus.Publish(ctx, event.Event{
		Topic:     topic,
		Source:    "trigger",
		Timestamp: e.now().UTC(),
		Payload:   &fired,
	})
}

func (e *Evaluator) lockFor(triggerID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[triggerID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[triggerID] = lock
	}
	return lock
}

func equalStates(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package trigger

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wirepoll/wirepoll/internal/event"
	"github.com/wirepoll/wirepoll/internal/inventory"
	"github.com/wirepoll/wirepoll/internal/poller"
	"github.com/wirepoll/wirepoll/internal/store"
)

type fakeItems struct {
	items map[string]string // "deviceID/name" -> item ID
}

func (f *fakeItems) GetItemByName(_ context.Context, deviceID, name string) (*inventory.Item, error) {
	id, ok := f.items[deviceID+"/"+name]
	if !ok {
		return nil, nil
	}
	return &inventory.Item{ID: id, DeviceID: deviceID, Name: name}, nil
}

type fakeSamples struct {
	latest map[string]*poller.Sample
	aggs   map[string]poller.Aggregate
}

func (f *fakeSamples) Latest(_ context.Context, itemID string) (*poller.Sample, error) {
	return f.latest[itemID], nil
}

func (f *fakeSamples) AggregateSince(_ context.Context, itemID string, _ time.Time) (poller.Aggregate, error) {
	return f.aggs[itemID], nil
}

type evalFixture struct {
	eval     *Evaluator
	triggers *Store
	items    *fakeItems
	samples  *fakeSamples
	events   *[]event.Event
}

func newEvalFixture(t *testing.T) *evalFixture {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background(), "trigger", Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	triggers := NewStore(db.DB())
	items := &fakeItems{items: map[string]string{"dev-1/wan-in": "item-1", "dev-1/wan-util": "item-2"}}
	samples := &fakeSamples{
		latest: make(map[string]*poller.Sample),
		aggs:   make(map[string]poller.Aggregate),
	}
	bus := event.NewBus(zap.NewNop())

	var published []event.Event
	bus.SubscribeAll(func(_ context.Context, ev event.Event) {
		published = append(published, ev)
	})

	return &evalFixture{
		eval:     NewEvaluator(triggers, items, samples, bus, zap.NewNop()),
		triggers: triggers,
		items:    items,
		samples:  samples,
		events:   &published,
	}
}

func (f *evalFixture) addTrigger(t *testing.T, tr *Trigger) {
	t.Helper()
	if tr.Severity == "" {
		tr.Severity = "warning"
	}
	tr.Enabled = true
	if err := f.triggers.Insert(context.Background(), tr); err != nil {
		t.Fatalf("insert trigger: %v", err)
	}
}

func TestEvaluator_FiresOnThresholdCross(t *testing.T) {
	f := newEvalFixture(t)
	f.addTrigger(t, &Trigger{ID: "t1", DeviceID: "dev-1", Name: "wan busy", Expression: "last(wan-in) > 100"})
	f.samples.latest["item-1"] = &poller.Sample{Rate: 150}

	f.eval.Evaluate(context.Background(), "dev-1", "wan-in", 150)

	if len(*f.events) != 1 {
		t.Fatalf("events = %d, want 1", len(*f.events))
	}
	ev := (*f.events)[0]
	if ev.Topic != TopicFired {
		t.Errorf("topic = %q, want %q", ev.Topic, TopicFired)
	}
	tr := ev.Payload.(*Transition)
	if tr.Trigger.ID != "t1" || tr.ItemName != "wan-in" || tr.Value != 150 {
		t.Errorf("transition = %+v", tr)
	}

	stored, err := f.triggers.Get(context.Background(), "t1")
	if err != nil || stored == nil {
		t.Fatalf("re-read trigger: %v", err)
	}
	if !stored.Satisfied {
		t.Error("trigger not persisted as satisfied")
	}
}

func TestEvaluator_NoRepeatFireWhileSatisfied(t *testing.T) {
	f := newEvalFixture(t)
	f.addTrigger(t, &Trigger{ID: "t1", DeviceID: "dev-1", Name: "wan busy", Expression: "last(wan-in) > 100"})
	f.samples.latest["item-1"] = &poller.Sample{Rate: 150}

	f.eval.Evaluate(context.Background(), "dev-1", "wan-in", 150)
	f.eval.Evaluate(context.Background(), "dev-1", "wan-in", 160)

	if len(*f.events) != 1 {
		t.Errorf("events = %d, want 1 (no repeat while satisfied)", len(*f.events))
	}
}

func TestEvaluator_ResolvesWithoutRecoveryExpression(t *testing.T) {
	f := newEvalFixture(t)
	f.addTrigger(t, &Trigger{ID: "t1", DeviceID: "dev-1", Name: "wan busy", Expression: "last(wan-in) > 100"})

	f.samples.latest["item-1"] = &poller.Sample{Rate: 150}
	f.eval.Evaluate(context.Background(), "dev-1", "wan-in", 150)

	f.samples.latest["item-1"] = &poller.Sample{Rate: 50}
	f.eval.Evaluate(context.Background(), "dev-1", "wan-in", 50)

	if len(*f.events) != 2 {
		t.Fatalf("events = %d, want 2", len(*f.events))
	}
	if (*f.events)[1].Topic != TopicResolved {
		t.Errorf("topic = %q, want %q", (*f.events)[1].Topic, TopicResolved)
	}
}

func TestEvaluator_RecoveryExpressionGatesResolve(t *testing.T) {
	f := newEvalFixture(t)
	f.addTrigger(t, &Trigger{
		ID: "t1", DeviceID: "dev-1", Name: "wan busy",
		Expression:         "last(wan-in) > 100",
		RecoveryExpression: "last(wan-in) < 50",
	})

	f.samples.latest["item-1"] = &poller.Sample{Rate: 150}
	f.eval.Evaluate(context.Background(), "dev-1", "wan-in", 150)

	// Below the problem threshold but above the recovery threshold:
	// no resolution yet.
	f.samples.latest["item-1"] = &poller.Sample{Rate: 80}
	f.eval.Evaluate(context.Background(), "dev-1", "wan-in", 80)

	if len(*f.events) != 1 {
		t.Fatalf("events = %d, want 1 (resolve held by recovery expression)", len(*f.events))
	}

	stored, _ := f.triggers.Get(context.Background(), "t1")
	if !stored.Satisfied {
		t.Error("problem state should hold while the recovery expression is unmet")
	}

	// Now under the recovery threshold: the resolve goes out.
	f.samples.latest["item-1"] = &poller.Sample{Rate: 10}
	f.eval.Evaluate(context.Background(), "dev-1", "wan-in", 10)

	if len(*f.events) != 2 {
		t.Fatalf("events = %d, want 2", len(*f.events))
	}
	if (*f.events)[1].Topic != TopicResolved {
		t.Errorf("topic = %q, want %q", (*f.events)[1].Topic, TopicResolved)
	}
}

func TestEvaluator_EmptyWindowIsFalse(t *testing.T) {
	f := newEvalFixture(t)
	f.addTrigger(t, &Trigger{ID: "t1", DeviceID: "dev-1", Name: "avg high", Expression: "avg(wan-in, 5m) > 1"})
	// No aggregate entry at all: Count stays 0.

	f.eval.Evaluate(context.Background(), "dev-1", "wan-in", 99)

	if len(*f.events) != 0 {
		t.Errorf("events = %d, want 0 for an empty window", len(*f.events))
	}
}

func TestEvaluator_MalformedSkipsOnlyThatTrigger(t *testing.T) {
	f := newEvalFixture(t)
	f.addTrigger(t, &Trigger{ID: "bad", DeviceID: "dev-1", Name: "broken", Expression: "not a rule"})
	f.addTrigger(t, &Trigger{ID: "good", DeviceID: "dev-1", Name: "works", Expression: "last(wan-in) > 100"})
	f.samples.latest["item-1"] = &poller.Sample{Rate: 150}

	f.eval.Evaluate(context.Background(), "dev-1", "wan-in", 150)

	if len(*f.events) != 1 {
		t.Fatalf("events = %d, want 1 (sibling still evaluates)", len(*f.events))
	}
	if got := (*f.events)[0].Payload.(*Transition).Trigger.ID; got != "good" {
		t.Errorf("fired trigger = %q, want %q", got, "good")
	}
}

func TestEvaluator_IgnoresUnreferencedItem(t *testing.T) {
	f := newEvalFixture(t)
	f.addTrigger(t, &Trigger{ID: "t1", DeviceID: "dev-1", Name: "util", Expression: "last(wan-util) > 1"})
	f.samples.latest["item-2"] = &poller.Sample{Rate: 99}

	// New rate for wan-in must not evaluate a trigger that only reads wan-util.
	f.eval.Evaluate(context.Background(), "dev-1", "wan-in", 5)

	if len(*f.events) != 0 {
		t.Errorf("events = %d, want 0", len(*f.events))
	}
}

func TestEvaluator_MultiTermFold(t *testing.T) {
	f := newEvalFixture(t)
	f.addTrigger(t, &Trigger{
		ID: "t1", DeviceID: "dev-1", Name: "combo",
		Expression: "last(wan-in) > 100 and avg(wan-util, 5m) > 50",
	})
	f.samples.latest["item-1"] = &poller.Sample{Rate: 150}
	f.samples.aggs["item-2"] = poller.Aggregate{Count: 3, Avg: 40}

	f.eval.Evaluate(context.Background(), "dev-1", "wan-in", 150)
	if len(*f.events) != 0 {
		t.Fatalf("events = %d, want 0 while second term false", len(*f.events))
	}

	f.samples.aggs["item-2"] = poller.Aggregate{Count: 3, Avg: 60}
	f.eval.Evaluate(context.Background(), "dev-1", "wan-in", 150)
	if len(*f.events) != 1 {
		t.Fatalf("events = %d, want 1 once both terms hold", len(*f.events))
	}
}

func TestEvaluator_WindowedAggregateOnNonUTCHost(t *testing.T) {
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if err := db.Migrate(ctx, "poller", poller.Migrations()); err != nil {
		t.Fatalf("migrate poller: %v", err)
	}
	if err := db.Migrate(ctx, "trigger", Migrations()); err != nil {
		t.Fatalf("migrate trigger: %v", err)
	}

	triggers := NewStore(db.DB())
	samples := poller.NewSampleStore(db.DB())
	items := &fakeItems{items: map[string]string{"dev-1/wan-in": "item-1"}}
	bus := event.NewBus(zap.NewNop())

	var published []event.Event
	bus.SubscribeAll(func(_ context.Context, ev event.Event) {
		published = append(published, ev)
	})

	eval := NewEvaluator(triggers, items, samples, bus, zap.NewNop())

	// Samples are stamped in UTC; the evaluator's clock reads in a zone
	// nine hours ahead. The window cutoff must still land on the sample.
	now := time.Now()
	eval.now = func() time.Time { return now.In(time.FixedZone("UTC+9", 9*60*60)) }

	err = samples.Insert(ctx, &poller.Sample{
		ItemID:    "item-1",
		DeviceID:  "dev-1",
		Value:     150,
		Rate:      150,
		SampledAt: now.UTC().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("insert sample: %v", err)
	}

	tr := &Trigger{
		ID: "t1", DeviceID: "dev-1", Name: "wan busy",
		Expression: "avg(wan-in, 15m) > 100",
		Severity:   "warning", Enabled: true,
	}
	if err := triggers.Insert(ctx, tr); err != nil {
		t.Fatalf("insert trigger: %v", err)
	}

	eval.Evaluate(ctx, "dev-1", "wan-in", 150)

	if len(published) != 1 {
		t.Fatalf("events = %d, want 1 (minute-old sample inside a 15m window)", len(published))
	}
	if published[0].Topic != TopicFired {
		t.Errorf("topic = %q, want %q", published[0].Topic, TopicFired)
	}
}

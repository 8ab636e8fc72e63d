package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wirepoll/wirepoll/internal/event"
	"github.com/wirepoll/wirepoll/internal/inventory"
	"github.com/wirepoll/wirepoll/internal/trigger"
)

// DeviceResolver looks up devices so messages can carry a device name.
type DeviceResolver interface {
	GetDevice(ctx context.Context, id string) (*inventory.Device, error)
}

// Manager is the alert event state machine. It consumes trigger
// transitions from the event bus and maintains at most one open
// PROBLEM event per trigger, notifying channels exactly once per
// state change.
type Manager struct {
	store      *Store
	devices    DeviceResolver
	dispatcher *Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewManager creates an alert Manager.
func NewManager(store *Store, devices DeviceResolver, dispatcher *Dispatcher, logger *zap.Logger) *Manager {
	return &Manager{
		store:      store,
		devices:    devices,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Register subscribes the manager to trigger transitions on the bus.
func (m *Manager) Register(bus *event.Bus) {
	bus.Subscribe(trigger.TopicFired, func(ctx context.Context, ev event.Event) {
		if tr, ok := ev.Payload.(*trigger.Transition); ok {
			m.HandleFired(ctx, tr)
		}
	})
	bus.Subscribe(trigger.TopicResolved, func(ctx context.Context, ev event.Event) {
		if tr, ok := ev.Payload.(*trigger.Transition); ok {
			m.HandleResolved(ctx, tr)
		}
	})
}

// HandleFired opens a PROBLEM event for the trigger, unless one is
// already open, and notifies channels for the new event only.
func (m *Manager) HandleFired(ctx context.Context, tr *trigger.Transition) {
	open, err := m.store.GetOpenEvent(ctx, tr.Trigger.ID)
	if err != nil {
		m.logger.Error("look up open event",
			zap.String("trigger_id", tr.Trigger.ID), zap.Error(err))
		return
	}
	if open != nil {
		// Already open. Repeated fires are not new problems.
		m.logger.Debug("trigger fired with event already open",
			zap.String("trigger_id", tr.Trigger.ID),
			zap.String("event_id", open.ID))
		return
	}

	now := m.now().UTC()
	ev := &Event{
		ID:        uuid.NewString(),
		TriggerID: tr.Trigger.ID,
		DeviceID:  tr.DeviceID,
		Severity:  tr.Trigger.Severity,
		Status:    StatusProblem,
		Message:   m.describe(ctx, tr),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.InsertEvent(ctx, ev); err != nil {
		m.logger.Error("insert event",
			zap.String("trigger_id", tr.Trigger.ID), zap.Error(err))
		return
	}

	m.logger.Info("problem opened",
		zap.String("event_id", ev.ID),
		zap.String("trigger", tr.Trigger.Name),
		zap.String("severity", ev.Severity))

	m.dispatcher.Dispatch(ctx, ev, "Problem: "+ev.Message)
}

// HandleResolved closes the open PROBLEM event for the trigger, if any,
// and notifies channels of the resolution.
func (m *Manager) HandleResolved(ctx context.Context, tr *trigger.Transition) {
	open, err := m.store.GetOpenEvent(ctx, tr.Trigger.ID)
	if err != nil {
		m.logger.Error("look up open event",
			zap.String("trigger_id", tr.Trigger.ID), zap.Error(err))
		return
	}
	if open == nil {
		// Nothing to resolve. A resolve without an open event is a no-op.
		m.logger.Debug("trigger resolved with no open event",
			zap.String("trigger_id", tr.Trigger.ID))
		return
	}

	now := m.now().UTC()
	if err := m.store.ResolveEvent(ctx, open.ID, now); err != nil {
		m.logger.Error("resolve event",
			zap.String("event_id", open.ID), zap.Error(err))
		return
	}
	open.Status = StatusResolved
	open.UpdatedAt = now

	m.logger.Info("problem resolved",
		zap.String("event_id", open.ID),
		zap.String("trigger", tr.Trigger.Name))

	m.dispatcher.Dispatch(ctx, open, "Resolved: "+open.Message)
}

// describe builds the human-readable event message. It embeds the
// severity, trigger and device names, the item that fired, the
// measured value, and the comparison as written.
func (m *Manager) describe(ctx context.Context, tr *trigger.Transition) string {
	deviceName := tr.DeviceID
	if dev, err := m.devices.GetDevice(ctx, tr.DeviceID); err == nil && dev != nil {
		deviceName = dev.Name
	}

	msg := fmt.Sprintf("[%s] %s on %s", tr.Trigger.Severity, tr.Trigger.Name, deviceName)
	if tr.Comparison != "" {
		msg += fmt.Sprintf(": %s = %.2f (%s)", tr.ItemName, tr.Value, tr.Comparison)
	}
	return msg
}

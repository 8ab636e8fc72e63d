// Package poller runs the per-item collection pipeline: SNMP get, counter
// delta and rate derivation, sample persistence, and hand-off to the trigger
// evaluator.
package poller

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wirepoll/wirepoll/internal/inventory"
	"github.com/wirepoll/wirepoll/internal/metrics"
	"github.com/wirepoll/wirepoll/internal/snmp"
)

// Evaluator receives every persisted rate for trigger evaluation.
type Evaluator interface {
	Evaluate(ctx context.Context, deviceID, itemName string, rate float64)
}

// Engine executes one poll fire end to end. It is stateless between fires;
// all state lives in the stores.
type Engine struct {
	collector *snmp.Collector
	inventory *inventory.Store
	samples   *SampleStore
	evaluator Evaluator
	prober    *Prober
	logger    *zap.Logger
}

// NewEngine wires the collection pipeline.
func NewEngine(
	collector *snmp.Collector,
	inv *inventory.Store,
	samples *SampleStore,
	evaluator Evaluator,
	prober *Prober,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		collector: collector,
		inventory: inv,
		samples:   samples,
		evaluator: evaluator,
		prober:    prober,
		logger:    logger,
	}
}

// PollItem is the ItemRunner executed on each timer fire. All failures are
// contained here: they mark health and log, never propagate.
func (e *Engine) PollItem(ctx context.Context, item inventory.Item) {
	timer := prometheus.NewTimer(metrics.PollDuration)
	defer timer.ObserveDuration()

	device, err := e.inventory.GetDevice(ctx, item.DeviceID)
	if err != nil {
		e.logger.Warn("device lookup failed",
			zap.String("item_id", item.ID),
			zap.String("device_id", item.DeviceID),
			zap.Error(err),
		)
		return
	}
	if device == nil {
		// Device removed between scheduling and fire.
		e.logger.Debug("device gone, skipping poll", zap.String("item_id", item.ID))
		return
	}

	value, err := e.collector.Get(ctx, device.Target(), &device.Credential, item.OID)
	if err != nil {
		e.handleCollectError(ctx, device, &item, err)
		return
	}
	metrics.PollsTotal.WithLabelValues("ok").Inc()

	e.markHealthy(ctx, device, &item)

	now := time.Now().UTC()
	prev, err := e.samples.Latest(ctx, item.ID)
	if err != nil {
		e.logger.Warn("previous sample lookup failed",
			zap.String("item_id", item.ID),
			zap.Error(err),
		)
		return
	}

	res := ComputeRate(prev, value, now)

	sample := &Sample{
		ItemID:    item.ID,
		DeviceID:  item.DeviceID,
		Value:     value,
		Rate:      res.Rate,
		SampledAt: now,
	}
	if err := e.samples.Insert(ctx, sample); err != nil {
		e.logger.Warn("sample write failed",
			zap.String("item_id", item.ID),
			zap.Error(err),
		)
		return
	}

	// Octet-counter deltas additionally feed the derived bandwidth item.
	if !res.First && snmp.IsOctetCounter(item.OID) {
		e.deriveUtilization(ctx, &item, res, now)
	}

	if e.evaluator != nil && !res.First {
		e.evaluator.Evaluate(ctx, item.DeviceID, item.Name, res.Rate)
	}
}

// handleCollectError applies the error taxonomy: transport errors mark the
// device unhealthy, value errors only the item. Scheduling continues either way.
func (e *Engine) handleCollectError(ctx context.Context, device *inventory.Device, item *inventory.Item, err error) {
	switch {
	case snmp.IsTransport(err):
		metrics.PollsTotal.WithLabelValues("transport_error").Inc()

		reachable := false
		if e.prober != nil {
			reachable = e.prober.Reachable(ctx, device.Target())
		}
		e.logger.Warn("device unreachable over SNMP",
			zap.String("item_id", item.ID),
			zap.String("device_id", device.ID),
			zap.Bool("icmp_reachable", reachable),
			zap.Error(err),
		)

		if setErr := e.inventory.UpdateDeviceHealth(ctx, device.ID, inventory.HealthFailing); setErr != nil {
			e.logger.Warn("failed to mark device failing", zap.String("device_id", device.ID), zap.Error(setErr))
		}
		if setErr := e.inventory.UpdateItemHealth(ctx, item.ID, inventory.HealthFailing); setErr != nil {
			e.logger.Warn("failed to mark item failing", zap.String("item_id", item.ID), zap.Error(setErr))
		}

	case snmp.IsValue(err):
		metrics.PollsTotal.WithLabelValues("value_error").Inc()
		e.logger.Warn("device returned error varbind",
			zap.String("item_id", item.ID),
			zap.String("oid", item.OID),
			zap.Error(err),
		)
		if setErr := e.inventory.UpdateItemHealth(ctx, item.ID, inventory.HealthFailing); setErr != nil {
			e.logger.Warn("failed to mark item failing", zap.String("item_id", item.ID), zap.Error(setErr))
		}

	default:
		metrics.PollsTotal.WithLabelValues("value_error").Inc()
		e.logger.Warn("poll failed",
			zap.String("item_id", item.ID),
			zap.Error(err),
		)
	}
}

// markHealthy clears failing flags after a successful poll. Writes only on
// transition.
func (e *Engine) markHealthy(ctx context.Context, device *inventory.Device, item *inventory.Item) {
	if device.Health != inventory.HealthOK {
		if err := e.inventory.UpdateDeviceHealth(ctx, device.ID, inventory.HealthOK); err != nil {
			e.logger.Warn("failed to mark device healthy", zap.String("device_id", device.ID), zap.Error(err))
		}
	}
	if item.Health != inventory.HealthOK {
		if err := e.inventory.UpdateItemHealth(ctx, item.ID, inventory.HealthOK); err != nil {
			e.logger.Warn("failed to mark item healthy", zap.String("item_id", item.ID), zap.Error(err))
		}
	}
}

// deriveUtilization writes the bandwidth-utilization sample for the derived
// item fed by this octet counter. Missing configuration (no derived item, no
// interface row, zero nominal speed) skips the write but never fails the
// raw-counter sample already persisted.
func (e *Engine) deriveUtilization(ctx context.Context, item *inventory.Item, res RateResult, now time.Time) {
	derived, err := e.inventory.GetDerivedItem(ctx, item.ID)
	if err != nil {
		e.logger.Warn("derived item lookup failed", zap.String("item_id", item.ID), zap.Error(err))
		return
	}
	if derived == nil {
		return
	}

	ifIndex := interfaceIndexFromOID(item.OID)
	if ifIndex < 0 {
		e.logger.Warn("cannot determine interface index from OID",
			zap.String("item_id", item.ID),
			zap.String("oid", item.OID),
		)
		return
	}

	iface, err := e.inventory.GetInterface(ctx, item.DeviceID, ifIndex)
	if err != nil {
		e.logger.Warn("interface lookup failed", zap.String("item_id", item.ID), zap.Error(err))
		return
	}
	if iface == nil || iface.SpeedBps == 0 {
		e.logger.Warn("interface speed unknown, skipping utilization",
			zap.String("item_id", item.ID),
			zap.Int("if_index", ifIndex),
		)
		return
	}

	util, ok := Utilization(res.Delta, res.Elapsed, iface.SpeedBps)
	if !ok {
		return
	}

	sample := &Sample{
		ItemID:    derived.ID,
		DeviceID:  derived.DeviceID,
		Value:     util,
		Rate:      util,
		SampledAt: now,
	}
	if err := e.samples.Insert(ctx, sample); err != nil {
		e.logger.Warn("utilization sample write failed",
			zap.String("item_id", derived.ID),
			zap.Error(err),
		)
		return
	}

	if e.evaluator != nil {
		e.evaluator.Evaluate(ctx, derived.DeviceID, derived.Name, util)
	}
}

// interfaceIndexFromOID extracts the ifIndex suffix of an interface-column
// OID, e.g. "1.3.6.1.2.1.2.2.1.10.3" yields 3.
func interfaceIndexFromOID(oid string) int {
	lastDot := strings.LastIndex(oid, ".")
	if lastDot < 0 || lastDot == len(oid)-1 {
		return -1
	}
	idx, err := strconv.Atoi(oid[lastDot+1:])
	if err != nil {
		return -1
	}
	return idx
}

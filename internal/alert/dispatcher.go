package alert

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wirepoll/wirepoll/internal/metrics"
)

// Dispatcher fans a notification out to every enabled channel. A failing
// or rate-limited channel never blocks delivery to the others.
type Dispatcher struct {
	store  *Store
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDispatcher creates a Dispatcher reading channels from the given store.
func NewDispatcher(store *Store, cfg Config, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Dispatch sends the message for ev to all enabled channels.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event, message string) {
	channels, err := d.store.ListEnabledChannels(ctx)
	if err != nil {
		d.logger.Error("list notification channels", zap.Error(err))
		return
	}
	if len(channels) == 0 {
		d.logger.Debug("no notification channels configured",
			zap.String("event_id", ev.ID))
		return
	}

	for i := range channels {
		ch := &channels[i]
		d.send(ctx, ch, ev, message)
	}
}

func (d *Dispatcher) send(ctx context.Context, ch *Channel, ev *Event, message string) {
	if !d.limiterFor(ch.ID).Allow() {
		metrics.NotificationsTotal.WithLabelValues(ch.Type, "limited").Inc()
		d.logger.Warn("notification rate limited",
			zap.String("channel", ch.Name),
			zap.String("event_id", ev.ID))
		return
	}

	notifier, err := BuildNotifier(ch)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues(ch.Type, "failed").Inc()
		d.logger.Error("build notifier",
			zap.String("channel", ch.Name),
			zap.Error(err))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	if err := notifier.Notify(sendCtx, ev, message); err != nil {
		metrics.NotificationsTotal.WithLabelValues(ch.Type, "failed").Inc()
		d.logger.Error("send notification",
			zap.String("channel", ch.Name),
			zap.String("event_id", ev.ID),
			zap.Error(err))
		return
	}

	metrics.NotificationsTotal.WithLabelValues(ch.Type, "sent").Inc()
	d.logger.Info("notification sent",
		zap.String("channel", ch.Name),
		zap.String("type", ch.Type),
		zap.String("event_id", ev.ID))
}

// limiterFor returns the rate limiter for a channel, creating it on
// first use.
func (d *Dispatcher) limiterFor(channelID string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[channelID]
	if !ok {
		l = rate.NewLimiter(rate.Every(d.cfg.ChannelRateLimit), d.cfg.ChannelBurst)
		d.limiters[channelID] = l
	}
	return l
}

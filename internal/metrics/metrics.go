// Package metrics exposes engine counters on the diagnostics listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollsTotal counts item poll fires by outcome: ok, transport_error,
	// value_error.
	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wirepoll",
		Subsystem: "poller",
		Name:      "polls_total",
		Help:      "Item polls by outcome.",
	}, []string{"outcome"})

	// PollDuration observes the wall time of one poll fire.
	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wirepoll",
		Subsystem: "poller",
		Name:      "poll_duration_seconds",
		Help:      "Duration of a single item poll.",
		Buckets:   prometheus.DefBuckets,
	})

	// ActiveTimers tracks the number of scheduled item timers.
	ActiveTimers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wirepoll",
		Subsystem: "poller",
		Name:      "active_timers",
		Help:      "Currently scheduled item timers.",
	})

	// EvaluationsTotal counts trigger evaluations by outcome: satisfied,
	// unsatisfied, parse_error.
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wirepoll",
		Subsystem: "trigger",
		Name:      "evaluations_total",
		Help:      "Trigger evaluations by outcome.",
	}, []string{"outcome"})

	// NotificationsTotal counts channel sends by channel type and outcome:
	// sent, failed, limited.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wirepoll",
		Subsystem: "alert",
		Name:      "notifications_total",
		Help:      "Notification sends by channel type and outcome.",
	}, []string{"channel_type", "outcome"})
)

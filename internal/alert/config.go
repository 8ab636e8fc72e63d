package alert

import "time"

// Config holds alert module settings.
type Config struct {
	// EventRetention is how long resolved events are kept before purge.
	EventRetention time.Duration
	// MaintenanceInterval is how often the retention purge runs.
	MaintenanceInterval time.Duration
	// ChannelRateLimit is the minimum spacing between notifications on
	// a single channel once its burst is spent.
	ChannelRateLimit time.Duration
	// ChannelBurst is how many notifications a channel may send back to
	// back before the rate limit applies.
	ChannelBurst int
	// SendTimeout bounds a single delivery attempt.
	SendTimeout time.Duration
}

// DefaultConfig returns alert defaults.
func DefaultConfig() Config {
	return Config{
		EventRetention:      30 * 24 * time.Hour,
		MaintenanceInterval: time.Hour,
		ChannelRateLimit:    10 * time.Second,
		ChannelBurst:        5,
		SendTimeout:         15 * time.Second,
	}
}

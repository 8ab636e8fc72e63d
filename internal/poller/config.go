package poller

import "time"

// Config holds the poller module settings.
type Config struct {
	SampleRetention     time.Duration `mapstructure:"sample_retention"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`
	PingTimeout         time.Duration `mapstructure:"ping_timeout"`
	PingCount           int           `mapstructure:"ping_count"`
}

// DefaultConfig returns the poller defaults. Raw samples are kept for a
// rolling 24 hours.
func DefaultConfig() Config {
	return Config{
		SampleRetention:     24 * time.Hour,
		MaintenanceInterval: 1 * time.Hour,
		PingTimeout:         2 * time.Second,
		PingCount:           3,
	}
}

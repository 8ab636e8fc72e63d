package poller

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Maintenance periodically purges samples past the retention horizon.
type Maintenance struct {
	samples *SampleStore
	cfg     Config
	logger  *zap.Logger
}

// NewMaintenance creates the retention loop.
func NewMaintenance(samples *SampleStore, cfg Config, logger *zap.Logger) *Maintenance {
	return &Maintenance{samples: samples, cfg: cfg, logger: logger}
}

// Run blocks until the context is cancelled, purging on each interval.
// The caller should run this in a goroutine.
func (m *Maintenance) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.purge(ctx)
		}
	}
}

func (m *Maintenance) purge(ctx context.Context) {
	purgeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-m.cfg.SampleRetention)
	deleted, err := m.samples.DeleteOld(purgeCtx, cutoff)
	if err != nil {
		m.logger.Warn("failed to delete old samples", zap.Error(err))
		return
	}
	if deleted > 0 {
		m.logger.Info("purged old samples", zap.Int64("count", deleted))
	}
}

package alert

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Maintenance periodically purges resolved events past retention.
type Maintenance struct {
	store  *Store
	cfg    Config
	logger *zap.Logger
}

// NewMaintenance creates the alert maintenance loop.
func NewMaintenance(store *Store, cfg Config, logger *zap.Logger) *Maintenance {
	return &Maintenance{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Run blocks until ctx is cancelled, purging on each tick.
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

	cutoff := time.Now().UTC().Add(-m.cfg.EventRetention)
	deleted, err := m.store.DeleteOldResolved(purgeCtx, cutoff)
	if err != nil {
		m.logger.Error("purge resolved events", zap.Error(err))
		return
	}
	if deleted > 0 {
		m.logger.Info("purged resolved events",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
}

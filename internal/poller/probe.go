package poller

import (
	"context"
	"net"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

// Prober distinguishes "SNMP agent down" from "host down" by pinging a
// device after a transport error.
type Prober struct {
	timeout time.Duration
	count   int
	logger  *zap.Logger
}

// NewProber creates an ICMP prober.
func NewProber(cfg Config, logger *zap.Logger) *Prober {
	return &Prober{
		timeout: cfg.PingTimeout,
		count:   cfg.PingCount,
		logger:  logger,
	}
}

// Reachable pings the host (port stripped if present) and reports whether
// any reply arrived.
func (p *Prober) Reachable(ctx context.Context, target string) bool {
	host := target
	if h, _, err := net.SplitHostPort(target); err == nil {
		host = h
	}

	pinger, err := probing.NewPinger(host)
	if err != nil {
		p.logger.Debug("failed to create pinger", zap.String("host", host), zap.Error(err))
		return false
	}

	pinger.Count = p.count
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := pinger.Run(); runErr != nil {
			p.logger.Debug("ping failed", zap.String("host", host), zap.Error(runErr))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pinger.Stop()
		return false
	}

	return pinger.Statistics().PacketsRecv > 0
}

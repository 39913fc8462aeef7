package analysis

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultHealthInterval is how often Monitor probes the backend.
const DefaultHealthInterval = 30 * time.Second

// HealthChecker reports whether the backend is reachable.
type HealthChecker interface {
	CheckHealth(ctx context.Context) bool
}

// Monitor polls the backend health endpoint on a fixed interval. Its state
// is informational only; uploads are never gated on it.
type Monitor struct {
	checker  HealthChecker
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	healthy bool
	checked time.Time
}

// NewMonitor creates a Monitor. If interval is <= 0, it defaults to
// DefaultHealthInterval.
func NewMonitor(checker HealthChecker, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	return &Monitor{
		checker:  checker,
		interval: interval,
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// Run probes immediately and then once per interval until ctx is cancelled.
// It always returns nil so it can run inside an errgroup.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		m.CheckOnce(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// CheckOnce runs a single probe and records the result.
func (m *Monitor) CheckOnce(ctx context.Context) bool {
	ok := m.checker.CheckHealth(ctx)

	m.mu.Lock()
	changed := ok != m.healthy || m.checked.IsZero()
	m.healthy = ok
	m.checked = m.now()
	m.mu.Unlock()

	if changed {
		if ok {
			m.logger.Info("analysis backend reachable")
		} else {
			m.logger.Warn("analysis backend unreachable")
		}
	}
	return ok
}

// Healthy reports the result of the latest probe. It is false before the
// first probe.
func (m *Monitor) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

// LastChecked returns when the latest probe finished, or the zero time.
func (m *Monitor) LastChecked() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checked
}

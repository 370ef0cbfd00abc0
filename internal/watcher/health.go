// Package watcher polls the assistant backend for health and reports transitions.
package watcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"beacon-chat/internal/assistant"
	"beacon-chat/internal/metrics"
)

const (
	defaultInterval = 30 * time.Second
	checkTimeout    = 10 * time.Second
)

// Backend health states
const (
	StatusUnknown   = "unknown"
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker is the single backend call the watcher needs
type HealthChecker interface {
	Health(ctx context.Context) (*assistant.HealthStatus, error)
}

// Status is the outcome of the latest health check
type Status struct {
	Status    string                  `json:"status"`
	CheckedAt time.Time               `json:"checked_at"`
	Error     string                  `json:"error,omitempty"`
	Detail    *assistant.HealthStatus `json:"detail,omitempty"`
}

// Healthy reports whether the backend answered healthy
func (s Status) Healthy() bool {
	return s.Status == StatusHealthy
}

// Observer receives every check result
type Observer func(Status)

// HealthWatcher polls a HealthChecker on a fixed interval
type HealthWatcher struct {
	checker  HealthChecker
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	last      Status
	observers []Observer
	started   bool
}

// Option configures a HealthWatcher
type Option func(*HealthWatcher)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(w *HealthWatcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMetrics exports the backend_up gauge
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *HealthWatcher) {
		w.metrics = m
	}
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(w *HealthWatcher) {
		w.now = now
	}
}

// New creates a watcher. A non-positive interval uses the 30s default.
func New(checker HealthChecker, interval time.Duration, opts ...Option) *HealthWatcher {
	if interval <= 0 {
		interval = defaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &HealthWatcher{
		checker:  checker,
		interval: interval,
		logger:   zap.NewNop(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		last:     Status{Status: StatusUnknown},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("watcher")
	return w
}

// Subscribe registers an observer for subsequent checks
func (w *HealthWatcher) Subscribe(o Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, o)
}

// Status returns the latest result without contacting the backend
func (w *HealthWatcher) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

// Start checks once immediately and then every interval until Shutdown.
// Calling Start twice is a no-op.
func (w *HealthWatcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run()
}

func (w *HealthWatcher) run() {
	defer w.wg.Done()

	w.logger.Info("Health watcher started", zap.Duration("interval", w.interval))

	w.Check(w.ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("Health watcher stopped")
			return
		case <-ticker.C:
			w.Check(w.ctx)
		}
	}
}

// Check contacts the backend once, records the result and notifies observers
func (w *HealthWatcher) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	st := Status{CheckedAt: w.now()}
	health, err := w.checker.Health(ctx)
	switch {
	case err != nil:
		st.Status = StatusUnhealthy
		st.Error = err.Error()
	case !health.Healthy():
		st.Status = StatusUnhealthy
		st.Detail = health
	default:
		st.Status = StatusHealthy
		st.Detail = health
	}

	w.mu.Lock()
	prev := w.last.Status
	w.last = st
	observers := append([]Observer(nil), w.observers...)
	w.mu.Unlock()

	if prev != st.Status {
		if st.Healthy() {
			w.logger.Info("Backend is healthy")
		} else {
			w.logger.Warn("Backend is unhealthy", zap.String("error", st.Error))
		}
	}

	w.metrics.SetBackendUp(st.Healthy())
	for _, o := range observers {
		o(st)
	}
	return st
}

// Shutdown stops polling and waits for an in-flight check, bounded by ctx
func (w *HealthWatcher) Shutdown(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

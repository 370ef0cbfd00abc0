package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"beacon-chat/internal/assistant"
	"beacon-chat/internal/metrics"
)

type stubChecker struct {
	mu     sync.Mutex
	calls  int
	status *assistant.HealthStatus
	err    error
}

func (s *stubChecker) Health(ctx context.Context) (*assistant.HealthStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.status, s.err
}

func (s *stubChecker) set(status *assistant.HealthStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.err = status, err
}

func (s *stubChecker) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestNew_DefaultsToUnknown(t *testing.T) {
	w := New(&stubChecker{}, 0)

	if w.interval != defaultInterval {
		t.Errorf("expected interval %v, got %v", defaultInterval, w.interval)
	}
	if got := w.Status().Status; got != StatusUnknown {
		t.Errorf("expected status %q, got %q", StatusUnknown, got)
	}
}

func TestCheck_Healthy(t *testing.T) {
	checker := &stubChecker{status: &assistant.HealthStatus{Status: "healthy", LLM: "gpt"}}
	m := metrics.New()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	w := New(checker, time.Minute, WithMetrics(m), WithClock(func() time.Time { return fixed }))

	st := w.Check(context.Background())

	if !st.Healthy() {
		t.Fatalf("expected healthy, got %+v", st)
	}
	if !st.CheckedAt.Equal(fixed) {
		t.Errorf("expected checked_at %v, got %v", fixed, st.CheckedAt)
	}
	if st.Detail == nil || st.Detail.LLM != "gpt" {
		t.Errorf("expected detail to be kept, got %+v", st.Detail)
	}
	if got := testutil.ToFloat64(m.BackendUp); got != 1 {
		t.Errorf("expected backend_up 1, got %v", got)
	}
}

func TestCheck_ErrorAndDegraded(t *testing.T) {
	checker := &stubChecker{err: errors.New("connection refused")}
	m := metrics.New()
	w := New(checker, time.Minute, WithMetrics(m))

	st := w.Check(context.Background())
	if st.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %q", st.Status)
	}
	if st.Error != "connection refused" {
		t.Errorf("expected error to be reported, got %q", st.Error)
	}
	if got := testutil.ToFloat64(m.BackendUp); got != 0 {
		t.Errorf("expected backend_up 0, got %v", got)
	}

	checker.set(&assistant.HealthStatus{Status: "degraded"}, nil)
	st = w.Check(context.Background())
	if st.Status != StatusUnhealthy {
		t.Errorf("expected degraded backend to be unhealthy, got %q", st.Status)
	}
	if w.Status().Status != StatusUnhealthy {
		t.Errorf("expected Status() to return the last check")
	}
}

func TestCheck_NotifiesObservers(t *testing.T) {
	checker := &stubChecker{status: &assistant.HealthStatus{Status: "healthy"}}
	w := New(checker, time.Minute)

	var got []Status
	w.Subscribe(func(st Status) { got = append(got, st) })

	w.Check(context.Background())
	checker.set(nil, errors.New("down"))
	w.Check(context.Background())

	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	if !got[0].Healthy() || got[1].Healthy() {
		t.Errorf("unexpected sequence: %+v", got)
	}
}

func TestStart_PollsUntilShutdown(t *testing.T) {
	checker := &stubChecker{status: &assistant.HealthStatus{Status: "healthy"}}
	w := New(checker, 10*time.Millisecond)

	w.Start()
	w.Start()

	deadline := time.Now().Add(2 * time.Second)
	for checker.callCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if checker.callCount() < 3 {
		t.Fatalf("expected at least 3 checks, got %d", checker.callCount())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	calls := checker.callCount()
	time.Sleep(40 * time.Millisecond)
	if checker.callCount() != calls {
		t.Errorf("expected no checks after shutdown, got %d more", checker.callCount()-calls)
	}
}

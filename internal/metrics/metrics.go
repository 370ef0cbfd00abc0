// Package metrics provides Prometheus metrics for the chat server
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OutcomeComplete = "complete"
	OutcomeError    = "error"
	OutcomeStale    = "stale"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ExchangesTotal   *prometheus.CounterVec
	ExchangeDuration *prometheus.HistogramVec
	StreamChunks     prometheus.Counter
	EditsTotal       *prometheus.CounterVec
	UploadsTotal     *prometheus.CounterVec
	FeedbackTotal    *prometheus.CounterVec
	Conversations    prometheus.Gauge
	BackendUp        prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ExchangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_exchanges_total",
			Help: "Answer producer runs by operation and outcome",
		}, []string{"op", "outcome"}),
		ExchangeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "beacon_exchange_duration_seconds",
			Help:    "Time from producer start to completion",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"op"}),
		StreamChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_stream_chunks_total",
			Help: "Cumulative content chunks applied to assistant messages",
		}),
		EditsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_edits_total",
			Help: "Message edits by outcome",
		}, []string{"outcome"}),
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_uploads_total",
			Help: "File uploads by outcome",
		}, []string{"outcome"}),
		FeedbackTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_feedback_total",
			Help: "Feedback submissions by type and outcome",
		}, []string{"type", "outcome"}),
		Conversations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "beacon_conversations",
			Help: "Conversations currently held in the store",
		}),
		BackendUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "beacon_backend_up",
			Help: "1 when the last backend health check reported healthy",
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_http_requests_total",
			Help: "HTTP API requests by method and status",
		}, []string{"method", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "beacon_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveExchange records a finished send or regenerate
func (m *Metrics) ObserveExchange(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExchangesTotal.WithLabelValues(op, outcome).Inc()
	m.ExchangeDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ChunkApplied counts one streamed chunk
func (m *Metrics) ChunkApplied() {
	if m == nil {
		return
	}
	m.StreamChunks.Inc()
}

// EditFinished records an edit outcome
func (m *Metrics) EditFinished(outcome string) {
	if m == nil {
		return
	}
	m.EditsTotal.WithLabelValues(outcome).Inc()
}

// UploadFinished records an upload outcome
func (m *Metrics) UploadFinished(outcome string) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(outcome).Inc()
}

// FeedbackSubmitted records a feedback submission
func (m *Metrics) FeedbackSubmitted(feedbackType, outcome string) {
	if m == nil {
		return
	}
	m.FeedbackTotal.WithLabelValues(feedbackType, outcome).Inc()
}

// SetConversations sets the conversation count gauge
func (m *Metrics) SetConversations(n int) {
	if m == nil {
		return
	}
	m.Conversations.Set(float64(n))
}

// AddConversations moves the conversation count gauge by delta
func (m *Metrics) AddConversations(delta int) {
	if m == nil {
		return
	}
	m.Conversations.Add(float64(delta))
}

// SetBackendUp sets the backend health gauge
func (m *Metrics) SetBackendUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.BackendUp.Set(1)
	} else {
		m.BackendUp.Set(0)
	}
}

// ObserveHTTP records one HTTP API request
func (m *Metrics) ObserveHTTP(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

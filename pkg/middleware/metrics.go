package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "querysync").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for event duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
// Tests pass prometheus.NewRegistry() to avoid cross-test registration
// conflicts.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "querysync",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus instruments for a querysync server.
// The server records session lifecycle directly; event counters are driven
// by the Middleware method.
type Metrics struct {
	eventsTotal      *prometheus.CounterVec
	eventDuration    *prometheus.HistogramVec
	eventErrors      *prometheus.CounterVec
	patchesSent      prometheus.Counter
	activeSessions   prometheus.Gauge
	detachedSessions prometheus.Gauge
	reconnectsTotal  prometheus.Counter
}

// NewMetrics registers the querysync instruments with the configured
// registry and returns the handle.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_total",
			Help:        "Total state-change events processed",
			ConstLabels: config.ConstLabels,
		}, []string{"handler", "status"}),

		eventDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "event_duration_seconds",
			Help:        "Event processing duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"handler"}),

		eventErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "event_errors_total",
			Help:        "Total event processing errors",
			ConstLabels: config.ConstLabels,
		}, []string{"handler", "error_type"}),

		patchesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "patches_sent_total",
			Help:        "Total URL patches sent to clients",
			ConstLabels: config.ConstLabels,
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of connected sessions",
			ConstLabels: config.ConstLabels,
		}),

		detachedSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "detached_sessions",
			Help:        "Number of detached (disconnected but resumable) sessions",
			ConstLabels: config.ConstLabels,
		}),

		reconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconnects_total",
			Help:        "Total session resumptions",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Middleware returns event middleware recording count, duration, errors,
// and queued patches per event.
func (m *Metrics) Middleware() Middleware {
	return func(ctx context.Context, ev *Event, next func(context.Context) error) error {
		handler := ev.Handler
		if handler == "" {
			handler = "unknown"
		}

		start := time.Now()
		err := next(ctx)
		m.eventDuration.WithLabelValues(handler).Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
			m.eventErrors.WithLabelValues(handler, categorizeError(err)).Inc()
		}
		m.eventsTotal.WithLabelValues(handler, status).Inc()
		m.patchesSent.Add(float64(ev.PatchCount))

		return err
	}
}

// SessionStarted records a new connected session.
func (m *Metrics) SessionStarted() {
	m.activeSessions.Inc()
}

// SessionExpired records a detached session whose snapshot lapsed before
// the client resumed. Driven by stores that report eviction; without one
// the detached gauge only falls on resume.
func (m *Metrics) SessionExpired() {
	m.detachedSessions.Dec()
}

// SessionDetached records a session going resumable.
func (m *Metrics) SessionDetached() {
	m.activeSessions.Dec()
	m.detachedSessions.Inc()
}

// SessionResumed records a detached session reattaching.
func (m *Metrics) SessionResumed() {
	m.activeSessions.Inc()
	m.detachedSessions.Dec()
	m.reconnectsTotal.Inc()
}

// RecordPatches records patches sent outside the event pipeline
// (URL restores on resume, server-initiated navigations).
func (m *Metrics) RecordPatches(count int) {
	m.patchesSent.Add(float64(count))
}

// categorizeError buckets errors into coarse types so label cardinality
// stays bounded.
func categorizeError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "not found"):
		return "not_found"
	case strings.Contains(msg, "unknown handler"):
		return "unknown_handler"
	case strings.Contains(msg, "websocket"):
		return "websocket"
	case strings.Contains(msg, "decode"), strings.Contains(msg, "unmarshal"):
		return "decode"
	default:
		return "internal"
	}
}

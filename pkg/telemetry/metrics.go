// Package telemetry collects Prometheus metrics and OpenTelemetry spans for
// the state bus and the navigation router.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally:
//
//	m := telemetry.NewMetrics(telemetry.WithRegistry(reg))
//	bus := appstate.NewBus("main", appstate.WithMetrics(m))
//	r, _ := router.New(root, hist, router.WithMetrics(m))
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "minutespa").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collectors.
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
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "minutespa",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the collectors shared by the state bus and router.
type Metrics struct {
	stateWrites      *prometheus.CounterVec
	stateDeletes     *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	subscribers      *prometheus.GaugeVec
	persistFailures  *prometheus.CounterVec
	navigations      *prometheus.CounterVec
	navigationErrors *prometheus.CounterVec
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	feeds            prometheus.Gauge
}

// NewMetrics creates and registers the collectors.
// Registering twice on the same registry panics, as with promauto.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		stateWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "state_writes_total",
			Help:        "Total number of state values set, by store and persistence",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "persisted"}),

		stateDeletes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "state_deletes_total",
			Help:        "Total number of state keys deleted",
			ConstLabels: config.ConstLabels,
		}, []string{"store"}),

		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "state_notifications_total",
			Help:        "Total number of subscriber callbacks invoked",
			ConstLabels: config.ConstLabels,
		}, []string{"store"}),

		subscribers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "state_subscribers",
			Help:        "Number of live state subscribers",
			ConstLabels: config.ConstLabels,
		}, []string{"store"}),

		persistFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "persist_failures_total",
			Help:        "Total number of persistent medium failures, by operation",
			ConstLabels: config.ConstLabels,
		}, []string{"store", "op"}),

		navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "Total number of navigation passes, by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		navigationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigation_errors_total",
			Help:        "Total number of failed navigation passes, by error code",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),

		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of key/value server requests, by route and status",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "method", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "Key/value server request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route", "method"}),

		feeds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_feeds",
			Help:        "Number of open websocket state feeds",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// StateWrite records a Set on store.
func (m *Metrics) StateWrite(store string, persisted bool) {
	if m == nil {
		return
	}
	label := "false"
	if persisted {
		label = "true"
	}
	m.stateWrites.WithLabelValues(store, label).Inc()
}

// StateDelete records a Delete on store.
func (m *Metrics) StateDelete(store string) {
	if m == nil {
		return
	}
	m.stateDeletes.WithLabelValues(store).Inc()
}

// Notified records n subscriber invocations on store.
func (m *Metrics) Notified(store string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.notifications.WithLabelValues(store).Add(float64(n))
}

// SubscribersChanged adjusts the live subscriber gauge for store by delta.
func (m *Metrics) SubscribersChanged(store string, delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.subscribers.WithLabelValues(store).Add(float64(delta))
}

// PersistFailure records a medium failure for op ("get", "set", "remove").
func (m *Metrics) PersistFailure(store, op string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(store, op).Inc()
}

// Navigation records a completed navigation pass. Outcome is one of
// "mounted", "redirected", "rendered", "denied", "ignored".
func (m *Metrics) Navigation(outcome string) {
	if m == nil {
		return
	}
	m.navigations.WithLabelValues(outcome).Inc()
}

// NavigationError records a failed navigation pass.
func (m *Metrics) NavigationError(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.navigationErrors.WithLabelValues(code).Inc()
}

// Request records a served HTTP request. Route is the matched pattern, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) Request(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// FeedsChanged adjusts the open websocket feed gauge by delta.
func (m *Metrics) FeedsChanged(delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.feeds.Add(float64(delta))
}

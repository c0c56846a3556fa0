package router

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/minutespa/minutespa/pkg/telemetry"
)

// Option configures a Router.
type Option func(*Router)

// WithPages registers an initial route table, in order.
func WithPages(routes ...PageRoute) Option {
	return func(r *Router) {
		r.initial = append(r.initial, routes...)
	}
}

// WithLogger sets the logger.
// Default: slog.Default() tagged with component=router.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithMetrics sets the Prometheus collectors to record into.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

// WithTracer sets the tracer used for navigation spans.
// Default: the global "minutespa" tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Router) {
		r.tracer = t
	}
}

package appstate

import (
	"log/slog"
	"time"

	"github.com/minutespa/minutespa/pkg/medium"
	"github.com/minutespa/minutespa/pkg/telemetry"
)

// DefaultTimeout bounds every call into the persistent medium.
const DefaultTimeout = 5 * time.Second

type options struct {
	medium  medium.Medium
	logger  *slog.Logger
	metrics *telemetry.Metrics
	timeout time.Duration
}

// Option configures a Store, Bus or Registry.
type Option func(*options)

// WithMedium sets the persistent medium. A nil medium disables persistence.
func WithMedium(m medium.Medium) Option {
	return func(o *options) {
		o.medium = m
	}
}

// WithLogger sets the logger.
// Default: slog.Default() tagged with component=appstate.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the Prometheus collectors to record into.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTimeout bounds each medium call.
// Default: DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func buildOptions(id string, opts []Option) options {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default().With("component", "appstate")
	}
	o.logger = o.logger.With("store", id)
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	return o
}

type setOptions struct {
	persist bool
}

// SetOption configures a single Set call.
type SetOption func(*setOptions)

// Persist writes the value through to the persistent medium.
// Keys that are already persisted are written through regardless.
func Persist() SetOption {
	return func(o *setOptions) {
		o.persist = true
	}
}

type deleteOptions struct {
	broadcast bool
}

// DeleteOption configures a single Delete call.
type DeleteOption func(*deleteOptions)

// Broadcast notifies the key's subscribers with NoValue before the key is
// removed.
func Broadcast() DeleteOption {
	return func(o *deleteOptions) {
		o.broadcast = true
	}
}

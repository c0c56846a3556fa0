package kvserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/minutespa/minutespa/pkg/appstate"
	"github.com/minutespa/minutespa/pkg/medium"
	"github.com/minutespa/minutespa/pkg/telemetry"
)

// Config configures the server.
type Config struct {
	// Address is the listen address (default ":3100").
	Address string

	// MaxValueBytes caps request bodies for PUT (default 1 MiB).
	MaxValueBytes int64

	// Gatherer is served at /metrics when non-nil.
	Gatherer prometheus.Gatherer

	// Metrics records request and feed metrics. May be nil.
	Metrics *telemetry.Metrics

	// Tracer traces requests. Default: the global "minutespa/kvserver" tracer.
	Tracer trace.Tracer

	// CheckOrigin validates websocket origins. Default: same-origin only.
	CheckOrigin func(r *http.Request) bool

	// ShutdownTimeout bounds graceful shutdown (default 10s).
	ShutdownTimeout time.Duration

	// Logger is the server logger. Default: slog.Default() with component=kvserver.
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = ":3100"
	}
	if c.MaxValueBytes <= 0 {
		c.MaxValueBytes = 1 << 20
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default().With("component", "kvserver")
	}
}

// Server exposes a medium and a registry of state buses over HTTP.
type Server struct {
	config   Config
	medium   medium.Medium
	registry *appstate.Registry
	router   chi.Router
	upgrader websocket.Upgrader
	feeds    *feedSet
	logger   *slog.Logger

	httpServer *http.Server
}

// New creates a server. m may be nil, in which case the /kv endpoints
// answer 404 for every key and reject writes.
func New(config Config, m medium.Medium, registry *appstate.Registry) *Server {
	config.applyDefaults()
	if registry == nil {
		registry = appstate.NewRegistry(appstate.WithMedium(m))
	}

	s := &Server{
		config:   config,
		medium:   m,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
		feeds:  newFeedSet(),
		logger: config.Logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if s.config.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/kv", func(r chi.Router) {
		r.Get("/", s.handleListKeys)
		r.Head("/{key}", s.handleHasKey)
		r.Get("/{key}", s.handleGetKey)
		r.Put("/{key}", s.handlePutKey)
		r.Delete("/{key}", s.handleDeleteKey)
	})

	r.Route("/state/{store}", func(r chi.Router) {
		r.Get("/", s.handleStateKeys)
		r.Get("/{key}", s.handleStateGet)
		r.Put("/{key}", s.handleStateSet)
		r.Delete("/{key}", s.handleStateDelete)
	})

	r.Get("/ws/{store}", s.handleFeed)
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Registry returns the registry whose buses are served.
func (s *Server) Registry() *appstate.Registry {
	return s.registry
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every websocket feed and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.feeds.closeAll()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}
	s.logger.Info("server shutdown complete")
	return nil
}

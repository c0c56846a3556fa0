package kvserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/minutespa/minutespa/pkg/telemetry"
)

// instrument records a span and request metrics for every request. The route
// label is the matched chi pattern, read after the handler has run.
func (s *Server) instrument(next http.Handler) http.Handler {
	tracer := s.config.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer("minutespa/kvserver")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := telemetry.StartRequest(r.Context(), tracer, r.Method, r.URL.Path,
			propagation.HeaderCarrier(r.Header))
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		s.config.Metrics.Request(route, r.Method, status, time.Since(start))
	})
}

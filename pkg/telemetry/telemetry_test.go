package telemetry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/propagation"
)

// value reads the current value of a counter or gauge.
func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		t.Fatalf("Write: %v", err)
	}
	switch {
	case pb.Counter != nil:
		return pb.Counter.GetValue()
	case pb.Gauge != nil:
		return pb.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric %v", &pb)
	return 0
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.StateWrite("main", true)
	m.StateDelete("main")
	m.Notified("main", 3)
	m.SubscribersChanged("main", 1)
	m.PersistFailure("main", "set")
	m.Navigation("mounted")
	m.NavigationError("M103")
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"))

	m.StateWrite("main", true)
	m.StateWrite("main", true)
	m.StateWrite("main", false)
	m.Notified("main", 3)
	m.SubscribersChanged("main", 2)
	m.SubscribersChanged("main", -1)
	m.Navigation("mounted")
	m.NavigationError("")

	if got := value(t, m.stateWrites.WithLabelValues("main", "true")); got != 2 {
		t.Errorf("persisted writes = %v, want 2", got)
	}
	if got := value(t, m.notifications.WithLabelValues("main")); got != 3 {
		t.Errorf("notifications = %v, want 3", got)
	}
	if got := value(t, m.subscribers.WithLabelValues("main")); got != 1 {
		t.Errorf("subscribers = %v, want 1", got)
	}
	if got := value(t, m.navigationErrors.WithLabelValues("unknown")); got != 1 {
		t.Errorf("navigation errors = %v, want 1", got)
	}
}

func TestSpanHelpersWithNoopTracer(t *testing.T) {
	tracer := Tracer("")
	ctx, span := StartNavigation(context.Background(), tracer, "/a", true)
	if ctx == nil || span == nil {
		t.Fatal("expected context and span")
	}
	EndSpan(span, "mounted", nil)

	_, span = StartNavigation(context.Background(), tracer, "/b", false)
	EndSpan(span, "", errors.New("boom"))
}

func TestRequestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg))

	m.Request("/kv/{key}", "GET", 200, 3*time.Millisecond)
	m.Request("/kv/{key}", "GET", 200, time.Millisecond)
	m.Request("", "GET", 404, time.Millisecond)
	m.FeedsChanged(2)
	m.FeedsChanged(-1)

	if got := value(t, m.requests.WithLabelValues("/kv/{key}", "GET", "200")); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
	if got := value(t, m.requests.WithLabelValues("unmatched", "GET", "404")); got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
	if got := value(t, m.feeds); got != 1 {
		t.Errorf("feeds = %v, want 1", got)
	}

	var nilMetrics *Metrics
	nilMetrics.Request("/", "GET", 200, time.Millisecond)
	nilMetrics.FeedsChanged(1)
}

func TestStartRequestContinuesPropagatedTrace(t *testing.T) {
	header := propagation.HeaderCarrier(http.Header{})
	ctx, span := StartRequest(context.Background(), Tracer(""), "GET", "/kv/a", header)
	if ctx == nil || span == nil {
		t.Fatal("expected context and span")
	}
	EndSpan(span, "", nil)
}

package kvserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/minutespa/minutespa/pkg/appstate"
	"github.com/minutespa/minutespa/pkg/medium"
	"github.com/minutespa/minutespa/pkg/telemetry"
)

type fixture struct {
	mem      *medium.Memory
	registry *appstate.Registry
	server   *Server
	http     *httptest.Server
}

func newFixture(t *testing.T, config Config) *fixture {
	t.Helper()
	mem := medium.NewMemory()
	registry := appstate.NewRegistry(appstate.WithMedium(mem))
	srv := New(config, mem, registry)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		ts.Close()
	})
	return &fixture{mem: mem, registry: registry, server: srv, http: ts}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.http.URL+path, r)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := f.http.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestKVEndpoints(t *testing.T) {
	f := newFixture(t, Config{})

	if resp := f.do(t, http.MethodHead, "/kv/main.user", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("HEAD missing = %d, want 404", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPut, "/kv/main.user", `{"name":"ada"}`); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT = %d, want 204", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodHead, "/kv/main.user", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("HEAD stored = %d, want 200", resp.StatusCode)
	}

	resp := f.do(t, http.MethodGet, "/kv/main.user", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET = %d, want 200", resp.StatusCode)
	}
	if got := readBody(t, resp); got != `{"name":"ada"}` {
		t.Errorf("GET body = %q", got)
	}

	resp = f.do(t, http.MethodGet, "/kv?prefix=main.", "")
	var keys []string
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		t.Fatalf("decode keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "main.user" {
		t.Errorf("keys = %v, want [main.user]", keys)
	}

	if resp := f.do(t, http.MethodDelete, "/kv/main.user", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE = %d, want 204", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/kv/main.user", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete = %d, want 404", resp.StatusCode)
	}
}

func TestRemoteMediumAgainstServer(t *testing.T) {
	f := newFixture(t, Config{})
	remote := medium.NewRemote(f.http.URL, medium.WithHTTPClient(f.http.Client()))
	ctx := context.Background()

	key := "prefs.path/with slash"
	if err := remote.Set(ctx, key, `"dark"`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, _ := f.mem.Get(ctx, key); !ok || v != `"dark"` {
		t.Fatalf("server medium = %q, %v", v, ok)
	}

	has, err := remote.Has(ctx, key)
	if err != nil || !has {
		t.Fatalf("Has = %v, %v", has, err)
	}
	v, ok, err := remote.Get(ctx, key)
	if err != nil || !ok || v != `"dark"` {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
	keys, err := remote.Keys(ctx, "prefs.")
	if err != nil || len(keys) != 1 || keys[0] != key {
		t.Fatalf("Keys = %v, %v", keys, err)
	}
	if err := remote.Remove(ctx, key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if has, _ := remote.Has(ctx, key); has {
		t.Error("Has after Remove = true")
	}
}

func TestRemoteBackedBusPersistsThroughServer(t *testing.T) {
	f := newFixture(t, Config{})
	remote := medium.NewRemote(f.http.URL, medium.WithHTTPClient(f.http.Client()))

	writer := appstate.NewBus("main", appstate.WithMedium(remote))
	if _, err := writer.Set("theme", "dark", appstate.Persist()); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reader := appstate.NewBus("main", appstate.WithMedium(remote))
	v, ok := reader.Get("theme")
	if !ok || v != "dark" {
		t.Fatalf("Get = %v, %v; want dark, true", v, ok)
	}
}

func TestStateEndpoints(t *testing.T) {
	f := newFixture(t, Config{})
	bus, _ := f.registry.For("main")

	var (
		mu  sync.Mutex
		got []any
	)
	bus.On("count", func(v any) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})
	received := func() []any {
		mu.Lock()
		defer mu.Unlock()
		return append([]any(nil), got...)
	}

	if resp := f.do(t, http.MethodPut, "/state/main/count?persist=1", `3`); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT = %d, want 204", resp.StatusCode)
	}
	if got := received(); len(got) != 1 || got[0] != float64(3) {
		t.Fatalf("subscriber got %v, want [3]", got)
	}
	if !bus.Store().IsPersisted("count") {
		t.Error("count not persisted")
	}

	resp := f.do(t, http.MethodGet, "/state/main/count", "")
	if body := strings.TrimSpace(readBody(t, resp)); body != "3" {
		t.Errorf("GET body = %q, want 3", body)
	}

	resp = f.do(t, http.MethodGet, "/state/main", "")
	var keys []string
	_ = json.NewDecoder(resp.Body).Decode(&keys)
	if len(keys) != 1 || keys[0] != "count" {
		t.Errorf("keys = %v", keys)
	}

	if resp := f.do(t, http.MethodDelete, "/state/main/count?broadcast=1", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE = %d, want 204", resp.StatusCode)
	}
	if got := received(); len(got) != 2 || !appstate.IsNoValue(got[1]) {
		t.Fatalf("subscriber got %v, want NoValue last", got)
	}
	if resp := f.do(t, http.MethodGet, "/state/main/count", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET after delete = %d, want 404", resp.StatusCode)
	}
	if has, _ := f.mem.Has(context.Background(), "main.count"); has {
		t.Error("persisted copy survived delete")
	}
}

func TestStateSetRejectsInvalidJSON(t *testing.T) {
	f := newFixture(t, Config{})

	resp := f.do(t, http.MethodPut, "/state/main/count", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body errorBody
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Code != "M002" {
		t.Errorf("code = %q, want M002", body.Code)
	}
}

func TestMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(telemetry.WithRegistry(reg))
	metrics.StateWrite("main", true)

	f := newFixture(t, Config{Gatherer: reg, Metrics: metrics})

	if resp := f.do(t, http.MethodGet, "/healthz", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("healthz = %d, want 204", resp.StatusCode)
	}
	resp := f.do(t, http.MethodGet, "/metrics", "")
	body := readBody(t, resp)
	if !strings.Contains(body, "minutespa_state_writes_total") {
		t.Errorf("metrics output missing state writes:\n%s", body)
	}
	if !strings.Contains(body, `minutespa_http_requests_total{method="GET",route="/healthz",status="204"} 1`) {
		t.Errorf("metrics output missing healthz request:\n%s", body)
	}
}

func TestMetricsDisabledWithoutGatherer(t *testing.T) {
	f := newFixture(t, Config{})
	if resp := f.do(t, http.MethodGet, "/metrics", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("metrics = %d, want 404", resp.StatusCode)
	}
}

func dialFeed(t *testing.T, f *fixture, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%q) failed: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFeedReplaysAndStreamsChanges(t *testing.T) {
	f := newFixture(t, Config{})
	bus, _ := f.registry.For("main")
	_, _ = bus.Set("user", map[string]any{"name": "ada"})

	conn := dialFeed(t, f, "/ws/main?key=user")

	hello := readEvent(t, conn)
	if hello.Type != EventHello || hello.ID == "" {
		t.Fatalf("first event = %+v, want hello with id", hello)
	}
	replay := readEvent(t, conn)
	if replay.Type != EventValue || replay.Key != "user" || string(replay.Value) != `{"name":"ada"}` {
		t.Fatalf("replay = %+v", replay)
	}

	_, _ = bus.Set("user", map[string]any{"name": "grace"})
	ev := readEvent(t, conn)
	if string(ev.Value) != `{"name":"grace"}` {
		t.Errorf("update value = %s", ev.Value)
	}

	_ = bus.Delete("user", appstate.Broadcast())
	ev = readEvent(t, conn)
	if ev.Type != EventDeleted || ev.Key != "user" {
		t.Errorf("delete event = %+v", ev)
	}
}

func TestFeedClientOps(t *testing.T) {
	f := newFixture(t, Config{})
	bus, _ := f.registry.For("main")

	conn := dialFeed(t, f, "/ws/main")
	readEvent(t, conn) // hello

	if err := conn.WriteJSON(ClientOp{Op: OpSubscribe, Key: "n"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return bus.SubscriberCount("n") == 1 })

	if err := conn.WriteJSON(ClientOp{Op: OpSet, Key: "n", Value: json.RawMessage(`7`), Persist: true}); err != nil {
		t.Fatal(err)
	}
	ev := readEvent(t, conn)
	if ev.Type != EventValue || string(ev.Value) != "7" {
		t.Fatalf("event = %+v, want value 7", ev)
	}
	if v, ok, _ := f.mem.Get(context.Background(), "main.n"); !ok || v != "7" {
		t.Errorf("persisted = %q, %v", v, ok)
	}

	if err := conn.WriteJSON(ClientOp{Op: OpUnsubscribe, Key: "n"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return bus.SubscriberCount("n") == 0 })

	if err := conn.WriteJSON(ClientOp{Op: "bogus"}); err != nil {
		t.Fatal(err)
	}
	if ev := readEvent(t, conn); ev.Type != EventError {
		t.Errorf("event = %+v, want error", ev)
	}
}

func TestFeedCloseUnsubscribes(t *testing.T) {
	f := newFixture(t, Config{})
	bus, _ := f.registry.For("main")

	conn := dialFeed(t, f, "/ws/main?key=a&key=b")
	readEvent(t, conn)
	waitFor(t, func() bool { return bus.SubscriberCount("a") == 1 && bus.SubscriberCount("b") == 1 })

	_ = conn.Close()
	waitFor(t, func() bool { return f.server.FeedCount() == 0 })
	if n := bus.SubscriberCount("a") + bus.SubscriberCount("b"); n != 0 {
		t.Errorf("subscribers after close = %d, want 0", n)
	}
}

func TestShutdownClosesFeeds(t *testing.T) {
	f := newFixture(t, Config{})
	conn := dialFeed(t, f, "/ws/main?key=a")
	readEvent(t, conn)

	if err := f.server.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if n := f.server.FeedCount(); n != 0 {
		t.Errorf("FeedCount = %d, want 0", n)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to be closed")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	srv := New(Config{Address: "127.0.0.1:0"}, medium.NewMemory(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFeedReplaysManyQueryKeys(t *testing.T) {
	f := newFixture(t, Config{})
	bus, _ := f.registry.For("main")

	query := make([]string, 0, maxFeedKeys)
	for i := 0; i < maxFeedKeys; i++ {
		key := fmt.Sprintf("k%d", i)
		_, _ = bus.Set(key, i)
		query = append(query, "key="+key)
	}

	conn := dialFeed(t, f, "/ws/main?"+strings.Join(query, "&"))
	if ev := readEvent(t, conn); ev.Type != EventHello {
		t.Fatalf("first event = %+v, want hello", ev)
	}
	for i := 0; i < maxFeedKeys; i++ {
		ev := readEvent(t, conn)
		if ev.Type != EventValue || ev.Key != fmt.Sprintf("k%d", i) {
			t.Fatalf("event %d = %+v, want value for k%d", i, ev, i)
		}
	}
	if n := f.server.FeedCount(); n != 1 {
		t.Errorf("FeedCount = %d, want 1", n)
	}
}

func TestFeedRejectsTooManyQueryKeys(t *testing.T) {
	f := newFixture(t, Config{})

	query := make([]string, 0, maxFeedKeys+1)
	for i := 0; i <= maxFeedKeys; i++ {
		query = append(query, fmt.Sprintf("key=k%d", i))
	}
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws/main?" + strings.Join(query, "&")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial succeeded, want a rejected handshake")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("response = %v, want 400", resp)
	}
	defer resp.Body.Close()

	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "M004" {
		t.Errorf("code = %q, want M004", body.Code)
	}
}

func TestFeedKeysDedupes(t *testing.T) {
	got := feedKeys([]string{"a", "", "b", "a"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("feedKeys = %v, want [a b]", got)
	}
}

package kvserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/minutespa/minutespa/internal/errors"
	"github.com/minutespa/minutespa/pkg/appstate"
	"github.com/minutespa/minutespa/pkg/telemetry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// feedBuffer is the number of undelivered events a feed may queue
	// before it is dropped as a slow consumer.
	feedBuffer = 64

	// maxFeedKeys bounds the ?key= subscriptions of a new feed so the hello
	// event and every replayed value fit in the send buffer.
	maxFeedKeys = feedBuffer - 1
)

// Client operations on a feed.
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpSet         = "set"
	OpDelete      = "delete"
)

// Server events on a feed.
const (
	EventHello   = "hello"
	EventValue   = "value"
	EventDeleted = "deleted"
	EventError   = "error"
)

// ClientOp is a message sent by a feed client.
type ClientOp struct {
	Op        string          `json:"op"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value,omitempty"`
	Persist   bool            `json:"persist,omitempty"`
	Broadcast bool            `json:"broadcast,omitempty"`
}

// Event is a message sent to a feed client. A deleted key is reported as
// EventDeleted rather than an EventValue carrying no value.
type Event struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Key     string          `json:"key,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

// feed is one websocket client subscribed to keys of a bus.
type feed struct {
	id     string
	conn   *websocket.Conn
	bus    *appstate.Bus
	logger *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	subs map[string]*appstate.Subscription

	owner   *feedSet
	metrics *telemetry.Metrics
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	b, ok := s.bus(w, r)
	if !ok {
		return
	}
	keys := feedKeys(r.URL.Query()["key"])
	if len(keys) > maxFeedKeys {
		s.writeError(w, http.StatusBadRequest, errors.New("M004").
			WithDetailf("%d keys requested, at most %d", len(keys), maxFeedKeys))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.config.MaxValueBytes)

	f := &feed{
		id:      uuid.NewString(),
		conn:    conn,
		bus:     b,
		send:    make(chan []byte, feedBuffer),
		done:    make(chan struct{}),
		subs:    make(map[string]*appstate.Subscription),
		owner:   s.feeds,
		metrics: s.config.Metrics,
	}
	f.logger = s.logger.With("feed", f.id, "store", b.ID())
	s.feeds.add(f)
	s.config.Metrics.FeedsChanged(1)
	f.logger.Debug("feed opened")

	go f.writeLoop()
	f.enqueue(Event{Type: EventHello, ID: f.id})
	for _, key := range keys {
		f.subscribe(key)
	}
	f.readLoop()
}

// feedKeys returns the distinct non-empty keys in request order.
func feedKeys(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if _, ok := seen[k]; ok || k == "" {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

func (f *feed) subscribe(key string) {
	if key == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return
	default:
	}
	if _, ok := f.subs[key]; ok {
		return
	}
	// On replays the current value synchronously; push does not take f.mu.
	f.subs[key] = f.bus.On(key, func(v any) { f.push(key, v) })
}

func (f *feed) unsubscribe(key string) {
	f.mu.Lock()
	sub, ok := f.subs[key]
	delete(f.subs, key)
	f.mu.Unlock()
	if ok {
		f.bus.Off(key, sub)
	}
}

// push forwards a bus notification to the client.
func (f *feed) push(key string, v any) {
	if appstate.IsNoValue(v) {
		f.enqueue(Event{Type: EventDeleted, Key: key})
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		f.enqueueError(errors.New("M002").Wrap(err))
		return
	}
	f.enqueue(Event{Type: EventValue, Key: key, Value: raw})
}

func (f *feed) enqueueError(err error) {
	ev := Event{Type: EventError, Message: err.Error()}
	if e, ok := errors.As(err); ok {
		ev.Code = e.Code
		ev.Message = e.Message
	}
	f.enqueue(ev)
}

func (f *feed) enqueue(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		f.logger.Error("event encode failed", "error", err)
		return
	}
	select {
	case <-f.done:
	case f.send <- data:
	default:
		f.logger.Warn("feed too slow, closing", "buffered", len(f.send))
		go f.close()
	}
}

func (f *feed) readLoop() {
	defer f.close()

	_ = f.conn.SetReadDeadline(time.Now().Add(pongWait))
	f.conn.SetPongHandler(func(string) error {
		return f.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := f.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				f.logger.Error("read error", "error", err)
			}
			return
		}

		var op ClientOp
		if err := json.Unmarshal(msg, &op); err != nil {
			f.enqueueError(errors.New("M002").Wrap(err))
			continue
		}
		f.handle(op)
	}
}

func (f *feed) handle(op ClientOp) {
	switch op.Op {
	case OpSubscribe:
		f.subscribe(op.Key)

	case OpUnsubscribe:
		f.unsubscribe(op.Key)

	case OpSet:
		var value any
		if err := json.Unmarshal(op.Value, &value); err != nil {
			f.enqueueError(errors.New("M002").Wrap(err))
			return
		}
		var opts []appstate.SetOption
		if op.Persist {
			opts = append(opts, appstate.Persist())
		}
		if _, err := f.bus.Set(op.Key, value, opts...); err != nil {
			f.enqueueError(err)
		}

	case OpDelete:
		var opts []appstate.DeleteOption
		if op.Broadcast {
			opts = append(opts, appstate.Broadcast())
		}
		if err := f.bus.Delete(op.Key, opts...); err != nil {
			f.enqueueError(err)
		}

	default:
		f.logger.Warn("unknown feed op", "op", op.Op)
		f.enqueue(Event{Type: EventError, Message: "unknown op " + op.Op})
	}
}

func (f *feed) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case data := <-f.send:
			_ = f.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := f.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				f.logger.Debug("write failed", "error", err)
				f.close()
				return
			}
		case <-ticker.C:
			if err := f.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				f.close()
				return
			}
		}
	}
}

// close unsubscribes every key and closes the connection. Safe to call more
// than once.
func (f *feed) close() {
	f.closeOnce.Do(func() {
		close(f.done)

		f.mu.Lock()
		subs := f.subs
		f.subs = make(map[string]*appstate.Subscription)
		f.mu.Unlock()
		for key, sub := range subs {
			f.bus.Off(key, sub)
		}

		_ = f.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = f.conn.Close()
		f.owner.remove(f)
		f.metrics.FeedsChanged(-1)
		f.logger.Debug("feed closed")
	})
}

// feedSet tracks open feeds so Shutdown can close them.
type feedSet struct {
	mu    sync.Mutex
	feeds map[*feed]struct{}
}

func newFeedSet() *feedSet {
	return &feedSet{feeds: make(map[*feed]struct{})}
}

func (fs *feedSet) add(f *feed) {
	fs.mu.Lock()
	fs.feeds[f] = struct{}{}
	fs.mu.Unlock()
}

func (fs *feedSet) remove(f *feed) {
	fs.mu.Lock()
	delete(fs.feeds, f)
	fs.mu.Unlock()
}

func (fs *feedSet) len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.feeds)
}

func (fs *feedSet) closeAll() {
	fs.mu.Lock()
	open := make([]*feed, 0, len(fs.feeds))
	for f := range fs.feeds {
		open = append(open, f)
	}
	fs.mu.Unlock()

	for _, f := range open {
		f.close()
	}
}

// FeedCount returns the number of open websocket feeds.
func (s *Server) FeedCount() int {
	return s.feeds.len()
}

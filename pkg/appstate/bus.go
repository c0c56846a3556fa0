package appstate

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
)

// Subscriber receives the new value of a key, or NoValue when the key is
// deleted with Broadcast.
type Subscriber func(value any)

// Subscription is the handle returned by Bus.On. Off compares handles by
// identity.
type Subscription struct {
	key string
	fn  Subscriber
}

// Key returns the subscribed key.
func (s *Subscription) Key() string {
	return s.key
}

// Bus is a Store with a publish/subscribe layer over the same keys.
type Bus struct {
	id   string
	opts options

	mu          sync.Mutex
	subscribers map[string][]*Subscription
	store       *Store
}

// NewBus creates an empty bus for id.
func NewBus(id string, opts ...Option) *Bus {
	b := &Bus{
		id:   id,
		opts: buildOptions(id, opts),
	}
	b.init()
	return b
}

// init resets subscribers and the store to their initial empty state.
func (b *Bus) init() {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	for _, subs := range b.subscribers {
		dropped += len(subs)
	}
	b.opts.metrics.SubscribersChanged(b.id, -dropped)

	b.subscribers = make(map[string][]*Subscription)
	b.store = newStore(b.id, b.opts)
}

// ID returns the store id.
func (b *Bus) ID() string {
	return b.id
}

// Store returns the underlying store.
func (b *Bus) Store() *Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store
}

// snapshot copies the subscriber list for key so callbacks may subscribe or
// unsubscribe during fan-out.
func (b *Bus) snapshot(key string) []*Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Subscription(nil), b.subscribers[key]...)
}

func (b *Bus) notify(key string, value any) {
	subs := b.snapshot(key)
	for _, sub := range subs {
		sub.fn(value)
	}
	b.opts.metrics.Notified(b.id, len(subs))
	if len(subs) > 0 {
		b.opts.logger.Debug("state notified", "key", key, "subscribers", len(subs))
	}
}

// Set stores value under key and then invokes the key's subscribers, in
// registration order, with the value. An empty key or NoValue is a no-op.
// The in-memory value is authoritative: when persisting fails (M002, M021)
// the value stays in memory, subscribers are still invoked and the error is
// returned afterwards. Subscriber panics propagate to the caller.
func (b *Bus) Set(key string, value any, opts ...SetOption) (any, error) {
	if key == "" || IsNoValue(value) {
		return NoValue, nil
	}
	v, err := b.Store().Set(key, value, opts...)
	b.notify(key, v)
	return v, err
}

// Get returns the value for key, or (NoValue, false).
func (b *Bus) Get(key string) (any, bool) {
	return b.Store().Get(key)
}

// Delete removes key, including its persisted copy. With Broadcast, the
// key's subscribers receive NoValue before the key is removed.
func (b *Bus) Delete(key string, opts ...DeleteOption) error {
	if key == "" {
		return nil
	}
	var do deleteOptions
	for _, opt := range opts {
		opt(&do)
	}
	if do.broadcast {
		b.notify(key, NoValue)
	}
	return b.Store().Delete(key)
}

// On subscribes fn to key and returns the subscription handle. If key
// already has a value, fn is invoked with it before On returns. An empty
// key or nil fn is a no-op returning nil.
func (b *Bus) On(key string, fn Subscriber) *Subscription {
	if key == "" || fn == nil {
		return nil
	}
	sub := &Subscription{key: key, fn: fn}

	b.mu.Lock()
	b.subscribers[key] = append(b.subscribers[key], sub)
	b.mu.Unlock()
	b.opts.metrics.SubscribersChanged(b.id, 1)

	if v, ok := b.Get(key); ok {
		fn(v)
	}
	return sub
}

// Off unsubscribes sub from key. A nil sub removes every subscriber of key.
// Unknown subscriptions are ignored.
func (b *Bus) Off(key string, sub *Subscription) {
	if key == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[key]
	if !ok {
		return
	}
	if sub == nil {
		delete(b.subscribers, key)
		b.opts.metrics.SubscribersChanged(b.id, -len(subs))
		return
	}

	kept := subs[:0:0]
	for _, s := range subs {
		if s != sub {
			kept = append(kept, s)
		}
	}
	b.opts.metrics.SubscribersChanged(b.id, len(kept)-len(subs))
	if len(kept) == 0 {
		delete(b.subscribers, key)
		return
	}
	b.subscribers[key] = kept
}

// SubscriberCount returns the number of subscribers of key.
func (b *Bus) SubscriberCount(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[key])
}

// Subscribers returns the subscribed keys and their subscriber counts.
func (b *Bus) Subscribers() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]int, len(b.subscribers))
	for k, subs := range b.subscribers {
		out[k] = len(subs)
	}
	return out
}

// Keys returns the keys held in memory, sorted.
func (b *Bus) Keys() []string {
	return b.Store().Keys()
}

// Reset deletes every in-memory key (purging persisted copies) and drops all
// subscribers. Keys persisted by another bus with the same id that were
// never loaded into this bus's memory stay in the medium.
func (b *Bus) Reset() error {
	var err error
	store := b.Store()
	for _, key := range store.Keys() {
		err = multierr.Append(err, store.Delete(key))
	}
	b.init()
	return err
}

// GetAs returns the value of key converted to T. Values read back from the
// medium are generic JSON (map[string]any, float64, ...), so a value that is
// not already a T is converted by a JSON round trip.
func GetAs[T any](b *Bus, key string) (T, bool, error) {
	var zero T
	v, ok := b.Get(key)
	if !ok {
		return zero, false, nil
	}
	if t, ok := v.(T); ok {
		return t, true, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return zero, true, fmt.Errorf("appstate: encode %q: %w", key, err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, true, fmt.Errorf("appstate: decode %q as %T: %w", key, zero, err)
	}
	return out, true, nil
}

// sortedKeys returns the keys of m, sorted.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package appstate

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/minutespa/minutespa/internal/errors"
)

// noValue is the type of NoValue.
type noValue struct{}

// NoValue is the "no value" marker. Reads of absent keys return it, Set
// ignores it, and subscribers receive it when their key is deleted with
// Broadcast. Every other value, including nil, false, 0 and "", is a real
// value.
var NoValue any = noValue{}

// IsNoValue reports whether v is the NoValue marker.
func IsNoValue(v any) bool {
	_, ok := v.(noValue)
	return ok
}

// Store is an in-memory key/value map with optional write-through to a
// persistent medium. Persisted keys are namespaced as "<id>.<key>".
type Store struct {
	id     string
	prefix string
	opts   options

	mu      sync.RWMutex
	entries map[string]any
}

// NewStore creates a store for id. An empty id stores persisted keys without
// a namespace prefix.
func NewStore(id string, opts ...Option) *Store {
	return newStore(id, buildOptions(id, opts))
}

func newStore(id string, o options) *Store {
	prefix := ""
	if id != "" {
		prefix = id + "."
	}
	return &Store{
		id:      id,
		prefix:  prefix,
		opts:    o,
		entries: make(map[string]any),
	}
}

// ID returns the store id.
func (s *Store) ID() string {
	return s.id
}

// PersistKey returns the namespaced key used in the persistent medium.
func (s *Store) PersistKey(key string) string {
	return s.prefix + key
}

func (s *Store) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.opts.timeout)
}

// Set stores value under key and returns it. An empty key or NoValue is a
// no-op returning NoValue. The value is written to the medium as JSON when
// Persist is given or key was persisted before. A medium failure leaves the
// in-memory value in place and is returned.
func (s *Store) Set(key string, value any, opts ...SetOption) (any, error) {
	if key == "" || IsNoValue(value) {
		return NoValue, nil
	}
	var so setOptions
	for _, opt := range opts {
		opt(&so)
	}

	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()

	persist := s.opts.medium != nil && (so.persist || s.IsPersisted(key))
	s.opts.metrics.StateWrite(s.id, persist)
	if !persist {
		return value, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return value, errors.New("M002").WithDetailf("key %q", key).Wrap(err)
	}

	ctx, cancel := s.opContext()
	defer cancel()
	if err := s.opts.medium.Set(ctx, s.PersistKey(key), string(data)); err != nil {
		s.opts.metrics.PersistFailure(s.id, "set")
		return value, errors.New("M021").WithDetailf("key %q", key).Wrap(err)
	}
	return value, nil
}

// Get returns the value for key: the in-memory entry if there is one,
// otherwise the decoded persisted copy. Reading a persisted copy does not
// load it into memory. Absent keys return (NoValue, false).
func (s *Store) Get(key string) (any, bool) {
	if key == "" {
		return NoValue, false
	}

	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		return v, true
	}

	raw, ok := s.persisted(key)
	if !ok {
		return NoValue, false
	}
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		s.opts.logger.Warn("discarding undecodable persisted value",
			"key", key,
			"error", errors.New("M020").Wrap(err))
		return NoValue, false
	}
	return decoded, true
}

// IsPersisted reports whether the medium holds a non-empty value for key.
// Without a medium, or when the medium fails, nothing is persisted.
func (s *Store) IsPersisted(key string) bool {
	_, ok := s.persisted(key)
	return ok
}

func (s *Store) persisted(key string) (string, bool) {
	if s.opts.medium == nil {
		return "", false
	}
	ctx, cancel := s.opContext()
	defer cancel()

	raw, ok, err := s.opts.medium.Get(ctx, s.PersistKey(key))
	if err != nil {
		s.opts.metrics.PersistFailure(s.id, "get")
		s.opts.logger.Warn("persistent medium read failed", "key", key, "error", err)
		return "", false
	}
	return raw, ok && raw != ""
}

// Delete removes key from memory and from the medium if key currently
// resolves to a value. The in-memory entry is removed even when the medium
// fails; the failure is returned.
func (s *Store) Delete(key string) error {
	if key == "" {
		return nil
	}
	if _, ok := s.Get(key); !ok {
		return nil
	}

	var err error
	if s.opts.medium != nil {
		ctx, cancel := s.opContext()
		defer cancel()
		if rerr := s.opts.medium.Remove(ctx, s.PersistKey(key)); rerr != nil {
			s.opts.metrics.PersistFailure(s.id, "remove")
			err = errors.New("M022").WithDetailf("key %q", key).Wrap(rerr)
		}
	}

	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()

	s.opts.metrics.StateDelete(s.id)
	return err
}

// Keys returns the in-memory keys, sorted. Keys that only exist in the
// medium are not included.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of in-memory entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

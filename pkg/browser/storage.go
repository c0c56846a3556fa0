//go:build js && wasm

package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"syscall/js"

	"github.com/minutespa/minutespa/pkg/medium"
)

var (
	_ medium.Medium = (*Storage)(nil)
	_ medium.Lister = (*Storage)(nil)
)

// Storage is a medium over a Web Storage area. Values are strings, as the
// medium contract requires. When the area is missing or blocked every
// operation is a no-op: reads find nothing and writes are dropped.
type Storage struct {
	area js.Value
}

// SessionStorage returns a medium backed by window.sessionStorage.
func SessionStorage() *Storage {
	return openStorage("sessionStorage")
}

// LocalStorage returns a medium backed by window.localStorage.
func LocalStorage() *Storage {
	return openStorage("localStorage")
}

// openStorage looks up a storage area on the global object. Browsers throw a
// SecurityError from the getter when storage is disabled.
func openStorage(name string) *Storage {
	area := js.Undefined()
	if err := guard("open", func() { area = js.Global().Get(name) }); err != nil {
		slog.Default().With("component", "browser").Warn("web storage unavailable", "area", name, "error", err)
	}
	return &Storage{area: area}
}

// Available reports whether the storage area exists.
func (s *Storage) Available() bool {
	return !s.area.IsUndefined() && !s.area.IsNull()
}

// guard converts a JavaScript exception thrown during fn into an error.
// Storage calls throw when the area is disabled or over quota.
func guard(op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case js.Error:
				err = fmt.Errorf("web storage %s: %w", op, e)
				return
			case *js.ValueError:
				err = fmt.Errorf("web storage %s: %w", op, e)
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}

// Has reports whether key is stored.
func (s *Storage) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// Get returns the value stored under key.
func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	if !s.Available() {
		return "", false, nil
	}
	var item js.Value
	err := guard("get", func() {
		item = s.area.Call("getItem", key)
	})
	if err != nil || item.IsNull() || item.IsUndefined() {
		return "", false, err
	}
	return item.String(), true, nil
}

// Set stores value under key.
func (s *Storage) Set(_ context.Context, key, value string) error {
	if !s.Available() {
		return nil
	}
	return guard("set", func() {
		s.area.Call("setItem", key, value)
	})
}

// Remove deletes key.
func (s *Storage) Remove(_ context.Context, key string) error {
	if !s.Available() {
		return nil
	}
	return guard("remove", func() {
		s.area.Call("removeItem", key)
	})
}

// Keys returns every stored key with the given prefix, sorted.
func (s *Storage) Keys(_ context.Context, prefix string) ([]string, error) {
	if !s.Available() {
		return nil, nil
	}
	var keys []string
	err := guard("keys", func() {
		n := s.area.Get("length").Int()
		for i := 0; i < n; i++ {
			k := s.area.Call("key", i)
			if k.IsNull() {
				continue
			}
			if key := k.String(); strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
	})
	sort.Strings(keys)
	return keys, err
}

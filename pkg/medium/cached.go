package medium

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of keys Cached keeps by default.
const DefaultCacheSize = 512

type cacheEntry struct {
	value   string
	present bool
}

// Cached is a read-through LRU cache in front of a slower medium such as
// S3 or Remote. Writes go straight to the backing medium and refresh the
// cached entry. Other writers to the same backing medium are not observed
// until the entry is evicted.
type Cached struct {
	next  Medium
	cache *lru.Cache[string, cacheEntry]
}

// NewCached wraps next with an LRU cache holding up to size keys.
// A size <= 0 uses DefaultCacheSize.
func NewCached(next Medium, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: cache}, nil
}

// Has reports whether key is stored, consulting the cache first.
func (c *Cached) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.Get(ctx, key)
	return ok, err
}

// Get returns the cached value or loads it from the backing medium.
// Misses are cached too.
func (c *Cached) Get(ctx context.Context, key string) (string, bool, error) {
	if e, ok := c.cache.Get(key); ok {
		return e.value, e.present, nil
	}
	v, ok, err := c.next.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	c.cache.Add(key, cacheEntry{value: v, present: ok})
	return v, ok, nil
}

// Set writes through and caches the new value.
func (c *Cached) Set(ctx context.Context, key, value string) error {
	if err := c.next.Set(ctx, key, value); err != nil {
		c.cache.Remove(key)
		return err
	}
	c.cache.Add(key, cacheEntry{value: value, present: true})
	return nil
}

// Remove deletes through and caches the miss.
func (c *Cached) Remove(ctx context.Context, key string) error {
	if err := c.next.Remove(ctx, key); err != nil {
		c.cache.Remove(key)
		return err
	}
	c.cache.Add(key, cacheEntry{})
	return nil
}

// Keys delegates to the backing medium when it can list keys.
func (c *Cached) Keys(ctx context.Context, prefix string) ([]string, error) {
	if l, ok := c.next.(Lister); ok {
		return l.Keys(ctx, prefix)
	}
	return nil, nil
}

// Purge drops every cached entry.
func (c *Cached) Purge() {
	c.cache.Purge()
}

// Close purges the cache and closes the backing medium.
func (c *Cached) Close() error {
	c.cache.Purge()
	return Close(c.next)
}

package medium

import (
	"context"
	"testing"
)

// countingMedium counts backing reads.
type countingMedium struct {
	*Memory
	gets int
}

func (c *countingMedium) Get(ctx context.Context, key string) (string, bool, error) {
	c.gets++
	return c.Memory.Get(ctx, key)
}

func TestCached(t *testing.T) {
	c, err := NewCached(NewMemory(), 8)
	if err != nil {
		t.Fatalf("NewCached error: %v", err)
	}
	exerciseMedium(t, c)
}

func TestCachedServesRepeatedReadsFromCache(t *testing.T) {
	backing := &countingMedium{Memory: NewMemory()}
	backing.Memory.Set(context.Background(), "k", `"v"`)

	c, err := NewCached(backing, 0)
	if err != nil {
		t.Fatalf("NewCached error: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if v, ok, _ := c.Get(ctx, "k"); !ok || v != `"v"` {
			t.Fatalf("Get = %q, %v", v, ok)
		}
	}
	if backing.gets != 1 {
		t.Errorf("backing gets = %d, want 1", backing.gets)
	}

	// misses are cached as well
	c.Has(ctx, "missing")
	c.Has(ctx, "missing")
	if backing.gets != 2 {
		t.Errorf("backing gets = %d, want 2", backing.gets)
	}

	c.Set(ctx, "missing", `1`)
	if v, ok, _ := c.Get(ctx, "missing"); !ok || v != `1` {
		t.Errorf("Get after Set = %q, %v", v, ok)
	}
	if backing.gets != 2 {
		t.Errorf("Set should refresh the cache, backing gets = %d", backing.gets)
	}

	c.Purge()
	c.Get(ctx, "k")
	if backing.gets != 3 {
		t.Errorf("backing gets after Purge = %d, want 3", backing.gets)
	}
}

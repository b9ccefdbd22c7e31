package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

func entryAt(text string, at time.Time) domain.CacheEntry {
	return domain.CacheEntry{
		Answer:    domain.Answer{Text: text},
		CreatedAt: at,
	}
}

func TestLRUGetReturnsStoredEntry(t *testing.T) {
	c := NewLRU(4, time.Minute)
	c.Put("k", entryAt("answer", time.Now()))

	got, ok := c.Get("k")
	if !ok {
		t.Fatalf("expected hit")
	}
	if got.Answer.Text != "answer" {
		t.Fatalf("wrong entry: %q", got.Answer.Text)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("unexpected hit on missing key")
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU(2, time.Minute)
	now := time.Now()
	c.Put("a", entryAt("a", now))
	c.Put("b", entryAt("b", now))

	// Touch a so b becomes the eviction candidate.
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a present")
	}
	c.Put("c", entryAt("c", now))

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatalf("c should be present")
	}
}

func TestLRUExpiresByTTL(t *testing.T) {
	c := NewLRU(4, time.Minute)
	base := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return base }
	c.Put("k", entryAt("answer", base))

	c.now = func() time.Time { return base.Add(59 * time.Second) }
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry expired early")
	}

	c.now = func() time.Time { return base.Add(61 * time.Second) }
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry outlived its ttl")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry still resident")
	}
}

func TestLRUPutRefreshesExistingKey(t *testing.T) {
	c := NewLRU(2, time.Minute)
	now := time.Now()
	c.Put("a", entryAt("old", now))
	c.Put("b", entryAt("b", now))
	c.Put("a", entryAt("new", now))
	c.Put("c", entryAt("c", now))

	if got, ok := c.Get("a"); !ok || got.Answer.Text != "new" {
		t.Fatalf("refreshed key lost or stale: %v %v", got.Answer.Text, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b evicted after a was refreshed")
	}
}

func TestLRUCapacityBound(t *testing.T) {
	c := NewLRU(8, time.Minute)
	now := time.Now()
	for i := 0; i < 100; i++ {
		c.Put(fmt.Sprintf("k%d", i), entryAt("v", now))
	}
	if c.Len() != 8 {
		t.Fatalf("capacity exceeded: %d", c.Len())
	}
}

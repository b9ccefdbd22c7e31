package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/smikhalev/support-rag/internal/core/domain"
)

// LRU is a fixed-capacity answer cache with per-entry TTL. Reads
// refresh recency; inserting past capacity evicts the least recently
// used entry. Expired entries are dropped lazily on access.
type LRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	items    map[string]*list.Element
	now      func() time.Time
}

type lruItem struct {
	key   string
	entry domain.CacheEntry
}

func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 256
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &LRU{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
		now:      time.Now,
	}
}

func (c *LRU) Get(key string) (domain.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return domain.CacheEntry{}, false
	}
	item := elem.Value.(*lruItem)
	if c.now().Sub(item.entry.CreatedAt) > c.ttl {
		c.removeLocked(elem)
		return domain.CacheEntry{}, false
	}
	c.order.MoveToFront(elem)
	return item.entry, true
}

func (c *LRU) Put(key string, entry domain.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = c.now()
	}
	if elem, ok := c.items[key]; ok {
		elem.Value.(*lruItem).entry = entry
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&lruItem{key: key, entry: entry})
	c.items[key] = elem
	if c.order.Len() > c.capacity {
		c.removeLocked(c.order.Back())
	}
}

// Len reports the number of resident entries, expired or not.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRU) removeLocked(elem *list.Element) {
	if elem == nil {
		return
	}
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*lruItem).key)
}

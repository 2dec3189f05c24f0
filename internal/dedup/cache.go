package dedup

import (
	"sync"
)

// Cache is a bounded FIFO set of recently-seen message identifiers.
// It is a best-effort fast-path filter for rapid provider retries; the
// database uniqueness constraint remains the authoritative idempotency
// boundary. State is in-memory only and cleared on restart.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    []string
	seen     map[string]struct{}
}

// NewCache creates a cache holding at most capacity keys. A non-positive
// capacity falls back to 1.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

// Add records key and reports whether it was newly added. When the cache is
// full the oldest key is evicted.
func (c *Cache) Add(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[key]; ok {
		return false
	}

	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
	}

	c.order = append(c.order, key)
	c.seen[key] = struct{}{}
	return true
}

// Remove evicts key if present, so a later delivery of the same message
// replays instead of being absorbed by the fast path.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[key]; !ok {
		return
	}

	delete(c.seen, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Contains reports whether key is in the current window.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.seen[key]
	return ok
}

// Len returns the number of keys currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.order)
}

// Package identity provides a small bounded read-through cache for
// request-bound identity lookups (session token -> device session,
// user id -> user). The backing store stays the source of truth: entries
// are evicted LRU at capacity and must be invalidated by whoever mutates
// the underlying record. A stale entry here is a security defect, not a
// UX nit -- a revoked session or demoted admin must not linger.
package identity

import (
	"container/list"
	"sync"
)

// entry is one cached key/value pair, stored as the list element value.
type entry[K comparable, V any] struct {
	key   K
	value V
}

// Cache is a fixed-capacity LRU cache safe for concurrent use by request
// handlers. Lookups and inserts both count as access. Contents are lost on
// process restart, which only costs a re-fetch, never correctness.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*list.Element
	lru      *list.List
}

// New creates a cache with the given capacity. Capacities below 1 are
// clamped to 1.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element),
		lru:      list.New(),
	}
}

// Get retrieves a value and marks it most recently used.
// Uses a full lock because MoveToFront mutates the LRU list.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*entry[K, V]).value, true
}

// GetOrCompute returns the cached value for key, or invokes compute on a
// miss and caches the result. Errors from compute are returned as-is and
// nothing is cached, so a transient store failure doesn't poison the cache.
//
// compute runs outside the cache lock; two concurrent misses for the same
// key may both compute, and the second result wins. That is acceptable
// here because compute is a read of the authoritative store.
func (c *Cache[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	c.put(key, v)
	return v, nil
}

// put inserts or refreshes a value, evicting the least recently used entry
// if the cache is at capacity.
func (c *Cache[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*entry[K, V]).value = value
		return
	}

	if c.lru.Len() >= c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*entry[K, V]).key)
		}
	}

	c.items[key] = c.lru.PushFront(&entry[K, V]{key: key, value: value})
}

// Invalidate removes an entry immediately. Callers mutating an entity's
// authentication-relevant fields (password, email, admin flag, session
// deletion) must invalidate in the same logical unit as the write.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.Remove(elem)
		delete(c.items, key)
	}
}

// Purge drops every entry. Exposed for the admin emergency-flush action
// after out-of-band data fixes.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element)
	c.lru.Init()
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Package lrucache implements the hot-path data structure of distcache: a
// capacity-bounded, per-key-TTL, least-recently-used cache.
//
// Two structures back every Cache: a map[string]*list.Element for O(1)
// lookup, and a container/list.List ordered most-recently-used first for
// O(1) recency updates and O(1) tail eviction. This is the same pairing
// _examples/Krishna8167-tempuscache builds on; the exact method semantics
// (exists as a non-mutating predicate, lazy + active expiration, strict
// capacity enforcement on every Set) follow the original distcache's
// storage/LRUCache.
//
// Concurrency model (spec.md §5): a single sync.RWMutex guards the map,
// the list, and (implicitly, via the exclusive lock) the per-entry
// timestamps. Get takes the cache's exclusive lock on every call, not a
// shared one: Get mutates lastAccess and reorders the recency list, and
// spec.md §9 calls holding only a shared lock across that mutation a
// "benign data race" that a faithful port may instead avoid by upgrading
// to exclusive mode — the choice this cache makes. Hit/miss/eviction
// counters remain independent atomics regardless.
package lrucache

import (
	"container/list"
	"sync"
	"time"

	"github.com/agilira/go-timecache"

	"github.com/distcache-io/distcache/internal/cacheerrors"
)

// Cache is a thread-safe, capacity-bounded, TTL-aware LRU store.
type Cache struct {
	mu   sync.RWMutex
	data map[string]*list.Element
	ring *list.List // MRU at Front, LRU at Back; elements hold *entry

	capacity      int
	defaultTTL    time.Duration
	sweepInterval time.Duration

	onEvict  func(key string, value []byte)
	onExpire func(key string, value []byte)

	stats stats

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New builds a Cache from the given options. WithCapacity is required;
// New returns an error (rather than panicking) if capacity is never set
// to a positive value, matching spec.md §7's "the cache never panics on
// valid inputs" by making invalid configuration a reportable error
// instead of a runtime fault.
func New(opts ...Option) (*Cache, error) {
	c := &Cache{
		data:       make(map[string]*list.Element),
		ring:       list.New(),
		defaultTTL: DefaultTTL,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.capacity <= 0 {
		return nil, cacheerrors.NewErrInvalidCapacity(c.capacity)
	}
	if c.sweepInterval > 0 {
		go c.runSweeper()
	} else {
		close(c.doneCh)
	}
	return c, nil
}

// Get returns the value for key if present and not expired, refreshing
// its recency. A miss (absent or expired key) returns (nil, false); an
// expired entry found this way is removed on the spot (firing the
// WithOnExpire callback, if set).
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.data[key]
	if !ok {
		c.stats.misses.Add(1)
		return nil, false
	}
	e := elem.Value.(*entry)
	now := timecache.CachedTimeNano()
	if e.expired(now) {
		c.ring.Remove(elem)
		delete(c.data, e.key)
		if c.onExpire != nil {
			c.onExpire(e.key, e.value)
		}
		c.stats.misses.Add(1)
		return nil, false
	}
	e.lastAccess = now
	c.ring.MoveToFront(elem)
	c.stats.hits.Add(1)
	return e.value, true
}

// Exists reports whether key is present and not expired, without
// updating recency — spec.md §4.1 treats Exists as a pure predicate, not
// an access.
func (c *Cache) Exists(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	elem, ok := c.data[key]
	if !ok {
		return false
	}
	e := elem.Value.(*entry)
	return !e.expired(timecache.CachedTimeNano())
}

// Set inserts or overwrites key. ttl <= 0 applies DefaultTTL. If the
// post-insert size would exceed capacity, the least-recently-used
// entries are evicted until size == capacity again (spec.md §8
// invariant 2).
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := timecache.CachedTimeNano()
	expireAt := now + ttl.Nanoseconds()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.data[key]; ok {
		e := elem.Value.(*entry)
		e.value = value
		e.expireAt = expireAt
		e.lastAccess = now
		c.ring.MoveToFront(elem)
		return
	}

	e := &entry{key: key, value: value, expireAt: expireAt, lastAccess: now}
	elem := c.ring.PushFront(e)
	c.data[key] = elem

	for len(c.data) > c.capacity {
		c.evictOldestLocked()
	}
}

// SetIfNotExists stores value only if key is absent or expired, and
// reports whether the store happened. Supplemented from
// original_source/LRUCache::set_if_not_exists — a cheap compare-and-set
// primitive; the wire protocol does not expose it.
func (c *Cache) SetIfNotExists(key string, value []byte, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := timecache.CachedTimeNano()
	if elem, ok := c.data[key]; ok {
		e := elem.Value.(*entry)
		if !e.expired(now) {
			return false
		}
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if elem, ok := c.data[key]; ok {
		e := elem.Value.(*entry)
		e.value = value
		e.expireAt = now + ttl.Nanoseconds()
		e.lastAccess = now
		c.ring.MoveToFront(elem)
		return true
	}
	e := &entry{key: key, value: value, expireAt: now + ttl.Nanoseconds(), lastAccess: now}
	elem := c.ring.PushFront(e)
	c.data[key] = elem
	for len(c.data) > c.capacity {
		c.evictOldestLocked()
	}
	return true
}

// Delete removes key if present. Idempotent: deleting an absent key is a
// no-op, not an error.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.data[key]; ok {
		c.ring.Remove(elem)
		delete(c.data, key)
	}
}

// CleanupExpired scans every entry and removes those whose TTL has
// elapsed. Called by the background sweeper; safe to call directly.
// After it returns, no entry with expireAt <= now remains (spec.md §8
// invariant 3).
func (c *Cache) CleanupExpired() int {
	now := timecache.CachedTimeNano()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.ring.Front(); elem != nil; {
		next := elem.Next()
		e := elem.Value.(*entry)
		if e.expired(now) {
			c.ring.Remove(elem)
			delete(c.data, e.key)
			removed++
			if c.onExpire != nil {
				c.onExpire(e.key, e.value)
			}
		}
		elem = next
	}
	return removed
}

// Len returns the current number of entries, expired or not (lazily
// expired entries are only removed on access or sweep).
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Capacity returns the configured maximum entry count.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Stats returns a snapshot of hit/miss/eviction counters.
func (c *Cache) Stats() Stats {
	return c.stats.snapshot()
}

// Keys returns a snapshot of all keys currently stored, expired or not.
// Keys are returned most-recently-used first. Supplemented from
// original_source/LRUCache::get_all_keys.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.data))
	for elem := c.ring.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry).key)
	}
	return keys
}

// Snapshot returns a copy of every live (non-expired) key/value pair,
// for use by the persistence layer.
func (c *Cache) Snapshot() map[string][]byte {
	now := timecache.CachedTimeNano()

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string][]byte, len(c.data))
	for elem := c.ring.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry)
		if !e.expired(now) {
			out[e.key] = e.value
		}
	}
	return out
}

// Close stops the background sweeper, if running, and waits for it to
// exit. Safe to call more than once: calls after the first are no-ops.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		<-c.doneCh
	})
}

// evictOldestLocked pops the least-recently-used entry. The caller must
// already hold c.mu for writing.
func (c *Cache) evictOldestLocked() {
	elem := c.ring.Back()
	if elem == nil {
		return
	}
	e := elem.Value.(*entry)
	c.ring.Remove(elem)
	delete(c.data, e.key)
	c.stats.evictions.Add(1)
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}

func (c *Cache) runSweeper() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-c.stopCh:
			return
		}
	}
}

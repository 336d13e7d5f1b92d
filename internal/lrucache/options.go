package lrucache

import "time"

// DefaultTTL is the sentinel lifetime applied when Set is called without
// an explicit TTL. The cache never stores an entry with an unbounded
// lifetime — spec.md §4.1 calls this out explicitly, since it keeps the
// sweeper's job simple (every entry eventually becomes eligible for
// cleanup).
const DefaultTTL = 24 * time.Hour

// Option configures a Cache at construction time. Functional options keep
// New's signature stable as configuration knobs are added, the same
// pattern _examples/Krishna8167-tempuscache uses for WithCleanupInterval.
type Option func(*Cache)

// WithCapacity sets the maximum number of entries the cache holds before
// LRU eviction kicks in. Required; New returns an error rather than
// panicking if capacity is never set to a positive value.
func WithCapacity(capacity int) Option {
	return func(c *Cache) { c.capacity = capacity }
}

// WithDefaultTTL overrides DefaultTTL for entries set without an
// explicit per-key TTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.defaultTTL = ttl }
}

// WithSweepInterval enables the background janitor, scanning for expired
// entries every interval. If never set (or set to zero), only lazy
// expiration on access applies.
func WithSweepInterval(interval time.Duration) Option {
	return func(c *Cache) { c.sweepInterval = interval }
}

// WithOnEvict registers a callback invoked synchronously whenever an
// entry is evicted for capacity, with the evicted key and value. Must be
// fast and non-blocking; it runs under the cache's write lock.
func WithOnEvict(fn func(key string, value []byte)) Option {
	return func(c *Cache) { c.onEvict = fn }
}

// WithOnExpire registers a callback invoked synchronously whenever an
// entry is removed because its TTL elapsed (lazily or via the sweeper).
func WithOnExpire(fn func(key string, value []byte)) Option {
	return func(c *Cache) { c.onExpire = fn }
}

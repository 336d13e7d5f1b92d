package lrucache

import "sync/atomic"

// stats holds the cache's running counters. Hits and misses are read far
// more often under contention than written in bursts, so they're plain
// atomics rather than fields protected by the cache's RWMutex — spec.md
// §5 requires this regardless of which locking mode Get itself uses.
type stats struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// Stats is a point-in-time snapshot of cache performance counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns Hits / (Hits + Misses), or 0 when no Get has been
// performed yet. Always in [0, 1], per spec.md §8 invariant 4.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (s *stats) snapshot() Stats {
	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
	}
}

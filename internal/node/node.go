// Package node wires one distcache node's collaborators together and
// owns the two pieces of lifecycle no single collaborator can own by
// itself: crash recovery and the background sweeper.
//
// Grounded on _examples/original_source/main.cpp's startup sequence
// (construct collaborators, load persisted data, replay the WAL, then
// start the background threads) and its cleanup thread (cache eviction
// plus connection-count metrics every few seconds), combined with the
// ticker/stop-channel shutdown shape of
// _examples/Krishna8167-tempuscache/janitor.go.
package node

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/distcache-io/distcache/internal/breaker"
	"github.com/distcache-io/distcache/internal/discovery"
	"github.com/distcache-io/distcache/internal/hashring"
	"github.com/distcache-io/distcache/internal/lrucache"
	"github.com/distcache-io/distcache/internal/metrics"
	"github.com/distcache-io/distcache/internal/snapshot"
	"github.com/distcache-io/distcache/internal/wal"
)

// Node composes the collaborators a running distcache process needs
// beyond the TCP/HTTP front ends: the cache itself, its durability log
// and snapshot store, the hash ring and breaker the front ends consult,
// the peer registry, and a metrics sink.
type Node struct {
	ID string

	Cache     *lrucache.Cache
	Log       *wal.WAL
	Snapshots *snapshot.Store
	Ring      *hashring.Ring
	Breaker   *breaker.CircuitBreaker
	Discovery *discovery.Registry
	Metrics   metrics.Collector

	snapshotEvery int
	sweepInterval time.Duration

	stopped atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Options configures the sweeper. SnapshotEvery and SweepInterval below
// or equal zero fall back to internal/config's documented defaults.
type Options struct {
	SnapshotEvery int
	SweepInterval time.Duration
}

// New builds a Node. mc may be nil, in which case sweeper events are
// discarded (metrics.NoOp semantics), matching the front ends' own
// nil-collector convention.
func New(id string, cache *lrucache.Cache, log *wal.WAL, snapshots *snapshot.Store, ring *hashring.Ring, cb *breaker.CircuitBreaker, reg *discovery.Registry, mc metrics.Collector, opts Options) *Node {
	if mc == nil {
		mc = metrics.NoOp{}
	}
	snapshotEvery := opts.SnapshotEvery
	if snapshotEvery <= 0 {
		snapshotEvery = 100
	}
	sweepInterval := opts.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	return &Node{
		ID:            id,
		Cache:         cache,
		Log:           log,
		Snapshots:     snapshots,
		Ring:          ring,
		Breaker:       cb,
		Discovery:     reg,
		Metrics:       mc,
		snapshotEvery: snapshotEvery,
		sweepInterval: sweepInterval,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Recover rebuilds cache state the way main.cpp's startup sequence
// does: load the last snapshot first, then replay every WAL record
// still in the log on top of it. A key present in both sources is set
// from the snapshot first and then overwritten by the replayed WAL
// entries, so the WAL's value wins (spec.md §4.3).
func (n *Node) Recover(ctx context.Context) error {
	entries, err := n.Snapshots.Load()
	if err != nil {
		return err
	}
	for key, value := range entries {
		n.Cache.Set(key, value, 0)
	}

	records, err := wal.Replay(n.Log.Path())
	if err != nil {
		return err
	}
	for _, rec := range records {
		switch rec.Op {
		case wal.OpSet:
			n.Cache.Set(rec.Key, rec.Value, 0)
		case wal.OpDel:
			n.Cache.Delete(rec.Key)
		}
	}
	return nil
}

// StartSweeper launches the background janitor: every tick it evicts
// expired entries and records the current connection count, and every
// snapshotEvery ticks it snapshots the cache and truncates the WAL once
// the snapshot has landed, matching main.cpp's cleanup thread plus
// spec.md §4.3's "truncate only after a successful snapshot" ordering.
// activeConns reports the current connection count for the metrics
// sample; it may be nil if nothing tracks connections yet.
func (n *Node) StartSweeper(activeConns func() int) {
	go func() {
		defer close(n.doneCh)
		ticker := time.NewTicker(n.sweepInterval)
		defer ticker.Stop()

		ticks := 0
		for {
			select {
			case <-ticker.C:
				n.Cache.CleanupExpired()
				if activeConns != nil {
					n.Metrics.RecordActiveConnections(activeConns())
				}

				ticks++
				if ticks >= n.snapshotEvery {
					ticks = 0
					n.snapshotAndTruncate()
				}
			case <-n.stopCh:
				return
			}
		}
	}()
}

// snapshotAndTruncate persists the current cache contents and, only on
// success, truncates the WAL prefix that the snapshot already covers.
// The snapshot capture runs inside Log.Checkpoint, which holds off any
// mutation's WAL-append-then-cache-mutate pair for its duration — so the
// offset Checkpoint hands back is never ahead of what entries reflects,
// and a mutation acked mid-checkpoint survives in the retained WAL tail
// instead of being lost from both the snapshot and the truncated log.
func (n *Node) snapshotAndTruncate() {
	start := time.Now()
	var entries map[string][]byte
	offset, err := n.Log.Checkpoint(func() error {
		entries = n.Cache.Snapshot()
		return n.Snapshots.Save(entries)
	})
	n.Metrics.RecordSnapshot(time.Since(start).Nanoseconds(), err)
	if err != nil {
		return
	}
	n.Log.TruncatePrefix(offset)
}

// Shutdown stops the sweeper and, if discovery was started, its probe
// loop too. Safe to call more than once.
func (n *Node) Shutdown(ctx context.Context) error {
	if n.stopped.CompareAndSwap(false, true) {
		close(n.stopCh)
	}
	if n.Discovery != nil {
		n.Discovery.Stop()
	}
	select {
	case <-n.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	return n.Log.Close()
}

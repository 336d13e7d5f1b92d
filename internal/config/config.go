// Package config holds node configuration and its hot-reload wiring.
// Defaults and the "Validate never errors, only normalizes" contract are
// grounded on _examples/agilira-balios/config.go; hot reload is grounded
// on _examples/agilira-balios/hot-reload.go, built on
// github.com/agilira/argus.
package config

import "time"

// Defaults mirror the source's documented constants where one exists
// (CacheCapacity, VirtualNodes, BreakerFailureThreshold, BreakerOpenTimeout)
// and the teacher's own conservative defaults elsewhere (SweepInterval,
// SnapshotEvery).
const (
	DefaultCacheCapacity          = 10000
	DefaultTTL                    = 24 * time.Hour
	DefaultVirtualNodes           = 3
	DefaultBreakerFailureThreshold = 5
	DefaultBreakerOpenTimeout     = 30 * time.Second
	DefaultTCPPort                = 6380
	DefaultHTTPPort               = 8080
	DefaultWALPath                = "distcache.wal"
	DefaultSnapshotPath           = "distcache.snapshot"
	DefaultSnapshotEvery          = 100
	DefaultSweepInterval          = 30 * time.Second
)

// Config holds every tunable of a distcache node.
type Config struct {
	NodeID string
	// CacheCapacity is the maximum number of entries the local LRU cache
	// holds. Requires a restart to change.
	CacheCapacity int
	// DefaultTTL applies to Set calls made with ttl <= 0. Hot-reloadable.
	DefaultTTL time.Duration
	// VirtualNodes is the hash ring's virtual-node count. Requires a
	// restart: changing it reshuffles the whole ring's ownership.
	VirtualNodes int
	// BreakerFailureThreshold and BreakerOpenTimeout tune the circuit
	// breaker guarding WAL/snapshot I/O. Hot-reloadable.
	BreakerFailureThreshold int
	BreakerOpenTimeout      time.Duration
	// TCPPort and HTTPPort are the listener ports. Require a restart.
	TCPPort  int
	HTTPPort int
	// WALPath and SnapshotPath are on-disk persistence locations.
	// Require a restart.
	WALPath      string
	SnapshotPath string
	// SnapshotEvery is the number of sweeper ticks between automatic
	// snapshots. Hot-reloadable.
	SnapshotEvery int
	// SweepInterval is the background janitor's tick period.
	// Hot-reloadable.
	SweepInterval time.Duration
	// SeedNodes lists addresses of peers to register in the hash ring
	// and node-discovery registry at startup.
	SeedNodes []string
}

// Validate normalizes c in place, filling in documented defaults for any
// field left at its zero value. It never returns an error, matching
// balios.Config.Validate's contract: a Config is never "invalid", only
// incompletely specified.
func (c *Config) Validate() error {
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = DefaultCacheCapacity
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.VirtualNodes <= 0 {
		c.VirtualNodes = DefaultVirtualNodes
	}
	if c.BreakerFailureThreshold <= 0 {
		c.BreakerFailureThreshold = DefaultBreakerFailureThreshold
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = DefaultBreakerOpenTimeout
	}
	if c.TCPPort <= 0 {
		c.TCPPort = DefaultTCPPort
	}
	if c.HTTPPort <= 0 {
		c.HTTPPort = DefaultHTTPPort
	}
	if c.WALPath == "" {
		c.WALPath = DefaultWALPath
	}
	if c.SnapshotPath == "" {
		c.SnapshotPath = DefaultSnapshotPath
	}
	if c.SnapshotEvery <= 0 {
		c.SnapshotEvery = DefaultSnapshotEvery
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return nil
}

// Default returns a Config populated entirely with documented defaults.
func Default() Config {
	c := Config{}
	c.Validate() //nolint:errcheck // Validate never errors
	return c
}

// HotReloadable is the subset of fields a running node may pick up
// without a restart, per spec.md's "not all fields are hot-reloadable"
// caveat (mirrored from the teacher's own hot-reload.go comment).
type HotReloadable struct {
	DefaultTTL              time.Duration
	BreakerFailureThreshold int
	BreakerOpenTimeout      time.Duration
	SnapshotEvery           int
	SweepInterval           time.Duration
}

func (c Config) hotReloadable() HotReloadable {
	return HotReloadable{
		DefaultTTL:              c.DefaultTTL,
		BreakerFailureThreshold: c.BreakerFailureThreshold,
		BreakerOpenTimeout:      c.BreakerOpenTimeout,
		SnapshotEvery:           c.SnapshotEvery,
		SweepInterval:           c.SweepInterval,
	}
}

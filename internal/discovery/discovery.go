// Package discovery tracks cluster membership via heartbeat timeouts.
// Grounded on _examples/original_source/src/cluster/NodeDiscovery.{h,cpp}:
// a registry of known nodes, seeded explicitly (no broadcast/gossip —
// that's out of scope, same as the source's own "simulate_heartbeat_exchange"
// stand-in), with liveness derived from how long it has been since each
// node's last heartbeat.
package discovery

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultNodeTimeout matches the source's NODE_TIMEOUT_MS.
const DefaultNodeTimeout = 15 * time.Second

// NodeInfo describes one cluster member.
type NodeInfo struct {
	ID            string
	Address       string
	Port          int
	LastHeartbeat time.Time
	Alive         bool
}

// Registry tracks known cluster nodes and their liveness.
type Registry struct {
	selfID      string
	nodeTimeout time.Duration

	mu    sync.Mutex
	nodes map[string]NodeInfo

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithNodeTimeout overrides DefaultNodeTimeout.
func WithNodeTimeout(d time.Duration) Option {
	return func(r *Registry) { r.nodeTimeout = d }
}

// New returns a Registry for selfID, already containing itself as alive.
func New(selfID, selfAddress string, selfPort int, opts ...Option) *Registry {
	r := &Registry{
		selfID:      selfID,
		nodeTimeout: DefaultNodeTimeout,
		nodes:       make(map[string]NodeInfo),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.nodes[selfID] = NodeInfo{
		ID:            selfID,
		Address:       selfAddress,
		Port:          selfPort,
		LastHeartbeat: time.Now(),
		Alive:         true,
	}
	return r
}

// AddSeedNode registers a peer known at startup, marked alive until its
// first missed heartbeat window.
func (r *Registry) AddSeedNode(id, address string, port int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[id] = NodeInfo{
		ID:            id,
		Address:       address,
		Port:          port,
		LastHeartbeat: time.Now(),
		Alive:         true,
	}
}

// Heartbeat records that id is alive as of now. Probing a node not yet
// known is a no-op: only seeded nodes (or self) are tracked.
func (r *Registry) Heartbeat(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return
	}
	n.LastHeartbeat = time.Now()
	n.Alive = true
	r.nodes[id] = n
}

// AliveNodes returns every node currently considered alive, including self.
func (r *Registry) AliveNodes() []NodeInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]NodeInfo, 0, len(r.nodes))
	for _, n := range r.nodes {
		if n.Alive {
			out = append(out, n)
		}
	}
	return out
}

// IsAlive reports whether id is currently considered alive.
func (r *Registry) IsAlive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodes[id].Alive
}

// sweep marks any non-self node whose last heartbeat exceeds nodeTimeout
// as dead, mirroring NodeDiscovery::cleanup_dead_nodes.
func (r *Registry) sweep() {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range r.nodes {
		if id == r.selfID {
			continue
		}
		if n.Alive && now.Sub(n.LastHeartbeat) > r.nodeTimeout {
			n.Alive = false
			r.nodes[id] = n
		}
	}
}

// probe issues a liveness check against a peer's HTTP status endpoint
// (internal/status's own /health route), recording a heartbeat on
// success. A peer with no HTTP address configured (port 0) is skipped.
func (r *Registry) probe(client *http.Client, n NodeInfo) {
	if n.Port == 0 {
		return
	}
	url := "http://" + n.Address + ":" + itoa(n.Port) + "/health"
	resp, err := client.Get(url)
	if err != nil {
		return
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		r.Heartbeat(n.ID)
	}
}

// Start begins a periodic liveness sweep: every interval, probe every
// known non-self peer's /health endpoint and mark unresponsive ones dead
// after nodeTimeout. Start returns immediately; the sweep runs on a
// background goroutine until Stop is called.
func (r *Registry) Start(interval time.Duration) {
	r.startOnce.Do(func() {
		r.started.Store(true)
		client := &http.Client{Timeout: 2 * time.Second}
		go func() {
			defer close(r.doneCh)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					r.mu.Lock()
					peers := make([]NodeInfo, 0, len(r.nodes))
					for id, n := range r.nodes {
						if id != r.selfID {
							peers = append(peers, n)
						}
					}
					r.mu.Unlock()

					for _, n := range peers {
						r.probe(client, n)
					}
					r.sweep()
				case <-r.stopCh:
					return
				}
			}
		}()
	})
}

// Stop halts the background liveness sweep, if running, and waits for it
// to exit. Safe to call even if Start was never called.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	if r.started.Load() {
		<-r.doneCh
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

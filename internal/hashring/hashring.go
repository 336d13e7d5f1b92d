// Package hashring implements consistent hashing with virtual nodes, as
// specified in spec.md §4.4, grounded on
// _examples/original_source/src/cluster/HashRing.{h,cpp}: FNV-1a with the
// same offset basis and prime the source uses, the same default
// virtual-node count, and the same "node:replica" virtual-node key shape.
//
// Go has no ordered-map primitive matching std::map's lower_bound, so the
// ring is held as a sorted []uint32 of positions searched by binary
// search, parallel to a map[uint32]string owning the position-to-node
// lookup — together reproducing the source's O(log n) point query.
package hashring

import (
	"sort"
	"sync"
)

const (
	fnvOffsetBasis uint32 = 2166136261
	fnvPrime       uint32 = 16777619

	// DefaultVirtualNodes is the number of ring positions hashed per
	// physical node, matching the source's VIRTUAL_NODES constant.
	DefaultVirtualNodes = 3

	// fallbackNode is returned by GetNode when the ring has no members,
	// matching the source's empty-ring sentinel.
	fallbackNode = "localhost"
)

func fnv1a(s string) uint32 {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// Ring is a consistent-hash ring over a set of named nodes. Safe for
// concurrent use: membership edits take an exclusive lock, point lookups
// a shared one, matching spec.md §5's "reader-writer lock" guidance for
// dynamic membership.
type Ring struct {
	mu           sync.RWMutex
	virtualNodes int
	positions    []uint32          // sorted
	owners       map[uint32]string // position -> physical node
	nodes        map[string]bool   // physical node set, for GetAllNodes/Contains
}

// New returns an empty ring using virtualNodes positions per physical
// node added. A non-positive virtualNodes defaults to DefaultVirtualNodes.
func New(virtualNodes int) *Ring {
	if virtualNodes <= 0 {
		virtualNodes = DefaultVirtualNodes
	}
	return &Ring{
		virtualNodes: virtualNodes,
		owners:       make(map[uint32]string),
		nodes:        make(map[string]bool),
	}
}

// AddNode registers a physical node, hashing it into virtualNodes ring
// positions. Adding a node already present first removes its existing
// positions, so re-adding is idempotent rather than doubling entries.
func (r *Ring) AddNode(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nodes[node] {
		r.removeNodeLocked(node)
	}
	r.nodes[node] = true
	for i := 0; i < r.virtualNodes; i++ {
		pos := fnv1a(virtualKey(node, i))
		if _, exists := r.owners[pos]; !exists {
			r.owners[pos] = node
			r.positions = append(r.positions, pos)
		}
	}
	sort.Slice(r.positions, func(i, j int) bool { return r.positions[i] < r.positions[j] })
}

// RemoveNode unregisters a physical node and all of its ring positions.
// Removing a node not present is a no-op.
func (r *Ring) RemoveNode(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeNodeLocked(node)
}

func (r *Ring) removeNodeLocked(node string) {
	if !r.nodes[node] {
		return
	}
	delete(r.nodes, node)
	kept := r.positions[:0]
	for _, pos := range r.positions {
		if r.owners[pos] == node {
			delete(r.owners, pos)
			continue
		}
		kept = append(kept, pos)
	}
	r.positions = kept
}

// GetNode returns the node owning key: the first ring position at or
// after hash(key), wrapping to the lowest position if key's hash exceeds
// every position (the standard consistent-hashing wraparound). An empty
// ring returns the fallback sentinel "localhost", matching the source.
func (r *Ring) GetNode(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.positions) == 0 {
		return fallbackNode
	}
	h := fnv1a(key)
	idx := sort.Search(len(r.positions), func(i int) bool { return r.positions[i] >= h })
	if idx == len(r.positions) {
		idx = 0
	}
	return r.owners[r.positions[idx]]
}

// GetAllNodes returns every physical node currently registered, in no
// particular order.
func (r *Ring) GetAllNodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.nodes))
	for n := range r.nodes {
		out = append(out, n)
	}
	return out
}

// Contains reports whether node is currently registered.
func (r *Ring) Contains(node string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes[node]
}

// Len returns the number of physical nodes registered.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

func virtualKey(node string, replica int) string {
	// "node:replica" matches add_node's inline virtual node naming
	// (HashRing.cpp: node_id + ":" + std::to_string(i)).
	buf := make([]byte, 0, len(node)+6)
	buf = append(buf, node...)
	buf = append(buf, ':')
	buf = appendInt(buf, replica)
	return string(buf)
}

func appendInt(buf []byte, n int) []byte {
	if n == 0 {
		return append(buf, '0')
	}
	start := len(buf)
	for n > 0 {
		buf = append(buf, byte('0'+n%10))
		n /= 10
	}
	// reverse the digits just appended
	for i, j := start, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}

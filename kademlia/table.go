// Package kademlia implements the DHT's routing table: XOR distance
// over 160-bit node ids, and a fixed-depth k-bucket table with
// FIFO-plus-good-node-preference admission, bounded to 8 nodes per
// bucket (at most 1,288 live nodes across its 161 buckets).
package kademlia

import (
	"math/bits"
	"net"
	"sync"
	"time"

	"github.com/RIZAmohammadkhan/Serma/model"
)

// ID is a 160-bit Kademlia node identifier.
type ID = model.InfoHash

const idBits = model.InfoHashLen * 8 // 160

// bucketSize (k) is the maximum number of entries per bucket.
const bucketSize = 8

// Node is one routing-table entry: an id reachable at addr.
type Node struct {
	ID       ID
	Addr     *net.UDPAddr
	LastSeen time.Time
	// Good is cleared when a query to this node times out and set again
	// on any reply; a bucket prefers evicting non-good nodes first.
	Good bool
}

// Distance returns the XOR distance between two ids.
func Distance(a, b ID) ID {
	var d ID
	for i := range a {
		d[i] = a[i] ^ b[i]
	}
	return d
}

// Less reports whether distance a is strictly closer than b (treating
// both as big-endian unsigned integers).
func Less(a, b ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// prefixLen returns the number of leading zero bits of id, i.e. which
// bucket it belongs in relative to a table's own id (bucket i holds
// nodes whose distance has exactly i leading zero bits).
func prefixLen(id ID) int {
	for i, b := range id {
		if b != 0 {
			return i*8 + bits.LeadingZeros8(b)
		}
	}
	return idBits
}

type bucket struct {
	nodes []Node // ordered oldest (front) to newest (back)
}

// Table is a single node's view of the DHT, as a set of k-buckets keyed
// by XOR-distance prefix length from self. All access is guarded by a
// single mutex; callers needing a stable view should use Snapshot.
type Table struct {
	self ID

	mu      sync.RWMutex
	buckets [idBits + 1]bucket
}

// NewTable returns an empty routing table centered on self.
func NewTable(self ID) *Table {
	return &Table{self: self}
}

// Self returns the table's own id.
func (t *Table) Self() ID {
	return t.self
}

func (t *Table) bucketFor(id ID) *bucket {
	return &t.buckets[prefixLen(Distance(t.self, id))]
}

// Insert admits n into its bucket. If the bucket is full, the oldest
// non-good node is evicted to make room; if every node in the bucket is
// currently good, n is dropped and Insert returns false.
func (t *Table) Insert(n Node) bool {
	if n.ID == t.self {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.bucketFor(n.ID)
	for i, existing := range b.nodes {
		if existing.ID == n.ID {
			n.Good = true
			b.nodes[i] = n
			return true
		}
	}

	n.Good = true
	if len(b.nodes) < bucketSize {
		b.nodes = append(b.nodes, n)
		return true
	}

	for i, existing := range b.nodes {
		if !existing.Good {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			b.nodes = append(b.nodes, n)
			return true
		}
	}
	return false
}

// MarkBad clears the good flag of id, making it the first eviction
// candidate next time its bucket needs room. It does not remove the
// node outright: a node that replies even once more is still useful.
func (t *Table) MarkBad(id ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.bucketFor(id)
	for i := range b.nodes {
		if b.nodes[i].ID == id {
			b.nodes[i].Good = false
			return
		}
	}
}

// Remove deletes id from the table outright.
func (t *Table) Remove(id ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.bucketFor(id)
	for i, existing := range b.nodes {
		if existing.ID == id {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			return
		}
	}
}

// Closest returns up to n nodes with ids closest to target, sorted
// nearest-first.
func (t *Table) Closest(target ID, n int) []Node {
	t.mu.RLock()
	all := make([]Node, 0, n*2)
	for i := range t.buckets {
		all = append(all, t.buckets[i].nodes...)
	}
	t.mu.RUnlock()

	sortByDistance(all, target)
	if len(all) > n {
		all = all[:n]
	}
	return all
}

func sortByDistance(nodes []Node, target ID) {
	// insertion sort: buckets keep n small (at most 1,288 nodes total,
	// 8 per bucket), so this never needs to be asymptotically clever.
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && Less(Distance(nodes[j].ID, target), Distance(nodes[j-1].ID, target)); j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

// Len returns the total number of nodes currently held.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for i := range t.buckets {
		n += len(t.buckets[i].nodes)
	}
	return n
}

// Snapshot returns a copy of every node currently in the table.
func (t *Table) Snapshot() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Node, 0, bucketSize)
	for i := range t.buckets {
		out = append(out, t.buckets[i].nodes...)
	}
	return out
}

// Package bloomfilter provides the spider's probabilistic "have I
// already queued this info-hash" filter: sized for roughly 10^7 items
// at about 1% false-positive rate, process-local, never persisted
// across restarts.
package bloomfilter

import (
	"encoding/binary"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/cespare/xxhash/v2"
)

// DefaultCapacity and DefaultFalsePositiveRate size the filter at
// roughly 12MB resident (about 95.9 million bits), enough headroom for
// the spider's de-dup filter.
const (
	DefaultCapacity         = 10_000_000
	DefaultFalsePositiveRate = 0.01
)

// Filter is a thread-safe wrapper around a bloom.BloomFilter: every
// method takes the internal mutex, so all of them are safe for
// concurrent callers.
type Filter struct {
	mu sync.Mutex
	bf *bloom.BloomFilter
}

// New returns a filter sized for n items at the given false-positive
// rate.
func New(n uint, falsePositiveRate float64) *Filter {
	return &Filter{bf: bloom.NewWithEstimates(n, falsePositiveRate)}
}

// NewDefault returns a filter sized per DefaultCapacity/DefaultFalsePositiveRate.
func NewDefault() *Filter {
	return New(DefaultCapacity, DefaultFalsePositiveRate)
}

// TestAndAdd reports whether b was probably already present, then adds
// it unconditionally. A false return means b is new with certainty; a
// true return means b was probably seen before (and may rarely be a
// false positive).
func (f *Filter) TestAndAdd(b []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bf.TestAndAdd(digest(b))
}

// Test reports whether b was probably added before, without mutating
// the filter.
func (f *Filter) Test(b []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bf.Test(digest(b))
}

// digest pre-hashes b to a fixed 8-byte xxhash sum before it reaches the
// bloom filter's own internal hashing: on the spider's receive path this
// runs on every inbound query, so collapsing the 20-byte info-hash down
// before the filter's double-hashing keeps per-packet CPU small.
func digest(b []byte) []byte {
	var out [8]byte
	binary.BigEndian.PutUint64(out[:], xxhash.Sum64(b))
	return out[:]
}

// ApproximateCount estimates the number of distinct items added so far.
func (f *Filter) ApproximateCount() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bf.ApproximatedSize()
}

// Reset clears the filter back to empty, keeping its sizing. The spider
// does not call it: the spider's filter is never cleared while the
// process runs.
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bf.ClearAll()
}

// Package bytepool pools the fixed-size receive buffers the DHT
// spider's serve loop reads UDP datagrams into, avoiding a fresh
// allocation on every packet.
package bytepool

import "sync"

// BytePool is a cached pool of equal-length, equal-capacity byte
// slices.
type BytePool struct {
	sync.Pool
	size int
}

// NewBytePool allocates a new BytePool whose slices all have the given
// length and capacity — size should cover the largest datagram a
// caller expects to read into it (KRPC packets top out well under 1500
// bytes, but a generous buffer costs little and avoids truncation).
func NewBytePool(size int) *BytePool {
	bp := &BytePool{size: size}
	bp.New = func() any {
		// This avoids allocations for the slice metadata, see:
		// https://staticcheck.io/docs/checks#SA6002
		b := make([]byte, size)
		return &b
	}
	return bp
}

// Get returns a byte slice of BytePool's configured size from the pool.
func (bp *BytePool) Get() *[]byte {
	return bp.Pool.Get().(*[]byte)
}

// Put zeroes b and returns it to the pool. A slice whose capacity
// doesn't match the pool's configured size is dropped rather than
// pooled, since New's callers assume every pooled slice is reusable as
// a full-size buffer.
func (bp *BytePool) Put(b *[]byte) {
	if cap(*b) != bp.size {
		return
	}
	*b = (*b)[:cap(*b)]

	// Zero out the bytes.
	// This specific expression is optimized by the compiler:
	// https://github.com/golang/go/issues/5373.
	for i := range *b {
		(*b)[i] = 0
	}

	bp.Pool.Put(b)
}

package dht

import (
	"net"
	"time"
	"unsafe"

	"code.cloudfoundry.org/go-diodes"

	"github.com/RIZAmohammadkhan/Serma/pkg/metrics"
)

// queuedPacket is one inbound datagram queued for dispatch.
type queuedPacket struct {
	conn net.PacketConn
	addr *net.UDPAddr
	data []byte
}

// parseQueue is the bounded, drop-oldest-on-overflow buffer between the
// UDP receive loops and the dispatcher pool: the receiver drops packets
// once the queue is full, since the protocol is best-effort.
//
// diodes.ManyToOne tolerates concurrent writers (one serve goroutine per
// cfg.Workers socket) but only a single reader; drain is that one
// reader, and it forwards every packet onto out, a buffered channel
// that the (many) dispatch workers can receive from concurrently
// without violating that contract.
type parseQueue struct {
	d    *diodes.ManyToOne
	out  chan *queuedPacket
	done chan struct{}
}

func newParseQueue(size int) *parseQueue {
	q := &parseQueue{
		d: diodes.NewManyToOne(size, diodes.AlertFunc(func(missed int) {
			if metrics.Enabled() {
				metrics.PromDHTPacketsTotal.WithLabelValues("dropped").Add(float64(missed))
			}
		})),
		out:  make(chan *queuedPacket, size),
		done: make(chan struct{}),
	}
	go q.drain()
	return q
}

func (q *parseQueue) push(p *queuedPacket) {
	q.d.Set(diodes.GenericDataType(unsafe.Pointer(p)))
}

// drain is the diode's sole reader, polling the lock-free ring at a
// short fixed interval since diodes has no native blocking wait, and
// re-publishing each packet on out for dispatch workers to share.
func (q *parseQueue) drain() {
	defer close(q.out)
	for {
		v, ok := q.d.TryNext()
		if !ok {
			select {
			case <-q.done:
				return
			case <-time.After(2 * time.Millisecond):
			}
			continue
		}
		select {
		case q.out <- (*queuedPacket)(unsafe.Pointer(v)):
		case <-q.done:
			return
		}
	}
}

// pop waits for the next packet; it returns false once closing fires.
func (q *parseQueue) pop(closing <-chan struct{}) (*queuedPacket, bool) {
	select {
	case p, ok := <-q.out:
		return p, ok
	case <-closing:
		return nil, false
	}
}

// close stops the drain goroutine. Safe to call once per parseQueue.
func (q *parseQueue) close() {
	close(q.done)
}

// Package dht implements Serma's spider: a DHT node that listens for
// BEP-5/BEP-51 traffic, maintains a Kademlia routing table,
// and harvests info-hash sightings into storage without ever
// participating as an actual peer or claiming to hold data itself.
package dht

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/libp2p/go-reuseport"
	"golang.org/x/time/rate"

	"github.com/RIZAmohammadkhan/Serma/bloomfilter"
	"github.com/RIZAmohammadkhan/Serma/kademlia"
	"github.com/RIZAmohammadkhan/Serma/krpc"
	"github.com/RIZAmohammadkhan/Serma/pkg/bytepool"
	"github.com/RIZAmohammadkhan/Serma/pkg/log"
	"github.com/RIZAmohammadkhan/Serma/pkg/metrics"
	"github.com/RIZAmohammadkhan/Serma/pkg/stop"
	"github.com/RIZAmohammadkhan/Serma/socks5"
	"github.com/RIZAmohammadkhan/Serma/storage"
)

var logger = log.NewLogger("dht")

// Spider is one running DHT node.
type Spider struct {
	cfg   Config
	table *kademlia.Table
	store storage.Store
	seen  *bloomfilter.Filter
	self  kademlia.ID

	conns    []net.PacketConn
	queue    *parseQueue
	outbound *rate.Limiter
	closing  chan struct{}
	wg       sync.WaitGroup

	txMu    sync.Mutex
	pending map[string]chan krpc.Msg
	txSeq   uint32
}

// New starts a Spider listening on cfg.BindAddr (or tunneled through
// socksCfg if non-nil), recording sightings into store.
func New(cfg Config, store storage.Store, socksCfg *socks5.Config) (*Spider, error) {
	cfg = cfg.withDefaults()

	var self kademlia.ID
	if _, err := rand.Read(self[:]); err != nil {
		return nil, fmt.Errorf("dht: generate self id: %w", err)
	}

	s := &Spider{
		cfg:     cfg,
		table:   kademlia.NewTable(self),
		store:   store,
		seen:    bloomfilter.NewDefault(),
		self:    self,
		queue:    newParseQueue(cfg.ParseQueueSize),
		outbound: rate.NewLimiter(rate.Limit(cfg.OutboundQueriesPerSecond), int(cfg.OutboundQueriesPerSecond)),
		closing:  make(chan struct{}),
		pending: make(map[string]chan krpc.Msg),
	}

	conns, err := openConns(cfg, socksCfg)
	if err != nil {
		return nil, err
	}
	s.conns = conns

	for i := 0; i < cfg.DispatchWorkers; i++ {
		s.wg.Add(1)
		go s.dispatch()
	}

	for _, conn := range s.conns {
		s.wg.Add(2)
		go s.serve(conn)
		go s.walkLoop(conn)
	}

	for _, conn := range s.conns {
		s.bootstrap(conn)
		break // one worker's socket is enough to seed the shared routing table
	}

	return s, nil
}

func openConns(cfg Config, socksCfg *socks5.Config) ([]net.PacketConn, error) {
	conns := make([]net.PacketConn, 0, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		var conn net.PacketConn
		var err error
		switch {
		case socksCfg != nil:
			var assoc *socks5.Association
			assoc, err = socks5.Associate(*socksCfg)
			if err == nil {
				conn = &socksPacketConn{assoc: assoc}
			}
		case cfg.Workers > 1:
			conn, err = reuseport.ListenPacket("udp", cfg.BindAddr)
		default:
			conn, err = net.ListenPacket("udp", cfg.BindAddr)
		}
		if err != nil {
			for _, c := range conns {
				_ = c.Close()
			}
			return nil, fmt.Errorf("dht: open listener %d: %w", i, err)
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

// Stop shuts the spider down, closing every listener and waiting for
// its goroutines to exit.
func (s *Spider) Stop() stop.Result {
	c := make(stop.Channel)
	go func() {
		close(s.closing)
		for _, conn := range s.conns {
			_ = conn.Close()
		}
		s.wg.Wait()
		s.queue.close()
		c.Done(nil)
	}()
	return c.Result()
}

// Table exposes the routing table, mainly for the enricher's lookup
// bootstrap and for diagnostics.
func (s *Spider) Table() *kademlia.Table {
	return s.table
}

// serve is the per-socket receive loop: pooled buffers and a closing
// channel checked each iteration. Raw datagrams are copied and pushed
// onto the bounded parse queue, where the dispatch workers decode them,
// rather than handled inline, so a slow or
// malicious sender can
// never block the socket read.
func (s *Spider) serve(conn net.PacketConn) {
	defer s.wg.Done()
	pool := bytepool.NewBytePool(2048)

	for {
		select {
		case <-s.closing:
			return
		default:
		}

		buf := pool.Get()
		n, addr, err := conn.ReadFrom(*buf)
		if err != nil {
			pool.Put(buf)
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return
		}
		if n == 0 {
			pool.Put(buf)
			continue
		}

		data := make([]byte, n)
		copy(data, (*buf)[:n])
		pool.Put(buf)

		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}

		s.queue.push(&queuedPacket{conn: conn, addr: udpAddr, data: data})
	}
}

// dispatch drains the parse queue; a fixed pool of these decouples
// packet arrival rate from handling cost.
func (s *Spider) dispatch() {
	defer s.wg.Done()
	for {
		p, ok := s.queue.pop(s.closing)
		if !ok {
			return
		}
		s.handlePacket(p.conn, p.addr, p.data)
	}
}

func (s *Spider) handlePacket(conn net.PacketConn, addr *net.UDPAddr, packet []byte) {
	msg, err := krpc.Decode(packet)
	if err != nil {
		s.countPacket("malformed")
		return
	}

	switch msg.Y {
	case krpc.TypeQuery:
		s.countPacket("query")
		s.admit(msg.A.ID, addr)
		s.handleQuery(conn, addr, msg)
	case krpc.TypeResponse:
		s.countPacket("response")
		if msg.R != nil {
			s.admit(msg.R.ID, addr)
		}
		s.routeReply(msg)
	case krpc.TypeError:
		s.countPacket("error")
		s.routeReply(msg)
	default:
		s.countPacket("unknown")
	}
}

func (s *Spider) countPacket(disposition string) {
	if metrics.Enabled() {
		metrics.PromDHTPacketsTotal.WithLabelValues(disposition).Inc()
	}
}

func (s *Spider) admit(id kademlia.ID, addr *net.UDPAddr) {
	if id == (kademlia.ID{}) {
		return
	}
	s.table.Insert(kademlia.Node{ID: id, Addr: addr, LastSeen: time.Now()})
}

func (s *Spider) routeReply(msg krpc.Msg) {
	s.txMu.Lock()
	ch, ok := s.pending[msg.T]
	s.txMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
	}
}

func (s *Spider) nextTransactionID() string {
	s.txMu.Lock()
	s.txSeq++
	id := s.txSeq
	s.txMu.Unlock()
	return string([]byte{byte(id >> 8), byte(id)})
}

// query sends q to addr and waits up to s.cfg.QueryTimeout for a
// correlated reply.
func (s *Spider) query(ctx context.Context, conn net.PacketConn, addr *net.UDPAddr, q krpc.Msg) (*krpc.Msg, error) {
	if err := s.outbound.Wait(ctx); err != nil {
		return nil, err
	}

	q.T = s.nextTransactionID()
	ch := make(chan krpc.Msg, 1)

	s.txMu.Lock()
	s.pending[q.T] = ch
	s.txMu.Unlock()
	defer func() {
		s.txMu.Lock()
		delete(s.pending, q.T)
		s.txMu.Unlock()
	}()

	enc, err := krpc.Encode(q)
	if err != nil {
		return nil, err
	}
	if _, err := conn.WriteTo(enc, addr); err != nil {
		return nil, err
	}

	timer := time.NewTimer(s.cfg.QueryTimeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		return &resp, nil
	case <-timer.C:
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closing:
		return nil, context.Canceled
	}
}

func randomID() kademlia.ID {
	var id kademlia.ID
	_, _ = rand.Read(id[:])
	return id
}

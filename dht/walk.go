package dht

import (
	"context"
	"net"
	"time"

	"github.com/RIZAmohammadkhan/Serma/kademlia"
	"github.com/RIZAmohammadkhan/Serma/krpc"
	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/RIZAmohammadkhan/Serma/pkg/jitter"
)

// bootstrap resolves every configured bootstrap address and sends each
// one a find_node targeting our own id, seeding the routing table from
// their replies (handled asynchronously by serve/handlePacket).
func (s *Spider) bootstrap(conn net.PacketConn) {
	for _, hostport := range s.cfg.Bootstrap {
		addr, err := net.ResolveUDPAddr("udp", hostport)
		if err != nil {
			logger.Debug().Err(err).Str("addr", hostport).Msg("resolve bootstrap node")
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.QueryTimeout)
		_, _ = s.query(ctx, conn, addr, krpc.Msg{
			Y: krpc.TypeQuery,
			Q: krpc.QueryFindNode,
			A: &krpc.Args{ID: s.self, Target: s.self},
		})
		cancel()
	}
}

// walkLoop periodically re-bootstraps (in case the table went empty)
// and probes known nodes with sample_infohashes / find_node, jittered
// so the walker's cadence isn't a clean fixed period on the wire.
func (s *Spider) walkLoop(conn net.PacketConn) {
	defer s.wg.Done()

	src := jitter.New(jitter.DefaultConfig)
	timer := time.NewTimer(src.Next(s.cfg.WalkInterval))
	defer timer.Stop()

	for {
		select {
		case <-s.closing:
			return
		case <-timer.C:
			s.walkOnce(conn)
			timer.Reset(src.Next(s.cfg.WalkInterval))
		}
	}
}

// walkOnce fans a small batch of probes out across the current
// routing table: refreshing a random bucket via find_node, and asking
// a few known nodes for fresh info-hash samples via BEP-51.
func (s *Spider) walkOnce(conn net.PacketConn) {
	nodes := s.table.Snapshot()
	if len(nodes) == 0 {
		s.bootstrap(conn)
		return
	}

	target := randomID()
	const fanout = 8
	for i, n := range nodes {
		if i >= fanout {
			break
		}
		if n.Addr == nil {
			continue
		}
		go s.probe(conn, n, target)
	}
}

// probe issues one find_node and one sample_infohashes query to n,
// marking it bad on timeout and feeding any sampled info-hashes into
// storage as fresh sightings.
func (s *Spider) probe(conn net.PacketConn, n kademlia.Node, target kademlia.ID) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	resp, err := s.query(ctx, conn, n.Addr, krpc.Msg{
		Y: krpc.TypeQuery,
		Q: krpc.QueryFindNode,
		A: &krpc.Args{ID: s.self, Target: target},
	})
	if err != nil {
		s.table.MarkBad(n.ID)
		return
	}
	if resp.R != nil && len(resp.R.Nodes) > 0 {
		nodes, err := krpc.DecodeCompactNodes(resp.R.Nodes)
		if err == nil {
			for _, ni := range nodes {
				s.table.Insert(kademlia.Node{
					ID:   ni.ID,
					Addr: &net.UDPAddr{IP: ni.IP, Port: int(ni.Port)},
				})
			}
		}
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel2()
	sampleResp, err := s.query(ctx2, conn, n.Addr, krpc.Msg{
		Y: krpc.TypeQuery,
		Q: krpc.QuerySampleInfohashes,
		A: &krpc.Args{ID: s.self, Target: randomID()},
	})
	if err != nil || sampleResp.R == nil {
		return
	}
	s.ingestSamples(sampleResp.R.Samples)
}

// ingestSamples records every 20-byte info-hash in a BEP-51
// sample_infohashes reply as a zero-seeder sighting. The peer count
// that the enricher's get_peers lookup finds is not written back to
// the record.
func (s *Spider) ingestSamples(samples []byte) {
	const ihLen = 20
	for off := 0; off+ihLen <= len(samples); off += ihLen {
		ih, err := model.NewInfoHash(samples[off : off+ihLen])
		if err != nil {
			continue
		}
		s.observeSighting(ih)
	}
}

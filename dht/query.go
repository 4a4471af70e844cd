package dht

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"net"
	"time"

	"github.com/RIZAmohammadkhan/Serma/kademlia"
	"github.com/RIZAmohammadkhan/Serma/krpc"
	"github.com/RIZAmohammadkhan/Serma/pkg/metrics"
)

// tokenSecret backs get_peers/announce_peer token generation: an HMAC
// over the requester's IP, refreshed periodically in a production node
// but kept fixed for this spider's lifetime since it never validates
// announce_peer tokens against an earlier get_peers (it accepts any
// token: this spider never claims to have peers for any info-hash, so
// token replay has no consequence here).
var tokenSecret = func() []byte {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return b[:]
}()

// handleQuery dispatches an inbound KRPC query to its responder and
// writes the reply back to addr. This spider never tracks real peers
// for any info-hash, so get_peers and sample_infohashes replies never
// populate "values" — only routing information and telemetry tokens.
func (s *Spider) handleQuery(conn net.PacketConn, addr *net.UDPAddr, msg krpc.Msg) {
	if msg.A == nil {
		return
	}

	resp := krpc.Msg{T: msg.T, Y: krpc.TypeResponse, R: &krpc.Return{ID: s.self}}

	switch msg.Q {
	case krpc.QueryPing:
		// resp.R.ID already set; nothing else to add.

	case krpc.QueryFindNode:
		resp.R.Nodes = krpc.EncodeCompactNodes(toNodeInfos(s.table.Closest(msg.A.Target, 8)))

	case krpc.QueryGetPeers:
		resp.R.Token = s.issueToken(addr)
		resp.R.Nodes = krpc.EncodeCompactNodes(toNodeInfos(s.table.Closest(msg.A.InfoHash, 8)))
		s.observeSighting(msg.A.InfoHash)

	case krpc.QueryAnnouncePeer:
		s.observeSighting(msg.A.InfoHash)

	case krpc.QuerySampleInfohashes:
		resp.R.Nodes = krpc.EncodeCompactNodes(toNodeInfos(s.table.Closest(msg.A.Target, 8)))
		resp.R.Num = 0
		resp.R.Interval = 600
		// No Samples: this spider only harvests sightings, it never
		// accumulates a set to resell to other crawlers.

	default:
		resp = krpc.Msg{T: msg.T, Y: krpc.TypeError, E: &krpc.ErrBody{Code: 204, Message: "method unknown"}}
	}

	enc, err := krpc.Encode(resp)
	if err != nil {
		logger.Debug().Err(err).Str("query", msg.Q).Msg("encode reply")
		return
	}
	_, _ = conn.WriteTo(enc, addr)
}

func (s *Spider) observeSighting(ih kademlia.ID) {
	if ih == (kademlia.ID{}) {
		return
	}
	key := ih.Bytes()
	deduped := s.seen.TestAndAdd(key)
	if metrics.Enabled() {
		metrics.PromSightingsTotal.WithLabelValues(boolLabel(deduped)).Inc()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.QueryTimeout)
	defer cancel()
	if err := s.store.UpsertSighting(ctx, ih, 0); err != nil {
		logger.Debug().Err(err).Str("info_hash", ih.String()).Msg("upsert sighting")
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// issueToken derives a get_peers token from the requester's address.
// This spider accepts any token on announce_peer (it discards would-be
// peer endpoints anyway), so the token only needs to look plausible to
// well-behaved DHT clients that validate the round-trip.
func (s *Spider) issueToken(addr *net.UDPAddr) string {
	mac := hmac.New(sha1.New, tokenSecret)
	_, _ = mac.Write(addr.IP)
	return string(mac.Sum(nil)[:8])
}

func toNodeInfos(nodes []kademlia.Node) []krpc.NodeInfo {
	out := make([]krpc.NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		if n.Addr == nil || n.Addr.IP.To4() == nil {
			continue
		}
		out = append(out, krpc.NodeInfo{ID: n.ID, IP: n.Addr.IP, Port: uint16(n.Addr.Port)})
	}
	return out
}

// queryTimeout bounds a single outbound find_node/sample_infohashes
// round-trip issued by the walker.
const queryTimeout = 5 * time.Second

package dht

import (
	"context"
	"net"
	"sort"

	"github.com/RIZAmohammadkhan/Serma/kademlia"
	"github.com/RIZAmohammadkhan/Serma/krpc"
)

// lookupAlpha is the number of closest not-yet-queried nodes picked for
// each round of an iterative lookup. The get_peers queries of a round
// are sent one after another, each waiting for its reply or timeout;
// they are not sent concurrently.
const lookupAlpha = 3

// lookupMaxQueried bounds the total number of nodes one FindPeers call
// will contact, so a lookup over a sparse table can't run forever.
const lookupMaxQueried = 50

// FindPeers runs an iterative BEP-5 get_peers lookup for ih, returning
// every compact peer endpoint collected along the way. It is used by
// the metadata enricher to locate peers holding ih's info dict; the
// spider itself never calls this (it only answers get_peers, it never
// issues them on its own initiative).
func (s *Spider) FindPeers(ctx context.Context, ih kademlia.ID) ([]*net.UDPAddr, error) {
	if len(s.conns) == 0 {
		return nil, context.Canceled
	}
	conn := s.conns[0]

	queried := make(map[kademlia.ID]bool)
	var peers []*net.UDPAddr

	frontier := s.table.Closest(ih, lookupAlpha*2)
	if len(frontier) == 0 {
		return nil, nil
	}

	for round := 0; len(queried) < lookupMaxQueried; round++ {
		batch := pickUnqueried(frontier, queried, ih, min(lookupAlpha, lookupMaxQueried-len(queried)))
		if len(batch) == 0 {
			break
		}

		progressed := false
		for _, n := range batch {
			queried[n.ID] = true
			select {
			case <-ctx.Done():
				return peers, ctx.Err()
			default:
			}

			resp, err := s.query(ctx, conn, n.Addr, krpc.Msg{
				Y: krpc.TypeQuery,
				Q: krpc.QueryGetPeers,
				A: &krpc.Args{ID: s.self, InfoHash: ih},
			})
			if err != nil || resp.R == nil {
				s.table.MarkBad(n.ID)
				continue
			}
			progressed = true

			for _, v := range resp.R.Values {
				ip, port, err := krpc.DecodeCompactPeer(v)
				if err != nil {
					continue
				}
				peers = append(peers, &net.UDPAddr{IP: ip, Port: int(port)})
			}

			if len(resp.R.Nodes) > 0 {
				nodes, err := krpc.DecodeCompactNodes(resp.R.Nodes)
				if err == nil {
					for _, ni := range nodes {
						frontier = append(frontier, kademlia.Node{
							ID:   ni.ID,
							Addr: &net.UDPAddr{IP: ni.IP, Port: int(ni.Port)},
						})
					}
				}
			}
		}
		if !progressed {
			break
		}
	}

	return peers, nil
}

func pickUnqueried(nodes []kademlia.Node, queried map[kademlia.ID]bool, target kademlia.ID, n int) []kademlia.Node {
	sort.Slice(nodes, func(i, j int) bool {
		return kademlia.Less(kademlia.Distance(nodes[i].ID, target), kademlia.Distance(nodes[j].ID, target))
	})
	out := make([]kademlia.Node, 0, n)
	for _, node := range nodes {
		if queried[node.ID] || node.Addr == nil {
			continue
		}
		out = append(out, node)
		if len(out) == n {
			break
		}
	}
	return out
}

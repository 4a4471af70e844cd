package krpc

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/RIZAmohammadkhan/Serma/model"
)

// NodeInfo is one entry of a find_node/get_peers "nodes" response: an
// id paired with the IPv4 address and port to contact it on.
type NodeInfo struct {
	ID   ID
	IP   net.IP
	Port uint16
}

const compactNodeLen = model.InfoHashLen + 4 + 2 // 26
const compactPeerLen = 4 + 2                     // 6

// EncodeCompactNodes concatenates nodes into BEP-5's compact node-info
// form: 26 bytes each (20-byte id, 4-byte IPv4, 2-byte big-endian port).
func EncodeCompactNodes(nodes []NodeInfo) []byte {
	out := make([]byte, 0, len(nodes)*compactNodeLen)
	for _, n := range nodes {
		ip4 := n.IP.To4()
		if ip4 == nil {
			continue // IPv6 has no place in the compact IPv4 form
		}
		out = append(out, n.ID.Bytes()...)
		out = append(out, ip4...)
		out = binary.BigEndian.AppendUint16(out, n.Port)
	}
	return out
}

// DecodeCompactNodes parses the compact node-info form produced by
// EncodeCompactNodes, skipping any trailing partial entry.
func DecodeCompactNodes(b []byte) ([]NodeInfo, error) {
	n := len(b) / compactNodeLen
	out := make([]NodeInfo, 0, n)
	for i := 0; i < n; i++ {
		e := b[i*compactNodeLen : (i+1)*compactNodeLen]
		id, err := model.NewInfoHash(e[:model.InfoHashLen])
		if err != nil {
			return nil, fmt.Errorf("krpc: compact node %d: %w", i, err)
		}
		ip := net.IP(append([]byte(nil), e[model.InfoHashLen:model.InfoHashLen+4]...))
		port := binary.BigEndian.Uint16(e[model.InfoHashLen+4:])
		out = append(out, NodeInfo{ID: id, IP: ip, Port: port})
	}
	return out, nil
}

// EncodeCompactPeer packs an IPv4 peer endpoint into BEP-3's 6-byte
// compact form.
func EncodeCompactPeer(ip net.IP, port uint16) (string, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return "", fmt.Errorf("krpc: not an IPv4 address: %s", ip)
	}
	b := make([]byte, 0, compactPeerLen)
	b = append(b, ip4...)
	b = binary.BigEndian.AppendUint16(b, port)
	return string(b), nil
}

// DecodeCompactPeer unpacks one 6-byte compact peer endpoint.
func DecodeCompactPeer(s string) (net.IP, uint16, error) {
	b := []byte(s)
	if len(b) != compactPeerLen {
		return nil, 0, fmt.Errorf("krpc: compact peer must be %d bytes, got %d", compactPeerLen, len(b))
	}
	ip := net.IP(append([]byte(nil), b[:4]...))
	port := binary.BigEndian.Uint16(b[4:])
	return ip, port, nil
}

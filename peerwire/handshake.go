// Package peerwire implements the BitTorrent peer wire protocol surface
// Serma's enricher needs: the BEP-3 handshake, the BEP-10 extension
// handshake, and BEP-9 ut_metadata piece exchange. It does not
// implement piece transfer for file data — Serma only ever fetches the
// info dictionary.
package peerwire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/RIZAmohammadkhan/Serma/model"
)

const protocolName = "BitTorrent protocol"

// reserved byte 5, bit 0x10 advertises BEP-10 extension protocol support.
const extensionProtocolBit = 0x10

// reserved byte 7, bit 0x01 advertises BEP-5 DHT support.
const dhtProtocolBit = 0x01

// ErrInfoHashMismatch is returned when a peer's handshake echoes a
// different info-hash than the one requested.
var ErrInfoHashMismatch = errors.New("peerwire: peer handshake info-hash mismatch")

// PeerID is the 20-byte self-identification sent in every handshake.
type PeerID [20]byte

// NewPeerID builds an Azureus-style peer id with the given two-letter
// client tag, e.g. "SM" for Serma.
func NewPeerID(tag string, seed int64) PeerID {
	var id PeerID
	copy(id[:], fmt.Sprintf("-%s0001-", tag))
	for i := 8; i < 20; i++ {
		seed = seed*1103515245 + 12345
		id[i] = byte(seed >> 16)
	}
	return id
}

// Handshake performs the BEP-3 handshake over conn: send our own, then
// read and validate the peer's. It returns the peer's reserved bytes
// (to check BEP-10 support) and peer id.
func Handshake(conn net.Conn, deadline time.Time, ih model.InfoHash, self PeerID) (reserved [8]byte, peerID PeerID, err error) {
	if err = conn.SetDeadline(deadline); err != nil {
		return reserved, peerID, err
	}

	out := make([]byte, 0, 68)
	out = append(out, byte(len(protocolName)))
	out = append(out, protocolName...)
	out = append(out, 0, 0, 0, 0, 0, extensionProtocolBit, 0, dhtProtocolBit)
	out = append(out, ih.Bytes()...)
	out = append(out, self[:]...)
	if _, err = conn.Write(out); err != nil {
		return reserved, peerID, fmt.Errorf("peerwire: send handshake: %w", err)
	}

	head := make([]byte, 68)
	if _, err = io.ReadFull(conn, head); err != nil {
		return reserved, peerID, fmt.Errorf("peerwire: read handshake: %w", err)
	}
	if int(head[0]) != len(protocolName) || !bytes.Equal(head[1:1+len(protocolName)], []byte(protocolName)) {
		return reserved, peerID, errors.New("peerwire: unrecognized protocol in handshake")
	}
	copy(reserved[:], head[20:28])
	gotIH, err := model.NewInfoHash(head[28:48])
	if err != nil {
		return reserved, peerID, err
	}
	if gotIH != ih {
		return reserved, peerID, ErrInfoHashMismatch
	}
	copy(peerID[:], head[48:68])
	return reserved, peerID, nil
}

// SupportsExtensions reports whether reserved (as returned by Handshake)
// advertises BEP-10 support.
func SupportsExtensions(reserved [8]byte) bool {
	return reserved[5]&extensionProtocolBit != 0
}

package enrich

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/RIZAmohammadkhan/Serma/peerwire"
)

// clientVersion is what this enricher advertises in its BEP-10 extended
// handshake; cosmetic, but conventionally identifies the client.
const clientVersion = "Serma"

var errNoUTMetadataPeer = errors.New("enrich: peer does not advertise ut_metadata")

// attemptPeer drives one full peer-wire exchange against addr: TCP
// connect, BitTorrent handshake, BEP-10 extended handshake, then the
// BEP-9 metadata piece loop. Returns the verified-size (not yet
// hash-verified; storage.StoreMetadata does that) info dict bytes.
func (e *Enricher) attemptPeer(ctx context.Context, ih model.InfoHash, addr *net.TCPAddr) ([]byte, error) {
	dialer := net.Dialer{Timeout: e.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, fmt.Errorf("enrich: dial %s: %w", addr, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	self := peerwire.NewPeerID("SM", time.Now().UnixNano())

	reserved, _, err := peerwire.Handshake(conn, time.Now().Add(e.cfg.HandshakeTimeout), ih, self)
	if err != nil {
		return nil, fmt.Errorf("enrich: handshake %s: %w", addr, err)
	}
	if !peerwire.SupportsExtensions(reserved) {
		return nil, fmt.Errorf("enrich: peer %s lacks extension support", addr)
	}

	if err := conn.SetDeadline(time.Now().Add(e.cfg.HandshakeTimeout)); err != nil {
		return nil, err
	}
	if err := peerwire.SendExtendedHandshake(conn, clientVersion); err != nil {
		return nil, fmt.Errorf("enrich: send extended handshake %s: %w", addr, err)
	}
	hs, err := peerwire.ReadExtendedHandshake(conn)
	if err != nil {
		return nil, fmt.Errorf("enrich: read extended handshake %s: %w", addr, err)
	}
	peerUTID, ok := hs.M["ut_metadata"]
	if !ok {
		return nil, errNoUTMetadataPeer
	}
	if hs.MetadataSize <= 0 {
		return nil, fmt.Errorf("enrich: peer %s has no metadata yet", addr)
	}

	infoDict, err := peerwire.FetchMetadata(conn, peerUTID, hs.MetadataSize, e.cfg.PerPieceTimeout)
	if err != nil {
		return nil, fmt.Errorf("enrich: fetch metadata from %s: %w", addr, err)
	}
	return infoDict, nil
}

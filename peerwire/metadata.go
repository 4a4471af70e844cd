package peerwire

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/RIZAmohammadkhan/Serma/bencode"
)

// metadataPieceSize is BEP-9's fixed piece size; only the final piece of
// a metadata blob may be shorter.
const metadataPieceSize = 16384

// ut_metadata message types (BEP-9 §3).
const (
	utMetadataRequest = 0
	utMetadataData    = 1
	utMetadataReject  = 2
)

// ExtHandshake is the BEP-10 extended handshake payload this client
// cares about: the peer's declared extension id map and, if it supports
// ut_metadata, the total metadata size.
type ExtHandshake struct {
	M            map[string]int64 `bencode:"m"`
	MetadataSize int64            `bencode:"metadata_size,omitempty"`
	V            string           `bencode:"v,omitempty"`
}

type utMetadataMsg struct {
	MsgType   int64 `bencode:"msg_type"`
	Piece     int64 `bencode:"piece"`
	TotalSize int64 `bencode:"total_size,omitempty"`
}

var (
	// ErrRejected is returned when a peer explicitly rejects a piece request.
	ErrRejected = errors.New("peerwire: peer rejected metadata piece request")
	// ErrNoUTMetadata describes a peer whose extended handshake does not
	// advertise ut_metadata support; no function in this package returns it.
	ErrNoUTMetadata = errors.New("peerwire: peer does not support ut_metadata")
	// ErrMetadataTooLarge guards against a hostile metadata_size value.
	ErrMetadataTooLarge = errors.New("peerwire: advertised metadata_size exceeds limit")
)

// maxMetadataSize bounds how much memory a single fetch will allocate.
const maxMetadataSize = 10 << 20

// utMetadataExtensionName is the key BEP-9 peers register their local
// ut_metadata message id under in the extended handshake's "m" dict.
const utMetadataExtensionName = "ut_metadata"

// ourUTMetadataID is the id we advertise for ut_metadata in our own
// extended handshake; the peer addresses requests to us using it.
const ourUTMetadataID = 1

// SendExtendedHandshake sends our BEP-10 extended handshake, advertising
// ut_metadata support under ourUTMetadataID.
func SendExtendedHandshake(conn net.Conn, clientVersion string) error {
	body, err := bencode.Marshal(map[string]any{
		"m": map[string]any{utMetadataExtensionName: int64(ourUTMetadataID)},
		"v": clientVersion,
	})
	if err != nil {
		return err
	}
	payload := append([]byte{0}, body...)
	return WriteMessage(conn, Message{ID: MsgExtended, Payload: payload})
}

// ReadExtendedHandshake blocks until the peer's extended handshake
// arrives, skipping any other extended messages received first.
func ReadExtendedHandshake(conn net.Conn) (*ExtHandshake, error) {
	for {
		msg, err := ReadMessage(conn)
		if err != nil {
			return nil, err
		}
		if msg.ID != MsgExtended || len(msg.Payload) == 0 || msg.Payload[0] != 0 {
			continue
		}
		var hs ExtHandshake
		if err := bencode.Unmarshal(msg.Payload[1:], &hs); err != nil {
			return nil, fmt.Errorf("peerwire: decode extended handshake: %w", err)
		}
		if hs.MetadataSize > maxMetadataSize {
			return nil, ErrMetadataTooLarge
		}
		return &hs, nil
	}
}

// FetchMetadata drives the BEP-9 piece request loop to completion,
// assuming the extended handshake has already been exchanged. peerUTID
// is the peer's own advertised id for ut_metadata (from its handshake's
// M map); size is its declared metadata_size.
func FetchMetadata(conn net.Conn, peerUTID int64, size int64, perPieceTimeout time.Duration) ([]byte, error) {
	if size <= 0 || size > maxMetadataSize {
		return nil, ErrMetadataTooLarge
	}
	numPieces := int((size + metadataPieceSize - 1) / metadataPieceSize)
	buf := make([]byte, size)

	for piece := 0; piece < numPieces; piece++ {
		if err := requestPiece(conn, peerUTID, piece); err != nil {
			return nil, err
		}
		if err := conn.SetReadDeadline(time.Now().Add(perPieceTimeout)); err != nil {
			return nil, err
		}
		if err := awaitPiece(conn, peerUTID, piece, buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func requestPiece(conn net.Conn, peerUTID int64, piece int) error {
	body, err := bencode.Marshal(utMetadataMsg{MsgType: utMetadataRequest, Piece: int64(piece)})
	if err != nil {
		return err
	}
	payload := append([]byte{byte(peerUTID)}, body...)
	return WriteMessage(conn, Message{ID: MsgExtended, Payload: payload})
}

// awaitPiece reads extended messages until it sees the reply for piece,
// ignoring unrelated extended traffic (e.g. a duplicate handshake or a
// PEX message on a different extension id). The peer addresses its
// replies to us with ourUTMetadataID, so that is the id matched here.
func awaitPiece(conn net.Conn, peerUTID int64, piece int, buf []byte) error {
	for {
		msg, err := ReadMessage(conn)
		if err != nil {
			return fmt.Errorf("peerwire: read piece %d: %w", piece, err)
		}
		if msg.ID != MsgExtended || len(msg.Payload) == 0 || msg.Payload[0] != ourUTMetadataID {
			continue
		}

		d := bencode.NewDecoder(msg.Payload[1:])
		val, err := d.DecodeValue()
		if err != nil {
			return fmt.Errorf("peerwire: decode ut_metadata message: %w", err)
		}
		fields, ok := val.(map[string]any)
		if !ok {
			return errors.New("peerwire: ut_metadata message is not a dict")
		}

		gotPiece, _ := fields["piece"].(int64)
		if int(gotPiece) != piece {
			continue // stale reply for a piece we already have; keep waiting
		}

		msgType, _ := fields["msg_type"].(int64)
		switch msgType {
		case utMetadataData:
			data := d.Remaining()
			start := piece * metadataPieceSize
			end := start + len(data)
			if end > len(buf) {
				return errors.New("peerwire: metadata piece overruns declared size")
			}
			copy(buf[start:end], data)
			return nil
		case utMetadataReject:
			return ErrRejected
		default:
			continue
		}
	}
}

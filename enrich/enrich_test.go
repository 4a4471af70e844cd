package enrich

import (
	"context"
	"crypto/sha1"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RIZAmohammadkhan/Serma/bencode"
	"github.com/RIZAmohammadkhan/Serma/model"
	"github.com/RIZAmohammadkhan/Serma/peerwire"
	"github.com/RIZAmohammadkhan/Serma/storage"
)

type staticFinder struct {
	peers []*net.UDPAddr
	err   error
}

func (f staticFinder) FindPeers(ctx context.Context, ih model.InfoHash) ([]*net.UDPAddr, error) {
	return f.peers, f.err
}

// fakePeer speaks just enough peer-wire protocol to hand over a fixed
// info dict once: handshake, extended handshake, one metadata piece.
func fakePeer(t *testing.T, ih model.InfoHash, infoDict []byte) *net.TCPAddr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		_, _, err = peerwire.Handshake(conn, time.Now().Add(5*time.Second), ih, peerwire.NewPeerID("TT", 7))
		if err != nil {
			return
		}
		// Hand-built extended handshake: the enricher needs metadata_size
		// from a serving peer, which SendExtendedHandshake does not send.
		hsBody, _ := bencode.Marshal(map[string]any{
			"m":             map[string]any{"ut_metadata": int64(2)},
			"metadata_size": int64(len(infoDict)),
		})
		if err := peerwire.WriteMessage(conn, peerwire.Message{ID: peerwire.MsgExtended, Payload: append([]byte{0}, hsBody...)}); err != nil {
			return
		}
		hs, err := peerwire.ReadExtendedHandshake(conn)
		if err != nil {
			return
		}
		peerUTID := hs.M["ut_metadata"]

		msg, err := peerwire.ReadMessage(conn)
		if err != nil || msg.ID != peerwire.MsgExtended {
			return
		}

		reply, _ := bencode.Marshal(struct {
			MsgType   int64 `bencode:"msg_type"`
			Piece     int64 `bencode:"piece"`
			TotalSize int64 `bencode:"total_size"`
		}{MsgType: 1, Piece: 0, TotalSize: int64(len(infoDict))})
		payload := append([]byte{byte(peerUTID)}, reply...)
		payload = append(payload, infoDict...)
		_ = peerwire.WriteMessage(conn, peerwire.Message{ID: peerwire.MsgExtended, Payload: payload})
	}()

	return ln.Addr().(*net.TCPAddr)
}

func buildInfoDict(t *testing.T, name string) ([]byte, model.InfoHash) {
	t.Helper()
	d := map[string]any{"name": name, "length": int64(2048)}
	enc, err := bencode.Marshal(d)
	require.NoError(t, err)
	sum := sha1.Sum(enc)
	ih, err := model.NewInfoHash(sum[:])
	require.NoError(t, err)
	return enc, ih
}

func TestEnrichOneSucceedsAgainstFakePeer(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(storage.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Stop().Err()) })

	infoDict, ih := buildInfoDict(t, "enrich-me")
	require.NoError(t, store.UpsertSighting(ctx, ih, 3))

	peerAddr := fakePeer(t, ih, infoDict)
	finder := staticFinder{peers: []*net.UDPAddr{{IP: peerAddr.IP, Port: peerAddr.Port}}}

	e := New(Config{
		DialTimeout:      2 * time.Second,
		HandshakeTimeout: 2 * time.Second,
		PerPieceTimeout:  2 * time.Second,
		TransferTimeout:  5 * time.Second,
		LookupTimeout:    2 * time.Second,
	}, store, finder)

	e.enrichOne(ctx, ih)

	rec, err := store.Get(ctx, ih)
	require.NoError(t, err)
	require.True(t, rec.HasMetadata())
	require.Equal(t, "enrich-me", *rec.Title)
}

func TestEnrichOneRecordsFailureWhenNoPeersFound(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(storage.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Stop().Err()) })

	_, ih := buildInfoDict(t, "no-peers")
	require.NoError(t, store.UpsertSighting(ctx, ih, 1))

	e := New(Config{LookupTimeout: time.Second}, store, staticFinder{})
	e.enrichOne(ctx, ih)

	rec, err := store.Get(ctx, ih)
	require.NoError(t, err)
	require.False(t, rec.HasMetadata())
	require.EqualValues(t, 1, rec.EnrichFailures)
}

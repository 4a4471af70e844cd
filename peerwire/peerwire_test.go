package peerwire

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RIZAmohammadkhan/Serma/bencode"
	"github.com/RIZAmohammadkhan/Serma/model"
)

// tcpPair returns both ends of a loopback TCP connection. Handshake
// writes its 68 bytes before reading the peer's, so both ends need a
// buffered transport; over net.Pipe the two writes would block each other.
func tcpPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()
	a, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	b := <-accepted
	require.NotNil(t, b)
	return a, b
}

func TestHandshakeRoundTrip(t *testing.T) {
	a, b := tcpPair(t)
	defer a.Close()
	defer b.Close()

	ih, err := model.ParseInfoHashHex(strings.Repeat("ab", 20))
	require.NoError(t, err)
	selfA := NewPeerID("SM", 1)
	selfB := NewPeerID("SM", 2)

	done := make(chan error, 1)
	go func() {
		_, _, err := Handshake(b, time.Now().Add(time.Second), ih, selfB)
		done <- err
	}()

	reserved, peerID, err := Handshake(a, time.Now().Add(time.Second), ih, selfA)
	require.NoError(t, err)
	require.NoError(t, <-done)
	require.Equal(t, selfB, peerID)
	require.True(t, SupportsExtensions(reserved))
}

func TestHandshakeRejectsInfoHashMismatch(t *testing.T) {
	a, b := tcpPair(t)
	defer a.Close()
	defer b.Close()

	ihA, _ := model.ParseInfoHashHex(strings.Repeat("aa", 20))
	ihB, _ := model.ParseInfoHashHex(strings.Repeat("bb", 20))

	go func() {
		_, _, _ = Handshake(b, time.Now().Add(time.Second), ihB, NewPeerID("SM", 2))
	}()

	_, _, err := Handshake(a, time.Now().Add(time.Second), ihA, NewPeerID("SM", 1))
	require.ErrorIs(t, err, ErrInfoHashMismatch)
}

func TestMessageFramingRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		_ = WriteMessage(a, Message{ID: MsgBitfield, Payload: []byte{0xFF, 0x00}})
	}()

	msg, err := ReadMessage(b)
	require.NoError(t, err)
	require.Equal(t, MsgBitfield, msg.ID)
	require.Equal(t, []byte{0xFF, 0x00}, msg.Payload)
}

func TestFetchMetadataSinglePiece(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	metadata := []byte("d4:name5:helloe")

	go func() {
		msg, err := ReadMessage(b)
		require.NoError(t, err)
		require.Equal(t, MsgExtended, msg.ID)

		d := bencode.NewDecoder(msg.Payload[1:])
		val, err := d.DecodeValue()
		require.NoError(t, err)
		fields := val.(map[string]any)
		require.EqualValues(t, utMetadataRequest, fields["msg_type"])
		require.EqualValues(t, 0, fields["piece"])

		reply, err := bencode.Marshal(utMetadataMsg{MsgType: utMetadataData, Piece: 0, TotalSize: int64(len(metadata))})
		require.NoError(t, err)
		payload := append([]byte{byte(ourUTMetadataID)}, reply...)
		payload = append(payload, metadata...)
		require.NoError(t, WriteMessage(b, Message{ID: MsgExtended, Payload: payload}))
	}()

	got, err := FetchMetadata(a, ourUTMetadataID, int64(len(metadata)), time.Second)
	require.NoError(t, err)
	require.Equal(t, metadata, got)
}

func TestFetchMetadataHonorsReject(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		_, _ = ReadMessage(b)
		reply, _ := bencode.Marshal(utMetadataMsg{MsgType: utMetadataReject, Piece: 0})
		payload := append([]byte{byte(ourUTMetadataID)}, reply...)
		_ = WriteMessage(b, Message{ID: MsgExtended, Payload: payload})
	}()

	_, err := FetchMetadata(a, ourUTMetadataID, 100, time.Second)
	require.ErrorIs(t, err, ErrRejected)
}

package socks5

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapUnwrapDatagramRoundTrip(t *testing.T) {
	dst := &net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 6881}
	payload := []byte("hello dht")

	pkt, err := WrapDatagram(dst, payload)
	require.NoError(t, err)

	gotAddr, gotPayload, err := UnwrapDatagram(pkt)
	require.NoError(t, err)
	require.Equal(t, payload, gotPayload)
	require.True(t, gotAddr.IP.Equal(dst.IP))
	require.Equal(t, dst.Port, gotAddr.Port)
}

func TestUnwrapDatagramRejectsFragmented(t *testing.T) {
	pkt := []byte{0x00, 0x00, 0x01, atypIPv4, 1, 2, 3, 4, 0, 0}
	_, _, err := UnwrapDatagram(pkt)
	require.Error(t, err)
}

func TestUnwrapDatagramRejectsTruncated(t *testing.T) {
	_, _, err := UnwrapDatagram([]byte{0x00, 0x00})
	require.Error(t, err)
}

// fakeSOCKS5Server emulates just enough of RFC 1928 (no-auth, UDP
// ASSOCIATE) to exercise Associate end to end.
func fakeSOCKS5Server(t *testing.T, relay *net.UDPAddr) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		greeting := make([]byte, 2)
		if _, err := conn.Read(greeting); err != nil {
			return
		}
		nMethods := int(greeting[1])
		methods := make([]byte, nMethods)
		_, _ = conn.Read(methods)
		_, _ = conn.Write([]byte{socksVersion5, methodNoAuth})

		req := make([]byte, 10)
		if _, err := conn.Read(req); err != nil {
			return
		}
		ip4 := relay.IP.To4()
		reply := []byte{socksVersion5, repSucceeded, 0x00, atypIPv4}
		reply = append(reply, ip4...)
		reply = append(reply, byte(relay.Port>>8), byte(relay.Port))
		_, _ = conn.Write(reply)

		// Keep the control connection open until the test closes it.
		buf := make([]byte, 1)
		_, _ = conn.Read(buf)
	}()

	return ln
}

func TestAssociateHandshake(t *testing.T) {
	relayConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer relayConn.Close()
	relayAddr := relayConn.LocalAddr().(*net.UDPAddr)

	ln := fakeSOCKS5Server(t, relayAddr)
	defer ln.Close()

	assoc, err := Associate(Config{Addr: ln.Addr().String()})
	require.NoError(t, err)
	defer assoc.Close()

	require.Equal(t, relayAddr.Port, assoc.relay.Port)
}

package dht

import (
	"fmt"
	"net"
	"time"

	"github.com/RIZAmohammadkhan/Serma/socks5"
)

// socksPacketConn adapts a socks5.Association to net.PacketConn so the
// spider's serve loop can treat a SOCKS5-tunneled session identically to
// a direct UDP socket.
type socksPacketConn struct {
	assoc *socks5.Association
}

func (c *socksPacketConn) ReadFrom(p []byte) (int, net.Addr, error) {
	src, n, err := c.assoc.ReceiveInto(p)
	return n, src, err
}

func (c *socksPacketConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return 0, fmt.Errorf("dht: socks5 transport requires a *net.UDPAddr destination, got %T", addr)
	}
	if err := c.assoc.SendTo(udpAddr, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *socksPacketConn) Close() error {
	return c.assoc.Close()
}

func (c *socksPacketConn) LocalAddr() net.Addr {
	return c.assoc.LocalUDPConn().LocalAddr()
}

func (c *socksPacketConn) SetDeadline(t time.Time) error {
	return c.assoc.LocalUDPConn().SetDeadline(t)
}

func (c *socksPacketConn) SetReadDeadline(t time.Time) error {
	return c.assoc.LocalUDPConn().SetReadDeadline(t)
}

func (c *socksPacketConn) SetWriteDeadline(t time.Time) error {
	return c.assoc.LocalUDPConn().SetWriteDeadline(t)
}

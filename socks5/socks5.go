// Package socks5 tunnels the spider's DHT UDP traffic through a SOCKS5
// proxy. NewStreamDialer builds a tunneled TCP dialer on
// golang.org/x/net/proxy, but the enricher's peer-wire connections do
// not use it and are dialed directly. The UDP ASSOCIATE flow has no ecosystem
// client worth depending on (x/net/proxy only implements CONNECT) and
// is hand-written against RFC 1928 here.
package socks5

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"golang.org/x/net/proxy"
)

// Config names the upstream SOCKS5 proxy and optional credentials.
type Config struct {
	Addr     string
	Username string
	Password string
}

func (cfg Config) auth() *proxy.Auth {
	if cfg.Username == "" {
		return nil
	}
	return &proxy.Auth{User: cfg.Username, Password: cfg.Password}
}

// NewStreamDialer returns a dialer for outbound TCP connections (peer
// handshakes) tunneled through the proxy.
func NewStreamDialer(cfg Config) (proxy.Dialer, error) {
	return proxy.SOCKS5("tcp", cfg.Addr, cfg.auth(), proxy.Direct)
}

const (
	socksVersion5  = 0x05
	authVersion1   = 0x01
	methodNoAuth   = 0x00
	methodUserPass = 0x02
	methodNone     = 0xFF

	cmdUDPAssociate = 0x03

	atypIPv4   = 0x01
	atypDomain = 0x03
	atypIPv6   = 0x04

	repSucceeded = 0x00
)

var errNoAcceptableAuthMethod = errors.New("socks5: proxy did not accept any offered auth method")

// Association is a live SOCKS5 UDP ASSOCIATE session: a control TCP
// connection (which must stay open for the relay to remain valid) and
// the UDP socket used to exchange relayed datagrams.
type Association struct {
	ctrl  net.Conn
	relay *net.UDPAddr
	conn  *net.UDPConn
}

// Associate performs the RFC 1928 handshake and UDP ASSOCIATE request,
// returning a ready-to-use relayed UDP session.
func Associate(cfg Config) (*Association, error) {
	ctrl, err := net.Dial("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("socks5: dial proxy: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			_ = ctrl.Close()
		}
	}()

	r := bufio.NewReader(ctrl)
	if err := greet(ctrl, r, cfg); err != nil {
		return nil, err
	}

	relay, err := requestUDPAssociate(ctrl, r)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("socks5: open local udp socket: %w", err)
	}

	ok = true
	return &Association{ctrl: ctrl, relay: relay, conn: conn}, nil
}

func greet(w net.Conn, r *bufio.Reader, cfg Config) error {
	methods := []byte{methodNoAuth}
	if cfg.Username != "" {
		methods = []byte{methodNoAuth, methodUserPass}
	}

	req := make([]byte, 0, 2+len(methods))
	req = append(req, socksVersion5, byte(len(methods)))
	req = append(req, methods...)
	if _, err := w.Write(req); err != nil {
		return fmt.Errorf("socks5: send greeting: %w", err)
	}

	reply := make([]byte, 2)
	if _, err := readFull(r, reply); err != nil {
		return fmt.Errorf("socks5: read greeting reply: %w", err)
	}
	if reply[0] != socksVersion5 {
		return fmt.Errorf("socks5: unexpected version %d in greeting reply", reply[0])
	}

	switch reply[1] {
	case methodNoAuth:
		return nil
	case methodUserPass:
		return authenticate(w, r, cfg)
	case methodNone:
		return errNoAcceptableAuthMethod
	default:
		return fmt.Errorf("socks5: proxy selected unsupported method %d", reply[1])
	}
}

func authenticate(w net.Conn, r *bufio.Reader, cfg Config) error {
	req := make([]byte, 0, 3+len(cfg.Username)+len(cfg.Password))
	req = append(req, authVersion1, byte(len(cfg.Username)))
	req = append(req, cfg.Username...)
	req = append(req, byte(len(cfg.Password)))
	req = append(req, cfg.Password...)
	if _, err := w.Write(req); err != nil {
		return fmt.Errorf("socks5: send auth: %w", err)
	}

	reply := make([]byte, 2)
	if _, err := readFull(r, reply); err != nil {
		return fmt.Errorf("socks5: read auth reply: %w", err)
	}
	if reply[1] != repSucceeded {
		return fmt.Errorf("socks5: authentication failed, status %d", reply[1])
	}
	return nil
}

func requestUDPAssociate(w net.Conn, r *bufio.Reader) (*net.UDPAddr, error) {
	// Client-side address is 0.0.0.0:0: "let the proxy pick", per RFC 1928 §6.
	req := []byte{socksVersion5, cmdUDPAssociate, 0x00, atypIPv4, 0, 0, 0, 0, 0, 0}
	if _, err := w.Write(req); err != nil {
		return nil, fmt.Errorf("socks5: send udp associate request: %w", err)
	}

	head := make([]byte, 4)
	if _, err := readFull(r, head); err != nil {
		return nil, fmt.Errorf("socks5: read associate reply header: %w", err)
	}
	if head[0] != socksVersion5 {
		return nil, fmt.Errorf("socks5: unexpected version %d in associate reply", head[0])
	}
	if head[1] != repSucceeded {
		return nil, fmt.Errorf("socks5: udp associate refused, reply code %d", head[1])
	}

	ip, err := readBoundAddr(r, head[3])
	if err != nil {
		return nil, err
	}
	portBytes := make([]byte, 2)
	if _, err := readFull(r, portBytes); err != nil {
		return nil, fmt.Errorf("socks5: read bound port: %w", err)
	}
	return &net.UDPAddr{IP: ip, Port: int(binary.BigEndian.Uint16(portBytes))}, nil
}

func readBoundAddr(r *bufio.Reader, atyp byte) (net.IP, error) {
	switch atyp {
	case atypIPv4:
		b := make([]byte, 4)
		if _, err := readFull(r, b); err != nil {
			return nil, err
		}
		return net.IP(b), nil
	case atypIPv6:
		b := make([]byte, 16)
		if _, err := readFull(r, b); err != nil {
			return nil, err
		}
		return net.IP(b), nil
	case atypDomain:
		lenByte := make([]byte, 1)
		if _, err := readFull(r, lenByte); err != nil {
			return nil, err
		}
		b := make([]byte, lenByte[0])
		if _, err := readFull(r, b); err != nil {
			return nil, err
		}
		ips, err := net.LookupIP(string(b))
		if err != nil || len(ips) == 0 {
			return nil, fmt.Errorf("socks5: resolve bound domain %q: %w", b, err)
		}
		return ips[0], nil
	default:
		return nil, fmt.Errorf("socks5: unsupported address type %d", atyp)
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		k, err := r.Read(buf[n:])
		n += k
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Close tears down both the UDP socket and the control connection; the
// relay stops working the instant the control connection closes.
func (a *Association) Close() error {
	uerr := a.conn.Close()
	cerr := a.ctrl.Close()
	if uerr != nil {
		return uerr
	}
	return cerr
}

// LocalUDPConn exposes the raw local socket for callers that want to
// drive their own read loop via ReadFrom/WriteTo plus
// Wrap/UnwrapDatagram directly.
func (a *Association) LocalUDPConn() *net.UDPConn {
	return a.conn
}

// SendTo wraps payload in the SOCKS5 UDP relay header addressed to dst
// and writes it to the relay.
func (a *Association) SendTo(dst *net.UDPAddr, payload []byte) error {
	pkt, err := WrapDatagram(dst, payload)
	if err != nil {
		return err
	}
	_, err = a.conn.WriteToUDP(pkt, a.relay)
	return err
}

// ReceiveInto reads one relayed datagram into buf, returning the
// original sender address and the number of payload bytes written.
func (a *Association) ReceiveInto(buf []byte) (*net.UDPAddr, int, error) {
	n, _, err := a.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, 0, err
	}
	src, payload, err := UnwrapDatagram(buf[:n])
	if err != nil {
		return nil, 0, err
	}
	copy(buf, payload)
	return src, len(payload), nil
}

// WrapDatagram builds the RFC 1928 §7 UDP relay header: 2 reserved
// zero bytes, a zero fragment number (fragmentation unsupported, as is
// standard practice), an address type/address/port, then the payload.
func WrapDatagram(dst *net.UDPAddr, payload []byte) ([]byte, error) {
	ip4 := dst.IP.To4()
	var atyp byte
	var addr []byte
	if ip4 != nil {
		atyp, addr = atypIPv4, ip4
	} else if ip16 := dst.IP.To16(); ip16 != nil {
		atyp, addr = atypIPv6, ip16
	} else {
		return nil, fmt.Errorf("socks5: invalid destination address %v", dst)
	}

	out := make([]byte, 0, 4+len(addr)+2+len(payload))
	out = append(out, 0x00, 0x00, 0x00, atyp)
	out = append(out, addr...)
	out = binary.BigEndian.AppendUint16(out, uint16(dst.Port))
	out = append(out, payload...)
	return out, nil
}

// UnwrapDatagram parses a relayed datagram, returning the original
// sender's address and the embedded payload.
func UnwrapDatagram(pkt []byte) (*net.UDPAddr, []byte, error) {
	if len(pkt) < 4 {
		return nil, nil, errors.New("socks5: relayed datagram too short")
	}
	if pkt[2] != 0x00 {
		return nil, nil, errors.New("socks5: fragmented datagrams are not supported")
	}
	atyp := pkt[3]
	rest := pkt[4:]

	var ip net.IP
	switch atyp {
	case atypIPv4:
		if len(rest) < 4+2 {
			return nil, nil, errors.New("socks5: truncated ipv4 relay header")
		}
		ip, rest = net.IP(rest[:4]), rest[4:]
	case atypIPv6:
		if len(rest) < 16+2 {
			return nil, nil, errors.New("socks5: truncated ipv6 relay header")
		}
		ip, rest = net.IP(rest[:16]), rest[16:]
	default:
		return nil, nil, fmt.Errorf("socks5: unsupported relayed address type %d", atyp)
	}

	if len(rest) < 2 {
		return nil, nil, errors.New("socks5: missing relayed port")
	}
	port := binary.BigEndian.Uint16(rest[:2])
	return &net.UDPAddr{IP: ip, Port: int(port)}, rest[2:], nil
}

package domain

import (
	"net"
	"net/netip"
	"time"
)

// Session carries the addressing metadata of one query through
// classification, synthesis and telemetry. It is created by the transport
// per request and passed by value.
type Session struct {
	ClientAddr netip.Addr
	ClientPort uint16
	ServerAddr netip.Addr
	ServerPort uint16
	Transport  string
	Timestamp  time.Time
}

// NewSession builds a Session from the socket addresses of a request.
// IPv4-mapped IPv6 addresses are unmapped so dual-stack listeners report
// plain dotted quads.
func NewSession(client, server net.Addr, transport string, ts time.Time) Session {
	s := Session{Transport: transport, Timestamp: ts}
	if ap, ok := addrPort(client); ok {
		s.ClientAddr, s.ClientPort = ap.Addr(), ap.Port()
	}
	if ap, ok := addrPort(server); ok {
		s.ServerAddr, s.ServerPort = ap.Addr(), ap.Port()
	}
	return s
}

// WithServerAddr returns a copy of s reporting addr as the server address.
func (s Session) WithServerAddr(addr netip.Addr) Session {
	s.ServerAddr = addr
	return s
}

func addrPort(a net.Addr) (netip.AddrPort, bool) {
	var ap netip.AddrPort
	switch v := a.(type) {
	case *net.UDPAddr:
		ap = v.AddrPort()
	case *net.TCPAddr:
		ap = v.AddrPort()
	default:
		if a == nil {
			return netip.AddrPort{}, false
		}
		parsed, err := netip.ParseAddrPort(a.String())
		if err != nil {
			return netip.AddrPort{}, false
		}
		ap = parsed
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), true
}

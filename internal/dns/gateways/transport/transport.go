// Package transport serves DNS over UDP and TCP. It owns sockets, timeouts
// and wire conversion, and hands the service layer nothing but a decoded
// Question and the Session it arrived on.
package transport

import (
	"context"
	"net"
	"net/netip"

	"github.com/haukened/decoy-dns/internal/dns/domain"
)

// ServerTransport is a listener for one network.
type ServerTransport interface {
	// Start binds the socket and begins serving. It returns once the socket
	// is bound and the server is accepting requests.
	Start(ctx context.Context, handler QueryHandler) error

	// Stop shuts the server down. Calling it on a stopped transport is a no-op.
	Stop() error

	// Address returns the bound address, or the configured one before Start.
	Address() string

	// Network returns "udp" or "tcp".
	Network() string
}

// QueryHandler answers one decoded question.
type QueryHandler interface {
	HandleQuery(ctx context.Context, q domain.Question, sess domain.Session) domain.DNSResponse
}

// QueryHandlerFunc adapts a function to QueryHandler.
type QueryHandlerFunc func(ctx context.Context, q domain.Question, sess domain.Session) domain.DNSResponse

func (f QueryHandlerFunc) HandleQuery(ctx context.Context, q domain.Question, sess domain.Session) domain.DNSResponse {
	return f(ctx, q, sess)
}

// OutboundAddr returns the local address the host would use to reach the
// public internet. No packet is sent; connecting a UDP socket only selects a
// route. It returns the zero Addr when the host has no route.
func OutboundAddr() netip.Addr {
	conn, err := net.Dial("udp", "192.0.2.1:53")
	if err != nil {
		return netip.Addr{}
	}
	defer conn.Close()

	if ua, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return ua.AddrPort().Addr().Unmap()
	}
	return netip.Addr{}
}

package transport

import (
	"fmt"
	"slices"
)

// TransportType names a supported DNS transport protocol.
type TransportType string

const (
	// TransportUDP is DNS over UDP (RFC 1035).
	TransportUDP TransportType = "udp"

	// TransportTCP is DNS over TCP (RFC 7766).
	TransportTCP TransportType = "tcp"
)

// NewTransport creates a transport of the given type from opts.
func NewTransport(transportType TransportType, opts Options) (ServerTransport, error) {
	if !IsTransportSupported(transportType) {
		return nil, fmt.Errorf("unsupported transport type: %s", transportType)
	}
	opts.Network = string(transportType)
	t, err := NewDNSTransport(opts)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetSupportedTransports returns the transport types the decoy can serve.
func GetSupportedTransports() []TransportType {
	return []TransportType{TransportUDP, TransportTCP}
}

// IsTransportSupported checks if a given transport type is currently supported.
func IsTransportSupported(transportType TransportType) bool {
	return slices.Contains(GetSupportedTransports(), transportType)
}

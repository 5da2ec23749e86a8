package domain

import (
	"fmt"
	"net/netip"
)

// DecoyTTL is the TTL of every synthesized answer.
const DecoyTTL uint32 = 60

// Answer is one synthesized resource record. Payload is an IPv4 literal for
// A, an IPv6 literal for AAAA and a hostname for PTR.
type Answer struct {
	Name    string
	Type    RRType
	Class   RRClass
	TTL     uint32
	Payload string
}

// NewAnswer constructs an Answer with the decoy TTL and checks the payload
// matches the record type.
func NewAnswer(name string, rrtype RRType, class RRClass, payload string) (Answer, error) {
	a := Answer{
		Name:    name,
		Type:    rrtype,
		Class:   class,
		TTL:     DecoyTTL,
		Payload: payload,
	}
	if err := a.Validate(); err != nil {
		return Answer{}, err
	}
	return a, nil
}

// Validate checks that the payload is well formed for the record type.
func (a Answer) Validate() error {
	switch a.Type {
	case RRTypeA:
		ip, err := netip.ParseAddr(a.Payload)
		if err != nil || !ip.Is4() {
			return fmt.Errorf("invalid A payload: %q", a.Payload)
		}
	case RRTypeAAAA:
		ip, err := netip.ParseAddr(a.Payload)
		if err != nil || !ip.Is6() || ip.Is4In6() {
			return fmt.Errorf("invalid AAAA payload: %q", a.Payload)
		}
	case RRTypePTR:
		if a.Payload == "" {
			return fmt.Errorf("PTR payload must not be empty")
		}
	default:
		return fmt.Errorf("unsupported answer type: %s", a.Type)
	}
	return nil
}

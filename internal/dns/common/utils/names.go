// Package utils holds DNS name helpers shared by the wire codec and the
// telemetry layer.
package utils

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalDNSName returns a DNS name lowercased, trimmed of surrounding
// whitespace and without trailing dots.
func CanonicalDNSName(name string) string {
	return strings.ToLower(TrimDNSName(name))
}

// TrimDNSName trims whitespace and trailing dots but keeps the caller's case.
// Answers echo the query name this way so clients using 0x20 case
// randomization still match their question.
func TrimDNSName(name string) string {
	name = strings.TrimSpace(name)
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// GetApexDomain returns the registrable domain (eTLD+1) of name, falling back
// to the canonical name when the public suffix list cannot place it.
func GetApexDomain(name string) string {
	name = CanonicalDNSName(name)
	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return apex
}

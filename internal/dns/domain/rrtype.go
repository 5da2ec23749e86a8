package domain

import "fmt"

// RRType represents a DNS resource record type (e.g. A, AAAA, PTR).
// See IANA DNS Parameters for assigned codes.
type RRType uint16

// DNS Resource Record Type constants. Only A, AAAA and PTR are ever answered;
// the rest exist so telemetry can name what an unsupported query asked for.
const (
	RRTypeA      RRType = 1   // A - IPv4 address
	RRTypeNS     RRType = 2   // NS - Name server
	RRTypeCNAME  RRType = 5   // CNAME - Canonical name
	RRTypeSOA    RRType = 6   // SOA - Start of authority
	RRTypePTR    RRType = 12  // PTR - Pointer
	RRTypeHINFO  RRType = 13  // HINFO - Host information
	RRTypeMX     RRType = 15  // MX - Mail exchange
	RRTypeTXT    RRType = 16  // TXT - Text
	RRTypeAAAA   RRType = 28  // AAAA - IPv6 address
	RRTypeSRV    RRType = 33  // SRV - Service
	RRTypeOPT    RRType = 41  // OPT - EDNS option
	RRTypeDS     RRType = 43  // DS - Delegation signer
	RRTypeRRSIG  RRType = 46  // RRSIG - Resource record signature
	RRTypeDNSKEY RRType = 48  // DNSKEY - DNS key
	RRTypeSVCB   RRType = 64  // SVCB - Service binding
	RRTypeHTTPS  RRType = 65  // HTTPS - HTTPS binding
	RRTypeAXFR   RRType = 252 // AXFR - Zone transfer (query only)
	RRTypeANY    RRType = 255 // ANY - Any type (query only)
	RRTypeCAA    RRType = 257 // CAA - Certificate authority authorization
)

var rrTypeNames = map[RRType]string{
	RRTypeA:      "A",
	RRTypeNS:     "NS",
	RRTypeCNAME:  "CNAME",
	RRTypeSOA:    "SOA",
	RRTypePTR:    "PTR",
	RRTypeHINFO:  "HINFO",
	RRTypeMX:     "MX",
	RRTypeTXT:    "TXT",
	RRTypeAAAA:   "AAAA",
	RRTypeSRV:    "SRV",
	RRTypeOPT:    "OPT",
	RRTypeDS:     "DS",
	RRTypeRRSIG:  "RRSIG",
	RRTypeDNSKEY: "DNSKEY",
	RRTypeSVCB:   "SVCB",
	RRTypeHTTPS:  "HTTPS",
	RRTypeAXFR:   "AXFR",
	RRTypeANY:    "ANY",
	RRTypeCAA:    "CAA",
}

// String returns the mnemonic of the RRType, or "TYPE<n>" (RFC 3597) for
// codes without one.
func (t RRType) String() string {
	if s, ok := rrTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TYPE%d", uint16(t))
}

// RRTypeFromString converts a mnemonic to its RRType, returning 0 when unknown.
func RRTypeFromString(s string) RRType {
	for t, name := range rrTypeNames {
		if name == s {
			return t
		}
	}
	return 0
}

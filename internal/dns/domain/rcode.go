package domain

import "fmt"

// RCode represents a DNS response code indicating the result of a query.
type RCode uint8

const (
	NOERROR  RCode = 0
	FORMERR  RCode = 1
	SERVFAIL RCode = 2
	NXDOMAIN RCode = 3
	NOTIMP   RCode = 4
	REFUSED  RCode = 5
)

// String returns the textual representation of the RCode.
func (r RCode) String() string {
	switch r {
	case NOERROR:
		return "NOERROR"
	case FORMERR:
		return "FORMERR"
	case SERVFAIL:
		return "SERVFAIL"
	case NXDOMAIN:
		return "NXDOMAIN"
	case NOTIMP:
		return "NOTIMP"
	case REFUSED:
		return "REFUSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", r)
	}
}

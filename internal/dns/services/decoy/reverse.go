package decoy

import (
	"net/netip"
	"slices"
	"strings"
)

const (
	reverseSuffixV4 = ".in-addr.arpa"
	reverseSuffixV6 = ".ip6.arpa"
)

// ReverseAddress recovers the address a PTR question asks about. The result
// is reported in telemetry only and never validated against anything:
//
//	"4.3.2.1.in-addr.arpa."  -> "1.2.3.4"
//	"<32 nibbles>.ip6.arpa"  -> IPv6 literal
//	"c.b.a"                  -> "a.b.c"
//
// Nibble names that do not form a full IPv6 address fall back to plain label
// reversal.
func ReverseAddress(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".")
	lower := strings.ToLower(name)

	switch {
	case strings.HasSuffix(lower, reverseSuffixV4):
		return reverseLabels(name[:len(name)-len(reverseSuffixV4)], ".")
	case strings.HasSuffix(lower, reverseSuffixV6):
		head := name[:len(name)-len(reverseSuffixV6)]
		if ip, ok := ipFromNibbles(head); ok {
			return ip
		}
		return reverseLabels(head, ".")
	default:
		return reverseLabels(name, ".")
	}
}

func reverseLabels(s, sep string) string {
	labels := strings.Split(s, ".")
	slices.Reverse(labels)
	return strings.Join(labels, sep)
}

// ipFromNibbles folds 32 reversed hex nibbles into an IPv6 literal.
func ipFromNibbles(s string) (string, bool) {
	nibbles := strings.Split(s, ".")
	if len(nibbles) != 32 {
		return "", false
	}
	slices.Reverse(nibbles)

	var sb strings.Builder
	for i, n := range nibbles {
		if len(n) != 1 {
			return "", false
		}
		if i > 0 && i%4 == 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(n)
	}

	ip, err := netip.ParseAddr(sb.String())
	if err != nil || !ip.Is6() {
		return "", false
	}
	return ip.String(), true
}

package decoy

import "github.com/haukened/decoy-dns/internal/dns/domain"

// Classify maps a question's record type to the answer path it takes. It
// reads nothing but the type.
func Classify(q domain.Question) domain.QueryKind {
	switch q.Type {
	case domain.RRTypePTR:
		return domain.KindReverse
	case domain.RRTypeA:
		return domain.KindForwardIPv4
	case domain.RRTypeAAAA:
		return domain.KindForwardIPv6
	default:
		return domain.KindUnsupported
	}
}

package domain

// QueryKind tags a question with the answer path it takes.
type QueryKind uint8

const (
	KindUnsupported QueryKind = iota
	KindForwardIPv4
	KindForwardIPv6
	KindReverse
)

// String returns the kind name used as a metrics label.
func (k QueryKind) String() string {
	switch k {
	case KindForwardIPv4:
		return "ipv4"
	case KindForwardIPv6:
		return "ipv6"
	case KindReverse:
		return "reverse"
	default:
		return "unsupported"
	}
}

// AnswerType returns the record type answered for this kind, or 0 for
// unsupported questions, which are never answered.
func (k QueryKind) AnswerType() RRType {
	switch k {
	case KindForwardIPv4:
		return RRTypeA
	case KindForwardIPv6:
		return RRTypeAAAA
	case KindReverse:
		return RRTypePTR
	default:
		return 0
	}
}

// Family is the address family of a forward lookup.
type Family uint8

const (
	FamilyIPv4 Family = 4
	FamilyIPv6 Family = 6
)

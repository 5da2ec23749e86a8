package domain

// DNSResponse is the answer set handed back to the transport. Authority and
// Additional are always empty for decoy answers but are kept so the codec
// mirrors the RFC 1035 §4.1 message sections.
type DNSResponse struct {
	ID         uint16
	RCode      RCode
	Answers    []Answer
	Authority  []Answer
	Additional []Answer
}

// NewDNSResponse builds a NOERROR response. A nil answers slice is replaced
// with an empty one so callers can tell "answered with nothing" apart from
// an unset response.
func NewDNSResponse(id uint16, answers []Answer) DNSResponse {
	if answers == nil {
		answers = []Answer{}
	}
	return DNSResponse{
		ID:         id,
		RCode:      NOERROR,
		Answers:    answers,
		Authority:  []Answer{},
		Additional: []Answer{},
	}
}

// NewDNSErrorResponse creates a response with the given RCode and no records.
func NewDNSErrorResponse(id uint16, rcode RCode) DNSResponse {
	return DNSResponse{
		ID:    id,
		RCode: rcode,
	}
}

// IsError returns true if the response indicates an error condition.
func (resp DNSResponse) IsError() bool {
	return resp.RCode != NOERROR
}

// AnswerCount returns the number of answer records in the response.
func (resp DNSResponse) AnswerCount() int {
	return len(resp.Answers)
}

package domain

import "time"

// Question is a single parsed DNS question as delivered by the transport.
// Name carries no trailing dot; the empty name is the root. Names keep the
// escaped presentation form produced by the wire codec, which is responsible
// for rejecting names that exceed the wire limits.
type Question struct {
	ID         uint16
	Name       string
	Type       RRType
	Class      RRClass
	ReceivedAt time.Time
}

// NewQuestion constructs a Question. Unknown types and classes are valid
// questions; the classifier decides what to do with them.
func NewQuestion(id uint16, name string, rrtype RRType, class RRClass, receivedAt time.Time) Question {
	return Question{
		ID:         id,
		Name:       name,
		Type:       rrtype,
		Class:      class,
		ReceivedAt: receivedAt,
	}
}

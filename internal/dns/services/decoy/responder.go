package decoy

import (
	"context"
	"fmt"

	"github.com/haukened/decoy-dns/internal/dns/common/log"
	"github.com/haukened/decoy-dns/internal/dns/domain"
)

// EventEmitter records one telemetry event per answered query.
type EventEmitter interface {
	Emit(eventType, description string, success bool, sess domain.Session, q domain.Question)
}

// QueryCounter counts answered queries by kind.
type QueryCounter interface {
	QueryAnswered(kind string)
}

// Responder answers every question with synthetic data and reports it.
type Responder struct {
	emitter EventEmitter
	logger  log.Logger
	metrics QueryCounter
	policy  *PolicyEngine
}

type ResponderOptions struct {
	Emitter EventEmitter
	Logger  log.Logger
	Metrics QueryCounter
	Policy  *PolicyEngine
}

func NewResponder(opts ResponderOptions) *Responder {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Responder{
		emitter: opts.Emitter,
		logger:  logger,
		metrics: opts.Metrics,
		policy:  opts.Policy,
	}
}

// HandleQuery classifies q, synthesizes its answers and emits one telemetry
// event. The response is always NOERROR; unsupported types get an empty
// answer section. Telemetry is handed off before returning but never waited
// on.
func (r *Responder) HandleQuery(ctx context.Context, q domain.Question, sess domain.Session) domain.DNSResponse {
	kind := Classify(q)
	answers := r.policy.Synthesize(q, kind)

	eventType, description, success := describe(q, kind, answers)
	if r.emitter != nil {
		r.emitter.Emit(eventType, description, success, sess, q)
	}
	if r.metrics != nil {
		r.metrics.QueryAnswered(kind.String())
	}

	r.logger.Debug(map[string]any{
		"id":     q.ID,
		"name":   q.Name,
		"type":   q.Type.String(),
		"kind":   kind.String(),
		"client": sess.ClientAddr.String(),
	}, "decoy answer")

	return domain.NewDNSResponse(q.ID, answers)
}

// describe returns the event type, description and success flag of a query.
func describe(q domain.Question, kind domain.QueryKind, answers []domain.Answer) (string, string, bool) {
	var payload string
	if len(answers) > 0 {
		payload = answers[0].Payload
	}

	switch kind {
	case domain.KindForwardIPv4:
		return domain.EventIPv4Query, fmt.Sprintf("%s --> %s", q.Name, payload), true
	case domain.KindForwardIPv6:
		return domain.EventIPv6Query, fmt.Sprintf("%s --> %s", q.Name, payload), true
	case domain.KindReverse:
		return domain.EventReverseQuery, fmt.Sprintf("%s --> %s", ReverseAddress(q.Name), payload), true
	default:
		return domain.EventUnsupportedQuery, fmt.Sprintf("%s (%s)", q.Name, q.Type), false
	}
}

// Package wire converts between miekg/dns messages and the decoy's domain
// values. It is the only place that knows about the DNS wire format.
package wire

import (
	"errors"
	"fmt"
	"net"

	"github.com/miekg/dns"

	"github.com/haukened/decoy-dns/internal/dns/common/clock"
	"github.com/haukened/decoy-dns/internal/dns/common/log"
	"github.com/haukened/decoy-dns/internal/dns/common/utils"
	"github.com/haukened/decoy-dns/internal/dns/domain"
)

var (
	// ErrNoQuestion is returned for messages without a question section.
	ErrNoQuestion = errors.New("message carries no question")
	// ErrMultipleQuestions is returned when QDCOUNT is greater than one.
	ErrMultipleQuestions = errors.New("message carries more than one question")
	// ErrNotQuery is returned for opcodes other than QUERY.
	ErrNotQuery = errors.New("opcode is not QUERY")
	// ErrInvalidName is returned for names that exceed the wire limits.
	ErrInvalidName = errors.New("invalid query name")
)

// DNSCodec decodes incoming queries and encodes decoy responses.
type DNSCodec interface {
	DecodeQuery(req *dns.Msg) (domain.Question, error)
	EncodeResponse(req *dns.Msg, resp domain.DNSResponse) (*dns.Msg, error)
}

type codec struct {
	clock  clock.Clock
	logger log.Logger
}

// NewCodec returns a DNSCodec stamping decoded questions with clk.
func NewCodec(clk clock.Clock, logger log.Logger) DNSCodec {
	if clk == nil {
		clk = &clock.RealClock{}
	}
	if logger == nil {
		logger = log.GetLogger()
	}
	return &codec{clock: clk, logger: logger}
}

// DecodeQuery extracts the single question of req. The name loses its
// trailing dot but keeps the client's case.
func (c *codec) DecodeQuery(req *dns.Msg) (domain.Question, error) {
	if req == nil || len(req.Question) == 0 {
		return domain.Question{}, ErrNoQuestion
	}
	if req.Opcode != dns.OpcodeQuery {
		return domain.Question{}, fmt.Errorf("%w: %s", ErrNotQuery, dns.OpcodeToString[req.Opcode])
	}
	if len(req.Question) > 1 {
		return domain.Question{}, ErrMultipleQuestions
	}

	q := req.Question[0]
	if _, ok := dns.IsDomainName(q.Name); !ok {
		return domain.Question{}, fmt.Errorf("%w: %q", ErrInvalidName, q.Name)
	}
	return domain.NewQuestion(
		req.Id,
		utils.TrimDNSName(q.Name),
		domain.RRType(q.Qtype),
		domain.RRClass(q.Qclass),
		c.clock.Now(),
	), nil
}

// EncodeResponse builds the authoritative reply to req carrying resp. The
// question section is echoed from req and EDNS0 is answered when the client
// offered it.
func (c *codec) EncodeResponse(req *dns.Msg, resp domain.DNSResponse) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetRcode(req, int(resp.RCode))
	m.Authoritative = true
	m.RecursionAvailable = false

	sections := []struct {
		records []domain.Answer
		dst     *[]dns.RR
	}{
		{resp.Answers, &m.Answer},
		{resp.Authority, &m.Ns},
		{resp.Additional, &m.Extra},
	}
	for _, s := range sections {
		for _, a := range s.records {
			rr, err := toRR(a)
			if err != nil {
				c.logger.Error(map[string]any{
					"name":    a.Name,
					"type":    a.Type.String(),
					"payload": a.Payload,
					"error":   err.Error(),
				}, "failed to encode answer")
				return nil, fmt.Errorf("encode %s record for %q: %w", a.Type, a.Name, err)
			}
			*s.dst = append(*s.dst, rr)
		}
	}

	if opt := req.IsEdns0(); opt != nil {
		m.SetEdns0(opt.UDPSize(), false)
	}
	return m, nil
}

// NewErrorReply builds a bare reply to req with rcode and no records.
func NewErrorReply(req *dns.Msg, rcode domain.RCode) *dns.Msg {
	m := new(dns.Msg)
	m.SetRcode(req, int(rcode))
	return m
}

func toRR(a domain.Answer) (dns.RR, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	hdr := dns.RR_Header{
		Name:   dns.Fqdn(a.Name),
		Rrtype: uint16(a.Type),
		Class:  uint16(a.Class),
		Ttl:    a.TTL,
	}

	switch a.Type {
	case domain.RRTypeA:
		return &dns.A{Hdr: hdr, A: net.ParseIP(a.Payload).To4()}, nil
	case domain.RRTypeAAAA:
		return &dns.AAAA{Hdr: hdr, AAAA: net.ParseIP(a.Payload)}, nil
	case domain.RRTypePTR:
		target := dns.Fqdn(a.Payload)
		if _, ok := dns.IsDomainName(target); !ok {
			return nil, fmt.Errorf("invalid PTR target %q", a.Payload)
		}
		return &dns.PTR{Hdr: hdr, Ptr: target}, nil
	default:
		return nil, fmt.Errorf("unsupported record type %s", a.Type)
	}
}

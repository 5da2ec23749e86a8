package wire

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/decoy-dns/internal/dns/common/clock"
	"github.com/haukened/decoy-dns/internal/dns/common/log"
	"github.com/haukened/decoy-dns/internal/dns/domain"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestCodec() DNSCodec {
	return NewCodec(&clock.MockClock{CurrentTime: fixedNow}, log.NewNoopLogger())
}

func query(name string, qtype uint16) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(name, qtype)
	m.Id = 0xbeef
	return m
}

// roundTrip packs and unpacks a message the way it travels on the wire.
func roundTrip(t *testing.T, m *dns.Msg) *dns.Msg {
	t.Helper()
	buf, err := m.Pack()
	require.NoError(t, err)
	out := new(dns.Msg)
	require.NoError(t, out.Unpack(buf))
	return out
}

func TestCodec_DecodeQuery(t *testing.T) {
	c := newTestCodec()

	q, err := c.DecodeQuery(roundTrip(t, query("WwW.Example.COM.", dns.TypeAAAA)))
	require.NoError(t, err)
	assert.Equal(t, domain.Question{
		ID:         0xbeef,
		Name:       "WwW.Example.COM",
		Type:       domain.RRTypeAAAA,
		Class:      domain.RRClassIN,
		ReceivedAt: fixedNow,
	}, q)
}

func TestCodec_DecodeQuery_UnknownTypeAndRoot(t *testing.T) {
	c := newTestCodec()

	q, err := c.DecodeQuery(query(".", 65280))
	require.NoError(t, err)
	assert.Equal(t, "", q.Name)
	assert.Equal(t, domain.RRType(65280), q.Type)
}

func TestCodec_DecodeQuery_EscapedNameAtWireLimit(t *testing.T) {
	c := newTestCodec()

	// 3*(1+63) + (1+61) + 1 = 255 octets on the wire, over 900 characters
	// in presentation form
	label := func(n int) string { return strings.Repeat(`\001`, n) }
	name := label(63) + "." + label(63) + "." + label(63) + "." + label(61) + "."

	q, err := c.DecodeQuery(roundTrip(t, query(name, dns.TypeA)))
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSuffix(name, "."), q.Name)
	assert.Greater(t, len(q.Name), 253)
}

func TestCodec_DecodeQuery_Errors(t *testing.T) {
	c := newTestCodec()

	empty := new(dns.Msg)

	multi := query("a.example.", dns.TypeA)
	multi.Question = append(multi.Question, dns.Question{Name: "b.example.", Qtype: dns.TypeA, Qclass: dns.ClassINET})

	notify := query("example.", dns.TypeSOA)
	notify.Opcode = dns.OpcodeNotify

	tooLong := query(strings.Repeat("a.", 127)+"a.", dns.TypeA)

	tests := []struct {
		name string
		msg  *dns.Msg
		want error
	}{
		{"nil message", nil, ErrNoQuestion},
		{"no question", empty, ErrNoQuestion},
		{"two questions", multi, ErrMultipleQuestions},
		{"notify opcode", notify, ErrNotQuery},
		{"name too long", tooLong, ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.DecodeQuery(tt.msg)
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want), "got %v", err)
			}
		})
	}
}

func TestCodec_EncodeResponse(t *testing.T) {
	c := newTestCodec()

	tests := []struct {
		name    string
		qtype   uint16
		answer  domain.Answer
		inspect func(t *testing.T, rr dns.RR)
	}{
		{
			name:   "A",
			qtype:  dns.TypeA,
			answer: domain.Answer{Name: "foo.bar", Type: domain.RRTypeA, Class: domain.RRClassIN, TTL: 60, Payload: "10.0.0.5"},
			inspect: func(t *testing.T, rr dns.RR) {
				a, ok := rr.(*dns.A)
				require.True(t, ok)
				assert.True(t, a.A.Equal(net.ParseIP("10.0.0.5")))
			},
		},
		{
			name:   "AAAA non-canonical payload",
			qtype:  dns.TypeAAAA,
			answer: domain.Answer{Name: "foo.bar", Type: domain.RRTypeAAAA, Class: domain.RRClassIN, TTL: 60, Payload: "b:100:1:1000:ffff:2:3:4"},
			inspect: func(t *testing.T, rr dns.RR) {
				a, ok := rr.(*dns.AAAA)
				require.True(t, ok)
				assert.True(t, a.AAAA.Equal(net.ParseIP("b:100:1:1000:ffff:2:3:4")))
			},
		},
		{
			name:   "PTR",
			qtype:  dns.TypePTR,
			answer: domain.Answer{Name: "5.0.0.10.in-addr.arpa", Type: domain.RRTypePTR, Class: domain.RRClassIN, TTL: 60, Payload: "eu-north-dc3.it.example.com"},
			inspect: func(t *testing.T, rr dns.RR) {
				p, ok := rr.(*dns.PTR)
				require.True(t, ok)
				assert.Equal(t, "eu-north-dc3.it.example.com.", p.Ptr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := query(dns.Fqdn(tt.answer.Name), tt.qtype)
			resp := domain.NewDNSResponse(req.Id, []domain.Answer{tt.answer})

			m, err := c.EncodeResponse(req, resp)
			require.NoError(t, err)
			got := roundTrip(t, m)

			assert.True(t, got.Response)
			assert.True(t, got.Authoritative)
			assert.False(t, got.RecursionAvailable)
			assert.Equal(t, req.Id, got.Id)
			assert.Equal(t, dns.RcodeSuccess, got.Rcode)
			require.Len(t, got.Question, 1)
			assert.Equal(t, req.Question[0], got.Question[0])
			require.Len(t, got.Answer, 1)

			hdr := got.Answer[0].Header()
			assert.Equal(t, dns.Fqdn(tt.answer.Name), hdr.Name)
			assert.Equal(t, tt.qtype, hdr.Rrtype)
			assert.Equal(t, uint16(dns.ClassINET), hdr.Class)
			assert.Equal(t, uint32(60), hdr.Ttl)
			tt.inspect(t, got.Answer[0])
		})
	}
}

func TestCodec_EncodeResponse_Empty(t *testing.T) {
	c := newTestCodec()
	req := query("example.com.", dns.TypeMX)

	m, err := c.EncodeResponse(req, domain.NewDNSResponse(req.Id, nil))
	require.NoError(t, err)
	got := roundTrip(t, m)

	assert.Equal(t, dns.RcodeSuccess, got.Rcode)
	assert.Empty(t, got.Answer)
	assert.Empty(t, got.Ns)
	assert.Len(t, got.Question, 1)
}

func TestCodec_EncodeResponse_EDNS(t *testing.T) {
	c := newTestCodec()
	req := query("foo.bar.", dns.TypeA)
	req.SetEdns0(1232, false)

	answer := domain.Answer{Name: "foo.bar", Type: domain.RRTypeA, Class: domain.RRClassIN, TTL: 60, Payload: "10.0.0.5"}
	m, err := c.EncodeResponse(req, domain.NewDNSResponse(req.Id, []domain.Answer{answer}))
	require.NoError(t, err)

	opt := roundTrip(t, m).IsEdns0()
	require.NotNil(t, opt)
	assert.Equal(t, uint16(1232), opt.UDPSize())
}

func TestCodec_EncodeResponse_InvalidPayload(t *testing.T) {
	c := newTestCodec()
	req := query("foo.bar.", dns.TypeA)

	bad := []domain.Answer{
		{Name: "foo.bar", Type: domain.RRTypeA, Class: domain.RRClassIN, TTL: 60, Payload: "2001:db8::1"},
		{Name: "foo.bar", Type: domain.RRTypeAAAA, Class: domain.RRClassIN, TTL: 60, Payload: "10.0.0.1"},
		{Name: "foo.bar", Type: domain.RRTypePTR, Class: domain.RRClassIN, TTL: 60, Payload: ""},
		{Name: "foo.bar", Type: domain.RRTypeMX, Class: domain.RRClassIN, TTL: 60, Payload: "mail.foo.bar"},
	}
	for _, a := range bad {
		t.Run(a.Type.String(), func(t *testing.T) {
			m, err := c.EncodeResponse(req, domain.NewDNSResponse(req.Id, []domain.Answer{a}))
			assert.Error(t, err)
			assert.Nil(t, m)
		})
	}
}

func TestNewErrorReply(t *testing.T) {
	req := query("foo.bar.", dns.TypeA)
	m := NewErrorReply(req, domain.FORMERR)

	assert.True(t, m.Response)
	assert.Equal(t, req.Id, m.Id)
	assert.Equal(t, dns.RcodeFormatError, m.Rcode)
	assert.Empty(t, m.Answer)
}

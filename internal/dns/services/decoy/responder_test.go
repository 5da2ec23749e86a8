package decoy

import (
	"context"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haukened/decoy-dns/internal/dns/common/log"
	"github.com/haukened/decoy-dns/internal/dns/domain"
)

type MockEmitter struct {
	mock.Mock
}

func (m *MockEmitter) Emit(eventType, description string, success bool, sess domain.Session, q domain.Question) {
	m.Called(eventType, description, success, sess, q)
}

type countingMetrics struct {
	mu    sync.Mutex
	kinds map[string]int
}

func (c *countingMetrics) QueryAnswered(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kinds == nil {
		c.kinds = map[string]int{}
	}
	c.kinds[kind]++
}

func testSession() domain.Session {
	return domain.Session{
		ClientAddr: netip.MustParseAddr("203.0.113.9"),
		ClientPort: 53001,
		ServerAddr: netip.MustParseAddr("198.51.100.1"),
		ServerPort: 53,
		Transport:  "udp",
		Timestamp:  time.Now(),
	}
}

func newResponder(t *testing.T, p *PolicyEngine) (*Responder, *MockEmitter, *countingMetrics) {
	t.Helper()
	em := new(MockEmitter)
	m := &countingMetrics{}
	r := NewResponder(ResponderOptions{
		Emitter: em,
		Logger:  log.NewNoopLogger(),
		Metrics: m,
		Policy:  p,
	})
	return r, em, m
}

func TestResponder_FixedIPv4(t *testing.T) {
	p, err := NewPolicyEngine(fixedConfig([]string{"10.0.0.5"}, []string{"::1"}), nil)
	require.NoError(t, err)
	r, em, m := newResponder(t, p)

	q := question(t, "foo.bar", domain.RRTypeA)
	sess := testSession()
	em.On("Emit", domain.EventIPv4Query, "foo.bar --> 10.0.0.5", true, sess, q).Once()

	resp := r.HandleQuery(context.Background(), q, sess)

	assert.Equal(t, q.ID, resp.ID)
	assert.Equal(t, domain.NOERROR, resp.RCode)
	require.Len(t, resp.Answers, 1)
	assert.Equal(t, domain.Answer{
		Name:    "foo.bar",
		Type:    domain.RRTypeA,
		Class:   domain.RRClassIN,
		TTL:     60,
		Payload: "10.0.0.5",
	}, resp.Answers[0])
	em.AssertExpectations(t)
	assert.Equal(t, 1, m.kinds["ipv4"])
}

func TestResponder_RandomIPv6(t *testing.T) {
	p, err := NewPolicyEngine(randomConfig(), nil)
	require.NoError(t, err)
	r, em, m := newResponder(t, p)

	q := question(t, "x.y", domain.RRTypeAAAA)
	em.On("Emit", domain.EventIPv6Query, mock.MatchedBy(func(d string) bool {
		return strings.HasPrefix(d, "x.y --> ")
	}), true, mock.Anything, q).Once()

	resp := r.HandleQuery(context.Background(), q, testSession())

	require.Len(t, resp.Answers, 1)
	a := resp.Answers[0]
	assert.Equal(t, domain.RRTypeAAAA, a.Type)
	assert.Len(t, strings.Split(a.Payload, ":"), 8)
	em.AssertExpectations(t)
	assert.Equal(t, 1, m.kinds["ipv6"])
}

func TestResponder_Reverse(t *testing.T) {
	p, err := NewPolicyEngine(randomConfig(), nil)
	require.NoError(t, err)
	r, em, m := newResponder(t, p)

	q := question(t, "5.0.0.10.in-addr.arpa", domain.RRTypePTR)
	var description string
	em.On("Emit", domain.EventReverseQuery, mock.Anything, true, mock.Anything, q).
		Run(func(args mock.Arguments) { description = args.String(1) }).
		Once()

	resp := r.HandleQuery(context.Background(), q, testSession())

	require.Len(t, resp.Answers, 1)
	hostname := resp.Answers[0].Payload
	assert.Regexp(t, hostnamePattern, hostname)
	assert.Equal(t, "10.0.0.5 --> "+hostname, description)
	em.AssertExpectations(t)
	assert.Equal(t, 1, m.kinds["reverse"])
}

func TestResponder_Unsupported(t *testing.T) {
	p, err := NewPolicyEngine(randomConfig(), nil)
	require.NoError(t, err)
	r, em, m := newResponder(t, p)

	q := question(t, "example.com", domain.RRTypeMX)
	em.On("Emit", domain.EventUnsupportedQuery, "example.com (MX)", false, mock.Anything, q).Once()

	var resp domain.DNSResponse
	assert.NotPanics(t, func() {
		resp = r.HandleQuery(context.Background(), q, testSession())
	})

	assert.Equal(t, domain.NOERROR, resp.RCode)
	assert.NotNil(t, resp.Answers)
	assert.Empty(t, resp.Answers)
	em.AssertExpectations(t)
	assert.Equal(t, 1, m.kinds["unsupported"])
}

func TestResponder_UnknownTypeDescription(t *testing.T) {
	p, err := NewPolicyEngine(randomConfig(), nil)
	require.NoError(t, err)
	r, em, _ := newResponder(t, p)

	q := question(t, "example.com", domain.RRType(65280))
	em.On("Emit", domain.EventUnsupportedQuery, "example.com (TYPE65280)", false, mock.Anything, q).Once()

	r.HandleQuery(context.Background(), q, testSession())
	em.AssertExpectations(t)
}

func TestResponder_NoEmitterOrMetrics(t *testing.T) {
	p, err := NewPolicyEngine(randomConfig(), nil)
	require.NoError(t, err)
	r := NewResponder(ResponderOptions{Policy: p})

	resp := r.HandleQuery(context.Background(), question(t, "a.example.com", domain.RRTypeA), testSession())
	assert.Len(t, resp.Answers, 1)
}

func TestResponder_Concurrent(t *testing.T) {
	p, err := NewPolicyEngine(randomConfig(), nil)
	require.NoError(t, err)
	r, em, m := newResponder(t, p)
	em.On("Emit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rrtype := domain.RRTypeA
			if i%2 == 0 {
				rrtype = domain.RRTypeAAAA
			}
			q := domain.Question{ID: uint16(i), Name: "c.example.com", Type: rrtype, Class: domain.RRClassIN}
			sess := testSession()
			sess.ClientPort = uint16(40000 + i)
			resp := r.HandleQuery(context.Background(), q, sess)
			assert.Equal(t, uint16(i), resp.ID)
			assert.Len(t, resp.Answers, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 25, m.kinds["ipv4"])
	assert.Equal(t, 25, m.kinds["ipv6"])
	em.AssertNumberOfCalls(t, "Emit", 50)
}

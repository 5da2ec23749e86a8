package decoy

import (
	"fmt"

	"github.com/haukened/decoy-dns/internal/dns/config"
	"github.com/haukened/decoy-dns/internal/dns/domain"
)

// PolicyEngine decides the payload of every decoy answer. It holds only the
// immutable decoy configuration, so one engine serves all queries
// concurrently.
type PolicyEngine struct {
	mode    config.Mode
	ipv4    []string
	ipv6    []string
	buckets config.BucketsConfig
	gen     *Generator
}

// NewPolicyEngine validates cfg and returns an engine drawing randomness from
// src (DefaultSource when nil). Errors wrap config.ErrConfiguration.
func NewPolicyEngine(cfg config.DecoyConfig, src Source) (*PolicyEngine, error) {
	switch cfg.Mode {
	case config.ModeFixed:
		if len(cfg.Pools.IPv4) == 0 || len(cfg.Pools.IPv6) == 0 {
			return nil, fmt.Errorf("%w: fixed mode requires non-empty ipv4 and ipv6 pools", config.ErrConfiguration)
		}
	case config.ModeRandom:
	default:
		return nil, fmt.Errorf("%w: unknown decoy mode %q", config.ErrConfiguration, cfg.Mode)
	}

	b := cfg.Buckets
	groups := map[string][]string{
		"locations":   b.Locations,
		"directions":  b.Directions,
		"services":    b.Services,
		"departments": b.Departments,
		"domains":     b.Domains,
	}
	for name, group := range groups {
		if len(group) == 0 {
			return nil, fmt.Errorf("%w: bucket group %s is empty", config.ErrConfiguration, name)
		}
	}
	if b.Counter.Min > b.Counter.Max {
		return nil, fmt.Errorf("%w: counter range [%d, %d] is inverted", config.ErrConfiguration, b.Counter.Min, b.Counter.Max)
	}
	if b.Counter.Min < 0 || b.Counter.Max > config.MaxCounter {
		return nil, fmt.Errorf("%w: counter range [%d, %d] outside [0, %d]", config.ErrConfiguration, b.Counter.Min, b.Counter.Max, config.MaxCounter)
	}

	return &PolicyEngine{
		mode:    cfg.Mode,
		ipv4:    cfg.Pools.IPv4,
		ipv6:    cfg.Pools.IPv6,
		buckets: b,
		gen:     NewGenerator(src),
	}, nil
}

// Mode reports the configured answer mode.
func (p *PolicyEngine) Mode() config.Mode {
	return p.mode
}

// GenerateAddress returns an address of the requested family: a uniform pick
// from the pool in fixed mode, a fresh synthetic address in random mode.
func (p *PolicyEngine) GenerateAddress(family domain.Family) string {
	if p.mode == config.ModeFixed {
		if family == domain.FamilyIPv6 {
			return p.gen.pick(p.ipv6)
		}
		return p.gen.pick(p.ipv4)
	}
	if family == domain.FamilyIPv6 {
		return p.gen.GenerateIPv6()
	}
	return p.gen.GenerateIPv4()
}

// GenerateHostname returns a hostname composed from the configured buckets.
func (p *PolicyEngine) GenerateHostname() string {
	return p.gen.GenerateHostname(p.buckets)
}

// Synthesize builds the answer set for a classified question. Forward and
// reverse kinds get exactly one record owned by the question name; the PTR
// target is a generated hostname with no relation to the queried address.
// Unsupported kinds get an empty, non-nil slice.
func (p *PolicyEngine) Synthesize(q domain.Question, kind domain.QueryKind) []domain.Answer {
	var payload string
	switch kind {
	case domain.KindForwardIPv4:
		payload = p.GenerateAddress(domain.FamilyIPv4)
	case domain.KindForwardIPv6:
		payload = p.GenerateAddress(domain.FamilyIPv6)
	case domain.KindReverse:
		payload = p.GenerateHostname()
	default:
		return []domain.Answer{}
	}

	return []domain.Answer{{
		Name:    q.Name,
		Type:    kind.AnswerType(),
		Class:   q.Class,
		TTL:     domain.DecoyTTL,
		Payload: payload,
	}}
}

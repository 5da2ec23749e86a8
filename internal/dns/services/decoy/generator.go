package decoy

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/haukened/decoy-dns/internal/dns/config"
)

// Source supplies uniform integers in [0, n). Implementations must be safe
// for concurrent use because queries are answered on independent goroutines.
type Source interface {
	IntN(n int) int
}

// globalSource draws from the math/rand/v2 top-level generator, which is
// seeded per process and safe for concurrent use.
type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// DefaultSource is used whenever a nil Source is supplied.
var DefaultSource Source = globalSource{}

// Generator produces believable hostnames and addresses.
type Generator struct {
	src Source
}

// NewGenerator returns a Generator drawing from src, or from DefaultSource
// when src is nil.
func NewGenerator(src Source) *Generator {
	if src == nil {
		src = DefaultSource
	}
	return &Generator{src: src}
}

// pick returns a uniformly chosen element of a non-empty list.
func (g *Generator) pick(list []string) string {
	return list[g.src.IntN(len(list))]
}

// between returns a uniform integer in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.src.IntN(hi-lo+1)
}

// GenerateHostname composes <location>-<direction>-<service><N>.<department>.<domain>
// with one uniform draw per bucket group. Every group must be non-empty.
func (g *Generator) GenerateHostname(b config.BucketsConfig) string {
	return fmt.Sprintf("%s-%s-%s%d.%s.%s",
		g.pick(b.Locations),
		g.pick(b.Directions),
		g.pick(b.Services),
		g.between(b.Counter.Min, b.Counter.Max),
		g.pick(b.Departments),
		g.pick(b.Domains),
	)
}

// GenerateIPv4 returns a dotted quad whose octets are each in [1, 254], so
// network and broadcast-looking values never appear.
func (g *Generator) GenerateIPv4() string {
	var sb strings.Builder
	for i := range 4 {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(g.between(1, 254)))
	}
	return sb.String()
}

// GenerateIPv6 returns eight colon-separated groups, each in [1, 0xffff],
// as lowercase hex without leading zeros. The text is left uncompressed; no
// group is ever zero so "::" shortening could not apply anyway.
func (g *Generator) GenerateIPv6() string {
	var sb strings.Builder
	for i := range 8 {
		if i > 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(strconv.FormatUint(uint64(g.between(1, 0xffff)), 16))
	}
	return sb.String()
}

// Package sources tracks who is querying the decoy. It keeps live query
// counts for the most recent sources and remembers, approximately, every
// source ever seen so that first contact can be flagged.
package sources

import (
	"context"
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/decoy-dns/internal/dns/common/log"
	"github.com/haukened/decoy-dns/internal/dns/domain"
)

const (
	name = "sources"

	// defaultExpected is the number of distinct sources the filter is sized
	// for before its false-positive rate degrades.
	defaultExpected = 1 << 20
	defaultFPRate   = 0.001
)

// FirstSeenCounter counts newly observed sources.
type FirstSeenCounter interface {
	SourceFirstSeen()
}

type Options struct {
	// Size bounds how many sources keep a live counter.
	Size int
	// Expected and FPRate size the first-seen Bloom filter.
	Expected uint64
	FPRate   float64
	Logger   log.Logger
	Metrics  FirstSeenCounter
}

// Tracker is a telemetry sink recording per-source activity.
type Tracker struct {
	mu      sync.Mutex
	counts  *lru.Cache[string, uint64]
	seen    *bitsbloom.BloomFilter
	logger  log.Logger
	metrics FirstSeenCounter
}

// New builds a Tracker. Size must be positive.
func New(opts Options) (*Tracker, error) {
	counts, err := lru.New[string, uint64](opts.Size)
	if err != nil {
		return nil, err
	}
	if opts.Expected == 0 {
		opts.Expected = defaultExpected
	}
	if opts.FPRate == 0 {
		opts.FPRate = defaultFPRate
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	m, k := bloomSize(opts.Expected, opts.FPRate)
	return &Tracker{
		counts:  counts,
		seen:    bitsbloom.New(m, k),
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

func (t *Tracker) Name() string { return name }

// Write counts ev against its source address. Events without one are ignored.
func (t *Tracker) Write(_ context.Context, ev domain.TelemetryEvent) error {
	src := ev.SourceAddr
	if src == "" {
		return nil
	}

	t.mu.Lock()
	first := !t.seen.TestOrAddString(src)
	n, _ := t.counts.Get(src)
	t.counts.Add(src, n+1)
	t.mu.Unlock()

	if first {
		if t.metrics != nil {
			t.metrics.SourceFirstSeen()
		}
		t.logger.Info(map[string]any{
			"source":    src,
			"type":      ev.Type,
			"command":   ev.Description,
			"transport": ev.Transport,
		}, "new source observed")
	}
	return nil
}

// Count returns the live query count of src, if it is still tracked.
func (t *Tracker) Count(src string) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts.Peek(src)
}

// Seen reports whether src has probably been observed before.
func (t *Tracker) Seen(src string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seen.TestString(src)
}

// Len returns how many sources currently have a live counter.
func (t *Tracker) Len() int {
	return t.counts.Len()
}

func (t *Tracker) Close() error {
	return nil
}

package sources

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/decoy-dns/internal/dns/domain"
)

type infoLogger struct {
	msgs []string
}

func (l *infoLogger) Info(_ map[string]any, msg string) { l.msgs = append(l.msgs, msg) }
func (l *infoLogger) Error(map[string]any, string)      {}
func (l *infoLogger) Debug(map[string]any, string)      {}
func (l *infoLogger) Warn(map[string]any, string)       {}

type firstSeen struct{ n atomic.Int32 }

func (f *firstSeen) SourceFirstSeen() { f.n.Add(1) }

func from(src string) domain.TelemetryEvent {
	return domain.TelemetryEvent{Module: "DNS", SourceAddr: src, Type: domain.EventIPv4Query}
}

func TestTracker_CountsAndFirstSeen(t *testing.T) {
	logger := &infoLogger{}
	fs := &firstSeen{}
	tr, err := New(Options{Size: 16, Logger: logger, Metrics: fs})
	require.NoError(t, err)
	defer tr.Close()
	assert.Equal(t, "sources", tr.Name())

	ctx := context.Background()
	require.NoError(t, tr.Write(ctx, from("203.0.113.9")))
	require.NoError(t, tr.Write(ctx, from("203.0.113.9")))
	require.NoError(t, tr.Write(ctx, from("198.51.100.7")))
	require.NoError(t, tr.Write(ctx, from("203.0.113.9")))

	n, ok := tr.Count("203.0.113.9")
	assert.True(t, ok)
	assert.Equal(t, uint64(3), n)
	n, ok = tr.Count("198.51.100.7")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), n)

	assert.Equal(t, int32(2), fs.n.Load())
	assert.Equal(t, []string{"new source observed", "new source observed"}, logger.msgs)
	assert.Equal(t, 2, tr.Len())
}

func TestTracker_EvictedSourcesStayKnown(t *testing.T) {
	fs := &firstSeen{}
	tr, err := New(Options{Size: 2, Logger: &infoLogger{}, Metrics: fs})
	require.NoError(t, err)

	ctx := context.Background()
	for i := range 5 {
		require.NoError(t, tr.Write(ctx, from(fmt.Sprintf("192.0.2.%d", i))))
	}
	assert.Equal(t, 2, tr.Len())
	_, ok := tr.Count("192.0.2.0")
	assert.False(t, ok, "oldest source was evicted from the counters")
	assert.True(t, tr.Seen("192.0.2.0"))

	require.NoError(t, tr.Write(ctx, from("192.0.2.0")))
	assert.Equal(t, int32(5), fs.n.Load(), "a returning source is not new")
	n, _ := tr.Count("192.0.2.0")
	assert.Equal(t, uint64(1), n)
}

func TestTracker_IgnoresEmptySource(t *testing.T) {
	tr, err := New(Options{Size: 4, Logger: &infoLogger{}})
	require.NoError(t, err)
	require.NoError(t, tr.Write(context.Background(), from("")))
	assert.Zero(t, tr.Len())
}

func TestNew_InvalidSize(t *testing.T) {
	_, err := New(Options{Size: 0})
	assert.Error(t, err)
}

func TestBloomSize(t *testing.T) {
	tests := []struct {
		n     uint64
		p     float64
		wantM uint
		wantK uint
	}{
		{1000, 0.01, 9586, 7},
		{0, 0.01, 10, 7},
		{1000, 0, 9586, 7},
		{1000, 1.5, 9586, 7},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d,p=%g", tt.n, tt.p), func(t *testing.T) {
			m, k := bloomSize(tt.n, tt.p)
			assert.Equal(t, tt.wantM, m)
			assert.Equal(t, tt.wantK, k)
		})
	}
}

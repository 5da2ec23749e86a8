package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/decoy-dns/internal/dns/domain"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestSink_AppendsNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "honeypot_output.txt")
	require.NoError(t, os.WriteFile(path, []byte(`{"module":"SSH"}`+"\n"), 0o600))

	s, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, "file", s.Name())
	assert.Equal(t, path, s.Path())

	ev := domain.TelemetryEvent{
		Module:      "DNS",
		TimestampMs: 1700000000123,
		SourceAddr:  "203.0.113.9",
		SourcePort:  40000,
		DestAddr:    "198.51.100.1",
		DestPort:    53,
		Type:        domain.EventIPv4Query,
		Description: "foo.bar --> 10.0.0.5",
		Success:     true,
	}
	require.NoError(t, s.Write(context.Background(), ev))
	ev.Type = domain.EventUnsupportedQuery
	ev.Success = false
	require.NoError(t, s.Write(context.Background(), ev))
	require.NoError(t, s.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 3, "existing content is preserved")
	assert.Equal(t, "SSH", lines[0]["module"])

	first := lines[1]
	assert.Equal(t, "DNS", first["module"])
	assert.Equal(t, float64(1700000000123), first["@timestamp"])
	assert.Equal(t, "203.0.113.9", first["sourceIPv4Address"])
	assert.Equal(t, float64(40000), first["sourceTransportPort"])
	assert.Equal(t, "198.51.100.1", first["destinationIPv4Address"])
	assert.Equal(t, float64(53), first["destinationTransportPort"])
	assert.Equal(t, "IPv4-Query", first["type"])
	assert.Equal(t, "foo.bar --> 10.0.0.5", first["command"])
	assert.Equal(t, true, first["success"])
	assert.NotContains(t, first, "zone")

	assert.Equal(t, false, lines[2]["success"])
}

func TestSink_WriteAfterClose(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "events.ndjson"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err = s.Write(context.Background(), domain.TelemetryEvent{})
	assert.True(t, errors.Is(err, os.ErrClosed))
}

func TestNew_BadPath(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "dir", "events.ndjson"))
	assert.Error(t, err)
}

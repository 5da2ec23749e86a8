// Package file appends telemetry events to a local file, one JSON object per
// line.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/haukened/decoy-dns/internal/dns/domain"
)

const name = "file"

// Sink is an NDJSON append-only event log.
type Sink struct {
	mu   sync.Mutex
	path string
	f    *os.File
	enc  *json.Encoder
}

// New opens path for appending, creating it if needed.
func New(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open telemetry file %s: %w", path, err)
	}
	return &Sink{path: path, f: f, enc: json.NewEncoder(f)}, nil
}

func (s *Sink) Name() string { return name }

// Path returns the file being written.
func (s *Sink) Path() string { return s.path }

func (s *Sink) Write(_ context.Context, ev domain.TelemetryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return os.ErrClosed
	}
	return s.enc.Encode(ev)
}

// Close syncs and closes the file. Later writes fail with os.ErrClosed.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	syncErr := s.f.Sync()
	closeErr := s.f.Close()
	s.f = nil
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

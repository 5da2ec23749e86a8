// Package console prints telemetry events as structured log lines.
package console

import (
	"context"

	"github.com/haukened/decoy-dns/internal/dns/common/log"
	"github.com/haukened/decoy-dns/internal/dns/domain"
)

const name = "screen"

// Sink writes each event at info level through its own logger.
type Sink struct {
	logger log.Logger
}

// New returns a screen sink logging through logger.
func New(logger log.Logger) *Sink {
	return &Sink{logger: logger}
}

func (s *Sink) Name() string { return name }

func (s *Sink) Write(_ context.Context, ev domain.TelemetryEvent) error {
	s.logger.Info(Fields(ev), ev.Type)
	return nil
}

func (s *Sink) Close() error { return nil }

// Fields flattens an event into log fields keyed like its JSON form.
func Fields(ev domain.TelemetryEvent) map[string]any {
	fields := map[string]any{
		"module":                   ev.Module,
		"@timestamp":               ev.TimestampMs,
		"sourceIPv4Address":        ev.SourceAddr,
		"sourceTransportPort":      ev.SourcePort,
		"destinationIPv4Address":   ev.DestAddr,
		"destinationTransportPort": ev.DestPort,
		"type":                     ev.Type,
		"command":                  ev.Description,
		"success":                  ev.Success,
	}
	if ev.Sensor != "" {
		fields["sensor"] = ev.Sensor
	}
	if ev.Transport != "" {
		fields["transport"] = ev.Transport
	}
	if ev.Zone != "" {
		fields["zone"] = ev.Zone
	}
	return fields
}

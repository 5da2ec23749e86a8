// Package telemetry turns answered queries into security events and hands
// them off for delivery without ever holding up the answer path.
package telemetry

import (
	"sync/atomic"

	"github.com/haukened/decoy-dns/internal/dns/common/log"
	"github.com/haukened/decoy-dns/internal/dns/common/utils"
	"github.com/haukened/decoy-dns/internal/dns/domain"
)

// Dispatcher accepts events for asynchronous delivery. Dispatch must not
// block; it reports false when the event was rejected.
type Dispatcher interface {
	Dispatch(event domain.TelemetryEvent) bool
}

// Emitter assembles TelemetryEvents and forwards them to a Dispatcher.
type Emitter struct {
	dispatcher Dispatcher
	sensor     string
	logger     log.Logger
	dropped    atomic.Uint64
}

// NewEmitter returns an Emitter that stamps events with sensor and sends them
// to d. A nil logger falls back to the global logger.
func NewEmitter(d Dispatcher, sensor string, logger log.Logger) *Emitter {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Emitter{
		dispatcher: d,
		sensor:     utils.TrimDNSName(sensor),
		logger:     logger,
	}
}

// Emit records one event. It returns immediately whether or not the
// dispatcher accepted the event; rejected events are counted and logged at
// debug level.
func (e *Emitter) Emit(eventType, description string, success bool, sess domain.Session, q domain.Question) {
	event := NewEvent(eventType, description, success, e.sensor, sess, q)
	if e.dispatcher != nil && e.dispatcher.Dispatch(event) {
		return
	}
	e.dropped.Add(1)
	e.logger.Debug(map[string]any{
		"type":   eventType,
		"source": event.SourceAddr,
	}, "telemetry event dropped")
}

// Dropped returns how many events the dispatcher has rejected.
func (e *Emitter) Dropped() uint64 {
	return e.dropped.Load()
}

// NewEvent builds the TelemetryEvent for a query. The timestamp comes from
// the session, or from the question when the session has none.
func NewEvent(eventType, description string, success bool, sensor string, sess domain.Session, q domain.Question) domain.TelemetryEvent {
	ts := sess.Timestamp
	if ts.IsZero() {
		ts = q.ReceivedAt
	}

	event := domain.TelemetryEvent{
		Module:      domain.TelemetryModule,
		TimestampMs: ts.UnixMilli(),
		SourcePort:  sess.ClientPort,
		DestPort:    sess.ServerPort,
		Type:        eventType,
		Description: description,
		Success:     success,
		Sensor:      sensor,
		Transport:   sess.Transport,
		Zone:        utils.GetApexDomain(q.Name),
	}
	if sess.ClientAddr.IsValid() {
		event.SourceAddr = sess.ClientAddr.String()
	}
	if sess.ServerAddr.IsValid() {
		event.DestAddr = sess.ServerAddr.String()
	}
	return event
}

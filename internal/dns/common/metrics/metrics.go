// Package metrics exposes decoy counters to Prometheus on a private registry.
// Every method is safe on a nil *Metrics so components can run unmetered in
// tests.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "decoy"

// Metrics holds the collectors shared by the responder, dispatcher and sinks.
type Metrics struct {
	registry   *prometheus.Registry
	queries    *prometheus.CounterVec
	events     *prometheus.CounterVec
	sinkErrors *prometheus.CounterVec
	firstSeen  prometheus.Counter
}

// New returns Metrics registered on a fresh registry, including the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "How many DNS queries were answered, by query kind",
			},
			[]string{"kind"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telemetry_events_total",
				Help:      "Telemetry events handed to the dispatcher, by outcome",
			},
			[]string{"outcome"},
		),
		sinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sink_errors_total",
				Help:      "Failed telemetry deliveries, by sink",
			},
			[]string{"sink"},
		),
		firstSeen: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sources_first_seen_total",
				Help:      "Source addresses observed for the first time",
			},
		),
	}
	m.registry.MustRegister(
		m.queries,
		m.events,
		m.sinkErrors,
		m.firstSeen,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// QueryAnswered counts one answered query of the given kind.
func (m *Metrics) QueryAnswered(kind string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(kind).Inc()
}

// EventQueued counts an event accepted by the dispatcher.
func (m *Metrics) EventQueued() {
	if m == nil {
		return
	}
	m.events.WithLabelValues("queued").Inc()
}

// EventDropped counts an event rejected because the queue was full or closed.
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.events.WithLabelValues("dropped").Inc()
}

// SinkFailed counts a failed delivery to the named sink.
func (m *Metrics) SinkFailed(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// SourceFirstSeen counts a never-before-seen source address.
func (m *Metrics) SourceFirstSeen() {
	if m == nil {
		return
	}
	m.firstSeen.Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the registry in exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ListenAndServe serves /metrics on addr until ctx is cancelled.
func (m *Metrics) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

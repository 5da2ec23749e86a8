// Package dispatch decouples telemetry delivery from the answer path. Events
// wait in a bounded queue and a single worker fans each one out to every
// enabled sink.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/haukened/decoy-dns/internal/dns/common/log"
	"github.com/haukened/decoy-dns/internal/dns/domain"
)

// Sink is a telemetry destination. Write is called from the dispatcher's
// single worker, so implementations need no locking of their own unless
// they flush in the background.
type Sink interface {
	Name() string
	Write(ctx context.Context, event domain.TelemetryEvent) error
	Close() error
}

// ContextCloser is implemented by sinks whose Close does network I/O. The
// dispatcher passes them its shutdown deadline instead of calling Close.
type ContextCloser interface {
	CloseContext(ctx context.Context) error
}

// EventCounter observes dispatcher outcomes.
type EventCounter interface {
	EventQueued()
	EventDropped()
	SinkFailed(sink string)
}

type noopCounter struct{}

func (noopCounter) EventQueued()      {}
func (noopCounter) EventDropped()     {}
func (noopCounter) SinkFailed(string) {}

type Options struct {
	// Queue is the maximum number of events waiting for delivery.
	Queue   int
	Sinks   []Sink
	Logger  log.Logger
	Metrics EventCounter
}

// Dispatcher implements the telemetry emitter's hand-off.
type Dispatcher struct {
	queue   chan domain.TelemetryEvent
	sinks   []Sink
	logger  log.Logger
	metrics EventCounter

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// New starts a Dispatcher. A queue size below one is raised to one.
func New(opts Options) *Dispatcher {
	if opts.Queue < 1 {
		opts.Queue = 1
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopCounter{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queue:   make(chan domain.TelemetryEvent, opts.Queue),
		sinks:   opts.Sinks,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Dispatch enqueues event without blocking. It returns false when the queue
// is full or the dispatcher is closed.
func (d *Dispatcher) Dispatch(event domain.TelemetryEvent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.metrics.EventDropped()
		return false
	}
	select {
	case d.queue <- event:
		d.metrics.EventQueued()
		return true
	default:
		d.metrics.EventDropped()
		return false
	}
}

// Sinks returns the names of the configured sinks.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.queue {
		if d.ctx.Err() != nil {
			d.metrics.EventDropped()
			continue
		}
		for _, s := range d.sinks {
			d.deliver(s, event)
		}
	}
}

// deliver writes to one sink, containing its errors and panics.
func (d *Dispatcher) deliver(s Sink, event domain.TelemetryEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.fail(s, fmt.Errorf("sink panicked: %v", r))
		}
	}()
	if err := s.Write(d.ctx, event); err != nil {
		d.fail(s, err)
	}
}

func (d *Dispatcher) fail(s Sink, err error) {
	d.metrics.SinkFailed(s.Name())
	d.logger.Warn(map[string]any{
		"sink":  s.Name(),
		"error": err.Error(),
	}, "telemetry sink write failed")
}

// Close stops accepting events, delivers what is queued and closes every
// sink. If ctx ends while draining, the write in progress sees a cancelled
// context and events still queued are dropped and counted. Sinks that
// implement ContextCloser are closed under ctx; the error returned then wraps
// ctx.Err().
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	var errs []error
	select {
	case <-d.done:
	case <-ctx.Done():
		d.cancel()
		<-d.done
		errs = append(errs, fmt.Errorf("draining telemetry queue: %w", ctx.Err()))
	}
	d.cancel()

	for _, s := range d.sinks {
		if err := closeSink(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("closing sink %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func closeSink(ctx context.Context, s Sink) error {
	if cc, ok := s.(ContextCloser); ok {
		return cc.CloseContext(ctx)
	}
	return s.Close()
}

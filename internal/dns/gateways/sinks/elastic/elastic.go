// Package elastic ships telemetry events to an Elasticsearch-compatible
// _bulk endpoint in batches.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/haukened/decoy-dns/internal/dns/common/log"
	"github.com/haukened/decoy-dns/internal/dns/domain"
)

const name = "elasticsearch"

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("elasticsearch sink closed")

// FailureCounter counts batches that were dropped.
type FailureCounter interface {
	SinkFailed(sink string)
}

type Options struct {
	// URL is the cluster base URL, e.g. http://127.0.0.1:9200.
	URL   string
	Index string
	// Batch is the number of buffered events that triggers a flush.
	Batch int
	// Interval flushes whatever is buffered at least this often.
	Interval time.Duration
	// RetryDelay overrides the jittered pause before the single retry.
	RetryDelay time.Duration
	Client     *http.Client
	Logger     log.Logger
	Failures   FailureCounter
}

// Sink buffers events and posts them as NDJSON bulk requests. Each batch is
// retried once after a short pause and then dropped so a dead cluster never
// backs up the dispatcher.
type Sink struct {
	endpoint   string
	index      string
	batch      int
	retryDelay time.Duration
	client     *http.Client
	logger     log.Logger
	failures   FailureCounter

	mu       sync.Mutex
	buf      []domain.TelemetryEvent
	closed   bool
	closeCtx context.Context
	closeErr error

	// runCtx bounds background flushes; CloseContext cancels it when its
	// own deadline passes.
	runCtx    context.Context
	runCancel context.CancelFunc

	kick      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New validates opts and starts the background flusher.
func New(opts Options) (*Sink, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid elasticsearch url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid elasticsearch url %q", opts.URL)
	}
	if opts.Index == "" {
		return nil, errors.New("elasticsearch index must not be empty")
	}
	if opts.Batch < 1 {
		opts.Batch = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		}
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	s := &Sink{
		runCtx:     runCtx,
		runCancel:  runCancel,
		endpoint:   strings.TrimRight(u.String(), "/") + "/_bulk",
		index:      opts.Index,
		batch:      opts.Batch,
		retryDelay: opts.RetryDelay,
		client:     opts.Client,
		logger:     opts.Logger,
		failures:   opts.Failures,
		buf:        make([]domain.TelemetryEvent, 0, opts.Batch),
		kick:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go s.loop(opts.Interval)
	return s, nil
}

func (s *Sink) Name() string { return name }

// Endpoint returns the bulk URL requests are posted to.
func (s *Sink) Endpoint() string { return s.endpoint }

// Write buffers ev. It never performs I/O itself.
func (s *Sink) Write(_ context.Context, ev domain.TelemetryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.buf = append(s.buf, ev)
	if len(s.buf) >= s.batch {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

// Close flushes buffered events and stops the flusher.
func (s *Sink) Close() error {
	return s.CloseContext(context.Background())
}

// CloseContext is Close bounded by ctx. Requests still in flight when ctx
// ends are abandoned, and the events they carried are dropped. The returned
// error wraps ctx.Err() in that case.
func (s *Sink) CloseContext(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.closeCtx = ctx
		s.mu.Unlock()
		close(s.stop)

		select {
		case <-s.done:
		case <-ctx.Done():
			s.runCancel()
			<-s.done
		}
		s.runCancel()
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

func (s *Sink) loop(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.kick:
			s.flush(s.runCtx)
		case <-ticker.C:
			s.flush(s.runCtx)
		case <-s.stop:
			s.mu.Lock()
			ctx := s.closeCtx
			s.mu.Unlock()

			if dropped := s.flush(ctx); dropped > 0 && ctx.Err() != nil {
				s.mu.Lock()
				s.closeErr = fmt.Errorf("%d events undelivered at close: %w", dropped, ctx.Err())
				s.mu.Unlock()
			}
			return
		}
	}
}

// flush sends everything buffered, in batch-sized requests, and returns how
// many events were dropped.
func (s *Sink) flush(ctx context.Context) int {
	s.mu.Lock()
	pending := s.buf
	s.buf = make([]domain.TelemetryEvent, 0, s.batch)
	s.mu.Unlock()

	dropped := 0
	for len(pending) > 0 {
		n := min(len(pending), s.batch)
		if !s.sendWithRetry(ctx, pending[:n]) {
			dropped += n
		}
		pending = pending[n:]
	}
	return dropped
}

// sendWithRetry reports whether batch was delivered.
func (s *Sink) sendWithRetry(ctx context.Context, batch []domain.TelemetryEvent) bool {
	err := s.send(ctx, batch)
	if err == nil {
		return true
	}

	delay := s.retryDelay
	if delay <= 0 {
		delay = time.Duration(100+rand.IntN(200)) * time.Millisecond
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		err = s.send(ctx, batch)
	case <-ctx.Done():
		err = fmt.Errorf("retry abandoned: %w", ctx.Err())
	}

	if err != nil {
		s.fail(len(batch), err, "elasticsearch bulk insert failed, dropping batch")
		return false
	}
	return true
}

func (s *Sink) fail(n int, err error, msg string) {
	if s.failures != nil {
		s.failures.SinkFailed(name)
	}
	s.logger.Warn(map[string]any{
		"events": n,
		"error":  err.Error(),
	}, msg)
}

// bulkResponse is the subset of the _bulk reply we inspect.
type bulkResponse struct {
	Errors bool `json:"errors"`
}

func (s *Sink) send(ctx context.Context, batch []domain.TelemetryEvent) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	action := map[string]map[string]string{"index": {"_index": s.index}}
	for _, ev := range batch {
		if err := enc.Encode(action); err != nil {
			return err
		}
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("elasticsearch status=%s body=%q", resp.Status, string(b))
	}

	// Item-level rejections are not retried; resending would duplicate the
	// documents that were accepted.
	var br bulkResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&br); err == nil && br.Errors {
		s.fail(len(batch), errors.New("bulk response reported item errors"), "elasticsearch rejected some events")
	}
	return nil
}

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"runtime/debug"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/haukened/decoy-dns/internal/dns/common/clock"
	"github.com/haukened/decoy-dns/internal/dns/common/log"
	"github.com/haukened/decoy-dns/internal/dns/domain"
	"github.com/haukened/decoy-dns/internal/dns/gateways/wire"
)

const (
	defaultReadTimeout  = 2 * time.Second
	defaultWriteTimeout = 2 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// Options configures a DNSTransport.
type Options struct {
	// Network is "udp" or "tcp".
	Network string
	// Addr is the listen address, e.g. ":53".
	Addr  string
	Codec wire.DNSCodec
	Clock clock.Clock
	// ServerAddr is reported as the session's server address whenever the
	// socket is bound to an unspecified address.
	ServerAddr   netip.Addr
	Logger       log.Logger
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DNSTransport implements ServerTransport on a miekg/dns server.
type DNSTransport struct {
	network      string
	addr         string
	codec        wire.DNSCodec
	clock        clock.Clock
	serverAddr   netip.Addr
	logger       log.Logger
	readTimeout  time.Duration
	writeTimeout time.Duration

	mu      sync.RWMutex
	server  *dns.Server
	bound   string
	running bool
	done    chan struct{}
}

// NewDNSTransport validates opts and returns an unstarted transport.
func NewDNSTransport(opts Options) (*DNSTransport, error) {
	if opts.Network != "udp" && opts.Network != "tcp" {
		return nil, fmt.Errorf("unsupported network %q", opts.Network)
	}
	if opts.Codec == nil {
		return nil, errors.New("transport requires a codec")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &DNSTransport{
		network:      opts.Network,
		addr:         opts.Addr,
		codec:        opts.Codec,
		clock:        opts.Clock,
		serverAddr:   opts.ServerAddr,
		logger:       opts.Logger,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
	}, nil
}

// Start binds the socket and serves until Stop is called or ctx is done.
func (t *DNSTransport) Start(ctx context.Context, handler QueryHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("%s transport already running", t.network)
	}

	srv := &dns.Server{
		Net:          t.network,
		ReadTimeout:  t.readTimeout,
		WriteTimeout: t.writeTimeout,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
			t.serveDNS(ctx, w, req, handler)
		}),
	}

	var sock io.Closer
	switch t.network {
	case "udp":
		pc, err := net.ListenPacket("udp", t.addr)
		if err != nil {
			return fmt.Errorf("failed to bind UDP socket on %s: %w", t.addr, err)
		}
		srv.PacketConn = pc
		sock = pc
		t.bound = pc.LocalAddr().String()
	case "tcp":
		l, err := net.Listen("tcp", t.addr)
		if err != nil {
			return fmt.Errorf("failed to bind TCP socket on %s: %w", t.addr, err)
		}
		srv.Listener = l
		sock = l
		t.bound = l.Addr().String()
	}
	srv.Addr = t.bound

	started := make(chan struct{})
	srv.NotifyStartedFunc = func() { close(started) }

	served := make(chan error, 1)
	go func() {
		served <- srv.ActivateAndServe()
	}()

	select {
	case <-started:
	case err := <-served:
		_ = sock.Close()
		return fmt.Errorf("%s server on %s failed to start: %w", t.network, t.bound, err)
	}

	t.server = srv
	t.running = true
	t.done = make(chan struct{})

	go t.watch(ctx, served, t.done)

	t.logger.Info(map[string]any{
		"transport": t.network,
		"address":   t.bound,
	}, "DNS transport started")
	return nil
}

// watch stops the server when ctx ends and logs unexpected serve errors.
func (t *DNSTransport) watch(ctx context.Context, served <-chan error, done <-chan struct{}) {
	select {
	case <-ctx.Done():
		if err := t.Stop(); err != nil {
			t.logger.Warn(map[string]any{
				"transport": t.network,
				"error":     err.Error(),
			}, "error stopping DNS transport")
		}
	case <-done:
	case err := <-served:
		if err != nil {
			t.logger.Error(map[string]any{
				"transport": t.network,
				"error":     err.Error(),
			}, "DNS server stopped unexpectedly")
		}
	}
}

// Stop gracefully shuts the server down.
func (t *DNSTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	t.running = false
	close(t.done)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := t.server.ShutdownContext(ctx)

	t.logger.Info(map[string]any{
		"transport": t.network,
		"address":   t.bound,
	}, "DNS transport stopped")
	return err
}

// Address returns the bound address once started.
func (t *DNSTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.bound != "" {
		return t.bound
	}
	return t.addr
}

func (t *DNSTransport) Network() string {
	return t.network
}

// serveDNS handles one request on its own goroutine. A panic while handling
// it is logged and answered with SERVFAIL; the server keeps running.
func (t *DNSTransport) serveDNS(ctx context.Context, w dns.ResponseWriter, req *dns.Msg, handler QueryHandler) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error(map[string]any{
				"client":  w.RemoteAddr().String(),
				"recover": fmt.Sprint(r),
				"stack":   string(debug.Stack()),
			}, "recovered in ServeDNS")
			t.write(w, wire.NewErrorReply(req, domain.SERVFAIL))
		}
	}()

	sess := domain.NewSession(w.RemoteAddr(), w.LocalAddr(), t.network, t.clock.Now())
	if (!sess.ServerAddr.IsValid() || sess.ServerAddr.IsUnspecified()) && t.serverAddr.IsValid() {
		sess = sess.WithServerAddr(t.serverAddr)
	}

	q, err := t.codec.DecodeQuery(req)
	if err != nil {
		rcode := domain.FORMERR
		if errors.Is(err, wire.ErrNotQuery) {
			rcode = domain.NOTIMP
		}
		t.logger.Warn(map[string]any{
			"client": w.RemoteAddr().String(),
			"error":  err.Error(),
			"rcode":  rcode.String(),
		}, "failed to decode DNS query")
		t.write(w, wire.NewErrorReply(req, rcode))
		return
	}

	resp := handler.HandleQuery(ctx, q, sess)

	m, err := t.codec.EncodeResponse(req, resp)
	if err != nil {
		t.logger.Error(map[string]any{
			"client":   w.RemoteAddr().String(),
			"query_id": q.ID,
			"error":    err.Error(),
		}, "failed to encode DNS response")
		m = wire.NewErrorReply(req, domain.SERVFAIL)
	}

	if t.network == "udp" {
		size := dns.MinMsgSize
		if opt := req.IsEdns0(); opt != nil && int(opt.UDPSize()) > size {
			size = int(opt.UDPSize())
		}
		m.Truncate(size)
	}
	t.write(w, m)
}

func (t *DNSTransport) write(w dns.ResponseWriter, m *dns.Msg) {
	if err := w.WriteMsg(m); err != nil {
		t.logger.Warn(map[string]any{
			"client": w.RemoteAddr().String(),
			"error":  err.Error(),
		}, "failed to write DNS response")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haukened/decoy-dns/internal/dns/common/clock"
	"github.com/haukened/decoy-dns/internal/dns/common/log"
	"github.com/haukened/decoy-dns/internal/dns/common/metrics"
	"github.com/haukened/decoy-dns/internal/dns/config"
	"github.com/haukened/decoy-dns/internal/dns/gateways/dispatch"
	"github.com/haukened/decoy-dns/internal/dns/gateways/sinks/console"
	"github.com/haukened/decoy-dns/internal/dns/gateways/sinks/elastic"
	"github.com/haukened/decoy-dns/internal/dns/gateways/sinks/file"
	"github.com/haukened/decoy-dns/internal/dns/gateways/transport"
	"github.com/haukened/decoy-dns/internal/dns/gateways/wire"
	"github.com/haukened/decoy-dns/internal/dns/repos/archive"
	"github.com/haukened/decoy-dns/internal/dns/repos/sources"
	"github.com/haukened/decoy-dns/internal/dns/services/decoy"
	"github.com/haukened/decoy-dns/internal/dns/services/telemetry"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "decoy-dnsd"

	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all the components of the decoy server
type Application struct {
	config     *config.AppConfig
	transports []transport.ServerTransport
	responder  *decoy.Responder
	dispatcher *dispatch.Dispatcher
	metrics    *metrics.Metrics
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

// serve loads configuration and runs the server until SIGINT or SIGTERM.
func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		return fmt.Errorf("logging configuration error: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info(map[string]any{
		"version": version,
		"env":     cfg.Env,
		"port":    cfg.Server.Port,
		"domain":  cfg.Server.Domain,
		"mode":    string(cfg.Decoy.Mode),
		"metrics": cfg.Metrics.Addr,
	}, "Starting decoy DNS server")

	app, err := buildApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		return err
	}
	log.Info(nil, "Decoy DNS server stopped gracefully")
	return nil
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := clock.RealClock{}
	logger := log.GetLogger()
	m := metrics.New()

	policy, err := decoy.NewPolicyEngine(cfg.Decoy, nil)
	if err != nil {
		return nil, err
	}

	sinks, err := buildSinks(cfg, m, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry sinks: %w", err)
	}

	dispatcher := dispatch.New(dispatch.Options{
		Queue:   cfg.Telemetry.Queue,
		Sinks:   sinks,
		Logger:  logger,
		Metrics: m,
	})
	log.Info(map[string]any{
		"queue": cfg.Telemetry.Queue,
		"sinks": dispatcher.Sinks(),
	}, "Telemetry dispatcher configured")

	responder := decoy.NewResponder(decoy.ResponderOptions{
		Emitter: telemetry.NewEmitter(dispatcher, cfg.Server.Domain, logger),
		Logger:  logger,
		Metrics: m,
		Policy:  policy,
	})

	codec := wire.NewCodec(clk, logger)
	serverAddr := advertisedAddr(cfg)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	var transports []transport.ServerTransport
	for _, tt := range transport.GetSupportedTransports() {
		t, err := transport.NewTransport(tt, transport.Options{
			Addr:       addr,
			Codec:      codec,
			Clock:      clk,
			ServerAddr: serverAddr,
			Logger:     logger,
		})
		if err != nil {
			_ = dispatcher.Close(context.Background())
			return nil, fmt.Errorf("failed to create %s transport: %w", tt, err)
		}
		transports = append(transports, t)
	}

	return &Application{
		config:     cfg,
		transports: transports,
		responder:  responder,
		dispatcher: dispatcher,
		metrics:    m,
	}, nil
}

// advertisedAddr is the server address reported in telemetry when the
// listeners are bound to the unspecified address.
func advertisedAddr(cfg *config.AppConfig) netip.Addr {
	if cfg.Server.Address != "" {
		if a, err := netip.ParseAddr(cfg.Server.Address); err == nil {
			return a.Unmap()
		}
	}
	a := transport.OutboundAddr()
	if !a.IsValid() {
		log.Warn(nil, "could not detect outbound address; telemetry will report the listener address")
	}
	return a
}

// buildSinks opens every enabled telemetry sink. On failure, sinks already
// opened are closed.
func buildSinks(cfg *config.AppConfig, m *metrics.Metrics, logger log.Logger) ([]dispatch.Sink, error) {
	h := cfg.Telemetry.Handlers
	var sinks []dispatch.Sink

	fail := func(err error) ([]dispatch.Sink, error) {
		for _, s := range sinks {
			_ = s.Close()
		}
		return nil, err
	}

	if h.Screen {
		screenLogger, err := log.New(cfg.Env, cfg.Log.Level, "telemetry")
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, console.New(screenLogger))
	}

	if h.File {
		s, err := file.New(cfg.Telemetry.File.Path)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	if h.Elasticsearch {
		es := cfg.Telemetry.Elasticsearch
		s, err := elastic.New(elastic.Options{
			URL:      es.URL,
			Index:    es.Index,
			Batch:    es.Batch,
			Interval: es.Interval,
			Logger:   logger,
			Failures: m,
		})
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	if h.Archive {
		s, err := archive.Open(cfg.Telemetry.Archive.Path)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	if h.Sources {
		s, err := sources.New(sources.Options{
			Size:    cfg.Telemetry.Sources.Size,
			Logger:  logger,
			Metrics: m,
		})
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	return sinks, nil
}

// Run starts every transport and the metrics endpoint, then blocks until ctx
// is cancelled or a component fails.
func (app *Application) Run(ctx context.Context) error {
	started := make([]transport.ServerTransport, 0, len(app.transports))
	for _, t := range app.transports {
		if err := t.Start(ctx, app.responder); err != nil {
			app.shutdown(started)
			return fmt.Errorf("failed to start %s transport: %w", t.Network(), err)
		}
		started = append(started, t)
		log.Info(map[string]any{
			"address":   t.Address(),
			"transport": t.Network(),
		}, "DNS server started")
	}

	g, gctx := errgroup.WithContext(ctx)
	if addr := app.config.Metrics.Addr; addr != "" {
		g.Go(func() error {
			log.Info(map[string]any{"address": addr}, "Metrics endpoint listening")
			if err := app.metrics.ListenAndServe(gctx, addr); err != nil {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	log.Info(nil, "Shutdown initiated")
	app.shutdown(started)
	return err
}

// shutdown stops the listeners first so no new events arrive, then drains
// telemetry.
func (app *Application) shutdown(started []transport.ServerTransport) {
	for _, t := range started {
		if err := t.Stop(); err != nil {
			log.Warn(map[string]any{
				"transport": t.Network(),
				"error":     err.Error(),
			}, "Error during transport shutdown")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := app.dispatcher.Close(ctx); err != nil {
		fields := map[string]any{"error": err.Error()}
		if errors.Is(err, context.DeadlineExceeded) {
			fields["timeout"] = defaultShutdownTimeout.String()
		}
		log.Warn(fields, "Error during telemetry shutdown")
	}
}

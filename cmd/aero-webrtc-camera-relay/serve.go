package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/auth"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/camera"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/gateway"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/httpserver"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/links"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/policy"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/ratelimit"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/sdprelay"
)

const linkSweepInterval = time.Minute

func newServeCmd(lookup lookupFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway that negotiates camera offers with the relay",
		Args:  cobra.NoArgs,
	}
	loader, loaderErr := config.NewLoader(lookup, cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if loaderErr != nil {
			return loaderErr
		}
		cfg, err := loader.Load()
		if err != nil {
			return err
		}
		logger, err := config.NewLogger(cfg)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, logger)
	}
	return cmd
}

type app struct {
	server     *httpserver.Server
	links      *links.Store
	metrics    *metrics.Metrics
	cameras    *camera.Registry
	negotiator sdprelay.Negotiator
}

// buildApp wires the gateway onto a new HTTP server without listening.
func buildApp(cfg config.Config, logger *slog.Logger, build httpserver.BuildInfo) (*app, error) {
	client, err := sdprelay.NewClient(cfg.RelayClientConfig(logger))
	if err != nil {
		return nil, fmt.Errorf("configure relay client: %w", err)
	}

	statics := make([]camera.Camera, 0, len(cfg.Cameras))
	for _, c := range cfg.Cameras {
		statics = append(statics, camera.Static{CameraID: c.ID, CameraName: c.Name, Source: c.Source})
	}
	registry, err := camera.NewRegistry(camera.WrapAll(statics, client, cfg.RelayTimeout))
	if err != nil {
		return nil, err
	}

	sourcePolicy, err := policy.Parse(cfg.AllowSourceURLs, cfg.SourceSchemes, cfg.SourceHosts, cfg.SourceCIDRs)
	if err != nil {
		return nil, err
	}
	verifier, err := auth.NewVerifier(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	store := links.New(nil)
	limiter := ratelimit.New(cfg.MaxConcurrentOffers, cfg.MaxOffersPerSecond, cfg.OfferBurst)
	gw, err := gateway.New(gateway.Config{
		Cameras:      registry,
		Negotiator:   client,
		Links:        store,
		Policy:       sourcePolicy,
		Limiter:      limiter,
		Metrics:      m,
		Logger:       logger,
		AuthMode:     cfg.AuthMode,
		Verifier:     verifier,
		OfferTimeout: cfg.RelayTimeout,
		MaxBodyBytes: cfg.MaxOfferBytes,
		LinkTTL:      cfg.LinkTTL,
		LinkMaxTTL:   cfg.LinkMaxTTL,
		LinkUses:     cfg.LinkUses,
	})
	if err != nil {
		return nil, err
	}

	srv := httpserver.New(httpserver.Options{
		ListenAddr:     cfg.ListenAddr,
		Build:          build,
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger)
	gw.RegisterRoutes(srv.Mux())
	srv.Mux().Handle("GET /metrics", metrics.PrometheusHandler(m,
		metrics.Gauge{
			Name:  "aero_webrtc_camera_relay_offers_in_flight",
			Help:  "Offers currently being negotiated with the relay.",
			Value: func() float64 { return float64(limiter.InFlight()) },
		},
		metrics.Gauge{
			Name:  "aero_webrtc_camera_relay_share_links",
			Help:  "Share links held in memory, including exhausted ones not yet expired.",
			Value: func() float64 { return float64(store.Len()) },
		},
	))
	srv.AddReadinessCheck(func() error {
		if registry.Len() == 0 && !cfg.AllowSourceURLs {
			return errors.New("no cameras configured and direct source urls disabled")
		}
		return nil
	})

	return &app{server: srv, links: store, metrics: m, cameras: registry, negotiator: client}, nil
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("starting aero-webrtc-camera-relay",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"relay_host", safeURLHost(cfg.RelayBaseURL),
		"relay_timeout", cfg.RelayTimeout,
		"cameras", len(cfg.Cameras),
		"auth_mode", cfg.AuthMode,
		"allow_source_urls", cfg.AllowSourceURLs,
		"max_concurrent_offers", cfg.MaxConcurrentOffers,
	)
	logStartupSecurityWarnings(logger, cfg)

	a, err := buildApp(cfg, logger, resolveBuildInfo(buildVersion, buildCommit, buildTime))
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Serve(ln)
	}()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepLinks(sweepCtx, a.links, linkSweepInterval, logger)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server exited: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server exited after shutdown: %w", err)
	}
	return nil
}

func sweepLinks(ctx context.Context, store *links.Store, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				logger.Debug("expired share links removed", "count", n, "remaining", store.Len())
			}
		}
	}
}

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

	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/httpserver"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/relayserver"
)

type relayOptions struct {
	listenAddr      string
	logFormat       string
	logLevel        string
	peerLifetime    time.Duration
	answerTimeout   time.Duration
	maxRequestBytes int64
	shutdownTimeout time.Duration
}

// newRelayCmd runs the reference relay for local development: point
// RELAY_BASE_URL of "serve" at it.
func newRelayCmd() *cobra.Command {
	opts := relayOptions{}
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run a reference SDP relay backed by pion (development only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := config.ParseLogFormat(opts.logFormat)
			if err != nil {
				return err
			}
			level, err := config.ParseLogLevel(opts.logLevel)
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(config.Config{LogFormat: format, LogLevel: level})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRelay(ctx, opts, logger)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.listenAddr, "listen-addr", "127.0.0.1:8081", "Relay listen address (host:port)")
	fs.StringVar(&opts.logFormat, "log-format", string(config.LogFormatText), "Log format: text or json")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.DurationVar(&opts.peerLifetime, "peer-lifetime", relayserver.DefaultPeerLifetime, "How long answered peer connections are kept")
	fs.DurationVar(&opts.answerTimeout, "answer-timeout", relayserver.DefaultAnswerTimeout, "Max time to build an answer")
	fs.Int64Var(&opts.maxRequestBytes, "max-request-bytes", relayserver.DefaultMaxRequestBytes, "Max request message size")
	fs.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", config.DefaultShutdown, "Graceful shutdown timeout")
	return cmd
}

func runRelay(ctx context.Context, opts relayOptions, logger *slog.Logger) error {
	answerer, err := relayserver.NewPionAnswerer(relayserver.PionConfig{
		LoggerFactory: relayserver.SlogLoggerFactory{Logger: logger},
		Lifetime:      opts.peerLifetime,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("configure webrtc: %w", err)
	}
	defer answerer.Close()

	m := metrics.New()
	relay, err := relayserver.New(relayserver.Config{
		Answerer:        answerer,
		Logger:          logger,
		Metrics:         m,
		MaxRequestBytes: opts.maxRequestBytes,
		AnswerTimeout:   opts.answerTimeout,
	})
	if err != nil {
		return err
	}

	srv := httpserver.New(httpserver.Options{
		ListenAddr: opts.listenAddr,
		Build:      resolveBuildInfo(buildVersion, buildCommit, buildTime),
	}, logger)
	relay.RegisterRoutes(srv.Mux())
	srv.Mux().Handle("GET /metrics", metrics.PrometheusHandler(m, metrics.Gauge{
		Name:  "aero_webrtc_camera_relay_reference_peers",
		Help:  "Peer connections held open by the reference relay.",
		Value: func() float64 { return float64(answerer.Active()) },
	}))

	ln, err := net.Listen("tcp", opts.listenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("starting reference relay", "listen_addr", ln.Addr().String(), "peer_lifetime", opts.peerLifetime)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("relay shutdown failed", "err", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Package httpserver hosts the HTTP surfaces of the camera relay: the health
// and version probes, and whatever routes callers register on Mux.
package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/origin"
)

var ErrServerClosed = http.ErrServerClosed

// DefaultBrowserPathPrefix is where the gateway mounts its browser routes.
const DefaultBrowserPathPrefix = "/webrtc/"

type BuildInfo struct {
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
}

type Options struct {
	ListenAddr string
	Build      BuildInfo

	// AllowedOrigins lists normalized browser origins accepted on routes under
	// BrowserPathPrefix. Empty means same host only.
	AllowedOrigins    []string
	BrowserPathPrefix string
}

// ReadinessCheck reports a reason the server should not receive traffic.
type ReadinessCheck func() error

type Server struct {
	log   *slog.Logger
	build BuildInfo

	serving  atomic.Bool
	checksMu sync.Mutex
	checks   []ReadinessCheck

	mux *http.ServeMux
	srv *http.Server
}

func New(opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := opts.BrowserPathPrefix
	if prefix == "" {
		prefix = DefaultBrowserPathPrefix
	}

	s := &Server{
		log:   logger,
		build: opts.Build,
		mux:   http.NewServeMux(),
	}
	s.registerProbes()

	handler := chain(s.mux,
		recoverMiddleware(logger),
		requestIDMiddleware(),
		requestLoggerMiddleware(logger),
		originMiddleware(origin.NewPolicy(opts.AllowedOrigins), prefix),
	)

	s.srv = &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// Offer handlers block on the relay; their deadline comes from the
		// relay timeout, not the server.
		IdleTimeout: 120 * time.Second,
	}
	return s
}

// AddReadinessCheck registers a check consulted by /readyz. Call it during
// startup, before Serve.
func (s *Server) AddReadinessCheck(check ReadinessCheck) {
	s.checksMu.Lock()
	s.checks = append(s.checks, check)
	s.checksMu.Unlock()
}

// Mux is where callers register their routes during startup.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

func (s *Server) Serve(l net.Listener) error {
	s.serving.Store(true)
	s.log.Info("http server serving", "addr", l.Addr().String())
	return s.srv.Serve(l)
}

// Shutdown flips /readyz to unavailable before draining connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serving.Store(false)
	return s.srv.Shutdown(ctx)
}

func (s *Server) Close() error {
	s.serving.Store(false)
	return s.srv.Close()
}

func (s *Server) notReadyReason() string {
	if !s.serving.Load() {
		return "not serving"
	}
	s.checksMu.Lock()
	defer s.checksMu.Unlock()
	for _, check := range s.checks {
		if err := check(); err != nil {
			return err.Error()
		}
	}
	return ""
}

func (s *Server) registerProbes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	s.mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if reason := s.notReadyReason(); reason != "" {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false, "error": reason})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"ready": true})
	})

	s.mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, s.build)
	})
}

// WriteJSON writes v as the response body with a JSON Content-Type.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package gateway is the HTTP surface browsers use to obtain a WebRTC answer
// for a camera stream.
//
// Routes:
//
//	GET  /webrtc/cameras               list cameras that can be negotiated
//	POST /webrtc/offer                 {camera|url, sdp} -> {sdp}
//	POST /webrtc/links                 {camera|url, ttl, uses} -> share link
//	POST /webrtc/links/{id}/offer      {sdp} -> {sdp}
//
// Link offers are authorized by the link itself; every other route requires
// the configured credentials.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/auth"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/camera"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/httpserver"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/links"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/policy"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/ratelimit"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/sdprelay"
)

const DefaultMaxBodyBytes = 64 * 1024

type Config struct {
	Cameras *camera.Registry
	// Negotiator serves caller-supplied url sources.
	Negotiator sdprelay.Negotiator
	Links      *links.Store
	Policy     *policy.SourcePolicy
	Limiter    *ratelimit.Limiter
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	AuthMode config.AuthMode
	Verifier auth.Verifier

	// OfferTimeout is passed to the negotiator for url sources. Zero uses the
	// negotiator's default.
	OfferTimeout time.Duration
	MaxBodyBytes int64

	LinkTTL    time.Duration
	LinkMaxTTL time.Duration
	LinkUses   int
}

type Handler struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config) (*Handler, error) {
	if cfg.Negotiator == nil {
		return nil, errors.New("gateway: negotiator is required")
	}
	if cfg.Links == nil {
		cfg.Links = links.New(nil)
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.NewSourcePolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = config.DefaultLinkTTL
	}
	if cfg.LinkMaxTTL <= 0 {
		cfg.LinkMaxTTL = config.DefaultLinkMaxTTL
	}
	if cfg.LinkUses <= 0 {
		cfg.LinkUses = config.DefaultLinkUses
	}
	if cfg.AuthMode != config.AuthModeNone && cfg.AuthMode != "" && cfg.Verifier == nil {
		return nil, fmt.Errorf("gateway: auth mode %q requires a verifier", cfg.AuthMode)
	}
	return &Handler{cfg: cfg, log: cfg.Logger}, nil
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /webrtc/cameras", h.authenticated(h.handleListCameras))
	mux.HandleFunc("POST /webrtc/offer", h.authenticated(h.handleOffer))
	mux.HandleFunc("POST /webrtc/links", h.authenticated(h.handleCreateLink))
	mux.HandleFunc("POST /webrtc/links/{id}/offer", h.handleLinkOffer)
}

func (h *Handler) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := auth.Authenticate(h.cfg.AuthMode, h.cfg.Verifier, r); err != nil {
			h.cfg.Metrics.Inc(metrics.RejectedUnauthorized)
			writeError(w, err)
			return
		}
		next(w, r)
	}
}

type cameraInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) handleListCameras(w http.ResponseWriter, r *http.Request) {
	cams := h.cfg.Cameras.List()
	out := make([]cameraInfo, 0, len(cams))
	for _, cam := range cams {
		out = append(out, cameraInfo{ID: cam.ID(), Name: cam.Name()})
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"cameras": out})
}

func (h *Handler) handleOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := decodeBody(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := h.checkTarget(req.target); err != nil {
		writeError(w, err)
		return
	}
	h.negotiate(w, r, func() (target, error) { return req.target, nil }, req.SDP)
}

func (h *Handler) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decodeBody(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, err)
		return
	}
	ttl, uses, err := req.resolve(h.cfg.LinkTTL, h.cfg.LinkMaxTTL, h.cfg.LinkUses)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.checkTarget(req.target); err != nil {
		writeError(w, err)
		return
	}

	value, err := json.Marshal(req.target)
	if err != nil {
		writeError(w, err)
		return
	}
	link, err := h.cfg.Links.Create(string(value), ttl, uses)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cfg.Metrics.Inc(metrics.LinkCreated)
	h.log.Info("share link created",
		"link_id", link.ID,
		"camera", req.Camera,
		"expires_at", link.ExpiresAt,
		"uses", link.Uses,
		"request_id", httpserver.RequestID(r.Context()),
	)

	httpserver.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":        link.ID,
		"expiresAt": link.ExpiresAt.UTC().Format(time.RFC3339),
		"uses":      link.Uses,
		"offerPath": "/webrtc/links/" + link.ID + "/offer",
	})
}

func (h *Handler) handleLinkOffer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SDP string `json:"sdp"`
	}
	if err := decodeBody(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.SDP == "" {
		writeError(w, badRequest("sdp is required"))
		return
	}

	id := r.PathValue("id")
	h.negotiate(w, r, func() (target, error) { return h.useLink(id) }, req.SDP)
}

// useLink spends one use of link id and returns its target.
func (h *Handler) useLink(id string) (target, error) {
	value, err := h.cfg.Links.Use(id)
	if err != nil {
		if errors.Is(err, links.ErrGone) {
			h.cfg.Metrics.Inc(metrics.LinkGone)
		}
		return target{}, err
	}
	h.cfg.Metrics.Inc(metrics.LinkUsed)

	var t target
	if err := json.Unmarshal([]byte(value), &t); err != nil {
		return target{}, fmt.Errorf("gateway: corrupt link %s: %w", id, err)
	}
	return t, nil
}

// checkTarget verifies a target exists and may be used, before any relay
// session or link is created for it.
func (h *Handler) checkTarget(t target) error {
	if t.Camera != "" {
		_, err := h.cfg.Cameras.Lookup(t.Camera)
		return err
	}
	if err := h.cfg.Policy.AllowSource(t.URL); err != nil {
		h.cfg.Metrics.Inc(metrics.RejectedSourcePolicy)
		return err
	}
	return nil
}

// negotiate resolves the target only once a limiter slot is held, so a
// rejected request never spends a share link use.
func (h *Handler) negotiate(w http.ResponseWriter, r *http.Request, resolve func() (target, error), offer string) {
	release, err := h.cfg.Limiter.Acquire()
	if err != nil {
		switch {
		case errors.Is(err, ratelimit.ErrRateLimited):
			h.cfg.Metrics.Inc(metrics.RejectedRateLimited)
			w.Header().Set("Retry-After", "1")
		case errors.Is(err, ratelimit.ErrTooManyInFlight):
			h.cfg.Metrics.Inc(metrics.RejectedTooManyOffers)
		}
		writeError(w, err)
		return
	}
	defer release()

	t, err := resolve()
	if err != nil {
		writeError(w, err)
		return
	}

	h.cfg.Metrics.Inc(metrics.NegotiateStarted)
	start := time.Now()

	answer, err := h.answer(r.Context(), t, offer)
	logAttrs := []any{
		"camera", t.Camera,
		"source", sdprelay.RedactSource(t.URL),
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", httpserver.RequestID(r.Context()),
	}
	if err != nil {
		h.recordFailure(err)
		h.log.Warn("webrtc negotiation failed", append(logAttrs, "err", err)...)
		writeError(w, err)
		return
	}
	h.cfg.Metrics.Inc(metrics.NegotiateOK)
	h.log.Info("webrtc negotiation succeeded", logAttrs...)

	w.Header().Set("Cache-Control", "no-store")
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"sdp": answer})
}

func (h *Handler) answer(ctx context.Context, t target, offer string) (string, error) {
	if t.Camera != "" {
		cam, err := h.cfg.Cameras.Lookup(t.Camera)
		if err != nil {
			return "", err
		}
		return cam.HandleOffer(ctx, offer)
	}
	return h.cfg.Negotiator.Negotiate(ctx, t.URL, offer, h.cfg.OfferTimeout)
}

func (h *Handler) recordFailure(err error) {
	if kind, ok := sdprelay.KindOf(err); ok {
		h.cfg.Metrics.Inc(metrics.NegotiateFailedPrefix + kind.String())
		return
	}
	if errors.Is(err, context.Canceled) {
		h.cfg.Metrics.Inc(metrics.NegotiateCanceled)
		return
	}
	h.cfg.Metrics.Inc(metrics.NegotiateFailedPrefix + "other")
}

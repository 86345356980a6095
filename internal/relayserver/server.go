package relayserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/sdprelay"
)

const (
	DefaultMaxRequestBytes = 256 * 1024
	DefaultReadTimeout     = 10 * time.Second
	DefaultAnswerTimeout   = 10 * time.Second

	wsWriteWait = time.Second
)

// Event names recorded by the reference relay.
const (
	EventSessions = "relay_sessions"
	EventAnswered = "relay_answered"
	EventRejected = "relay_rejected"
	EventInvalid  = "relay_invalid_request"
)

// Answerer produces an SDP answer for offer, streaming from source.
type Answerer interface {
	Answer(ctx context.Context, source, offer string, debug bool) (string, error)
}

type AnswererFunc func(ctx context.Context, source, offer string, debug bool) (string, error)

func (f AnswererFunc) Answer(ctx context.Context, source, offer string, debug bool) (string, error) {
	return f(ctx, source, offer, debug)
}

type Config struct {
	Answerer Answerer
	Logger   *slog.Logger
	Metrics  *metrics.Metrics

	MaxRequestBytes int64
	// ReadTimeout bounds the wait for the request after the upgrade.
	ReadTimeout time.Duration
	// AnswerTimeout bounds a single Answer call.
	AnswerTimeout time.Duration
}

type Server struct {
	cfg      Config
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func New(cfg Config) (*Server, error) {
	if cfg.Answerer == nil {
		return nil, errors.New("relayserver: answerer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.AnswerTimeout <= 0 {
		cfg.AnswerTimeout = DefaultAnswerTimeout
	}
	return &Server{
		cfg: cfg,
		log: cfg.Logger,
		upgrader: websocket.Upgrader{
			// Callers are servers, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// RegisterRoutes mounts the relay endpoint at GET /ws.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /ws", s)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	source := query.Get("url")
	debug := query.Get("debug") == "1"

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.cfg.Metrics.Inc(EventSessions)
	log := s.log.With("source", sdprelay.RedactSource(source), "remote_addr", r.RemoteAddr)

	conn.SetReadLimit(s.cfg.MaxRequestBytes)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

	msgType, msg, err := conn.ReadMessage()
	if err != nil {
		if errors.Is(err, websocket.ErrReadLimit) {
			s.cfg.Metrics.Inc(EventInvalid)
			writeClose(conn, websocket.CloseMessageTooBig, "message too large")
		}
		log.Debug("relay session ended before request", "err", err)
		return
	}
	if msgType != websocket.TextMessage {
		s.cfg.Metrics.Inc(EventInvalid)
		writeClose(conn, websocket.CloseUnsupportedData, "expected text message")
		return
	}

	req, err := sdprelay.ParseRequest(msg)
	if err != nil {
		s.cfg.Metrics.Inc(EventInvalid)
		s.reply(conn, log, sdprelay.Reject("invalid request: "+err.Error()))
		return
	}
	if source == "" {
		s.cfg.Metrics.Inc(EventInvalid)
		s.reply(conn, log, sdprelay.Reject("missing url parameter"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AnswerTimeout)
	defer cancel()

	start := time.Now()
	answer, err := s.cfg.Answerer.Answer(ctx, source, req.SDP, debug)
	if err != nil {
		s.cfg.Metrics.Inc(EventRejected)
		log.Info("offer rejected", "err", err, "duration_ms", time.Since(start).Milliseconds())
		s.reply(conn, log, sdprelay.Reject(err.Error()))
		return
	}
	if answer == "" {
		s.cfg.Metrics.Inc(EventRejected)
		s.reply(conn, log, sdprelay.Reject("empty answer"))
		return
	}

	s.cfg.Metrics.Inc(EventAnswered)
	log.Info("offer answered", "duration_ms", time.Since(start).Milliseconds(), "debug", debug)
	s.reply(conn, log, sdprelay.Answer(answer))
}

func (s *Server) reply(conn *websocket.Conn, log *slog.Logger, resp sdprelay.Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		writeClose(conn, websocket.CloseInternalServerErr, "failed to encode response")
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Debug("relay response write failed", "err", err)
		return
	}
	writeClose(conn, websocket.CloseNormalClosure, "")
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}

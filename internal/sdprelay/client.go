package sdprelay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultTimeout          = 15 * time.Second
	DefaultDialTimeout      = 10 * time.Second
	DefaultMaxResponseBytes = int64(1 << 20)

	endpointPath = "/ws"
)

// Negotiator exchanges an SDP offer for an SDP answer for a stream source.
type Negotiator interface {
	Negotiate(ctx context.Context, source, offer string, timeout time.Duration) (string, error)
}

type ClientConfig struct {
	// BaseURL is the relay base address. http/https are mapped to ws/wss.
	BaseURL string

	// Debug adds debug=1 to the relay endpoint query.
	Debug bool

	// Timeout bounds the wait for the relay's reply when Negotiate is called
	// with a zero timeout. Defaults to DefaultTimeout.
	Timeout time.Duration

	// DialTimeout bounds the WebSocket opening handshake.
	DialTimeout time.Duration

	// MaxResponseBytes caps the size of the relay's reply.
	MaxResponseBytes int64

	Logger *slog.Logger

	// Dialer, when set, is copied and used as the base for every session
	// (proxy and TLS settings). HandshakeTimeout is overridden by DialTimeout.
	Dialer *websocket.Dialer
}

// Client is a Negotiator speaking to a single relay deployment.
//
// A Client holds configuration only; every Negotiate call opens and owns its
// own session.
type Client struct {
	base             *url.URL
	debug            bool
	timeout          time.Duration
	dialTimeout      time.Duration
	maxResponseBytes int64
	log              *slog.Logger
	dialer           websocket.Dialer
}

var _ Negotiator = (*Client)(nil)

func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("relay timeout must be > 0")
	}
	if cfg.DialTimeout < 0 {
		return nil, fmt.Errorf("relay dial timeout must be > 0")
	}
	if cfg.MaxResponseBytes < 0 {
		return nil, fmt.Errorf("relay max response bytes must be > 0")
	}

	c := &Client{
		base:             base,
		debug:            cfg.Debug,
		timeout:          cfg.Timeout,
		dialTimeout:      cfg.DialTimeout,
		maxResponseBytes: cfg.MaxResponseBytes,
		log:              cfg.Logger,
	}
	if c.timeout == 0 {
		c.timeout = DefaultTimeout
	}
	if c.dialTimeout == 0 {
		c.dialTimeout = DefaultDialTimeout
	}
	if c.maxResponseBytes == 0 {
		c.maxResponseBytes = DefaultMaxResponseBytes
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if cfg.Dialer != nil {
		c.dialer = *cfg.Dialer
	} else {
		c.dialer = websocket.Dialer{Proxy: websocket.DefaultDialer.Proxy}
	}
	c.dialer.HandshakeTimeout = c.dialTimeout
	return c, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("relay base url must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid relay base url %q: %w", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("invalid relay base url %q: scheme must be http, https, ws or wss", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid relay base url %q: missing host", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("invalid relay base url %q: must not include a query or fragment", raw)
	}
	return u, nil
}

// Timeout returns the reply timeout used when Negotiate gets zero.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Endpoint returns the session address for source:
// <base>/ws?url=<source>[&debug=1].
func (c *Client) Endpoint(source string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + endpointPath
	u.RawPath = ""

	query := "url=" + url.QueryEscape(source)
	if c.debug {
		query += "&debug=1"
	}
	u.RawQuery = query
	return u.String()
}

// Negotiate sends offer to the relay for source and returns the relay's
// answer.
//
// A zero timeout selects the client default. Failures after argument
// validation are *Error values; cancellation of ctx closes the session and
// returns an error wrapping context.Canceled, while an expired ctx deadline
// is reported as ErrTimeout.
func (c *Client) Negotiate(ctx context.Context, source, offer string, timeout time.Duration) (string, error) {
	if source == "" {
		return "", fmt.Errorf("%w: empty stream source", ErrInvalidArgument)
	}
	if offer == "" {
		return "", fmt.Errorf("%w: empty offer", ErrInvalidArgument)
	}
	if timeout < 0 {
		return "", fmt.Errorf("%w: negative timeout %v", ErrInvalidArgument, timeout)
	}
	if timeout == 0 {
		timeout = c.timeout
	}
	if err := ctx.Err(); err != nil {
		return "", contextError(err)
	}

	log := c.log.With("relay_host", c.base.Host, "source", RedactSource(source))
	log.Debug("connecting to relay", "offer_bytes", len(offer))

	conn, err := c.dial(ctx, c.Endpoint(source))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", contextError(ctxErr)
		}
		log.Debug("relay dial failed", "err", err)
		return "", newError(KindUnreachable, err)
	}
	defer conn.Close()

	// Unblocks the read below as soon as ctx is done.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	resp, err := c.exchange(conn, offer, timeout)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", contextError(ctxErr)
		}
		log.Debug("relay exchange failed", "err", err)
		return "", err
	}

	if resp.Error != "" {
		log.Info("relay rejected offer", "relay_error", resp.Error)
		return "", rejected(resp.Error)
	}
	log.Debug("relay answered", "answer_bytes", len(resp.SDP))
	return resp.SDP, nil
}

func (c *Client) dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (http status %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	conn.SetReadLimit(c.maxResponseBytes)
	return conn, nil
}

// exchange performs the single request/response round trip on conn.
func (c *Client) exchange(conn *websocket.Conn, offer string, timeout time.Duration) (Response, error) {
	payload, err := EncodeRequest(offer)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	deadline := time.Now().Add(timeout)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return Response{}, classifyTransportError(err)
	}

	_ = conn.SetReadDeadline(deadline)
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		return Response{}, classifyTransportError(err)
	}
	if msgType != websocket.TextMessage {
		return Response{}, newError(KindMalformedResponse, fmt.Errorf("expected text message, got type %d", msgType))
	}

	resp, err := ParseResponse(data)
	if err != nil {
		return Response{}, newError(KindMalformedResponse, err)
	}
	return resp, nil
}

func classifyTransportError(err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		return newError(KindMalformedResponse, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return newError(KindTimeout, err)
	default:
		return newError(KindConnectionClosed, err)
	}
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, err)
	}
	return fmt.Errorf("sdprelay: negotiation canceled: %w", err)
}

// RedactSource strips credentials from a stream source so it can be logged.
func RedactSource(source string) string {
	u, err := url.Parse(source)
	if err != nil {
		return "[unparseable source]"
	}
	if u.User == nil {
		return u.String()
	}
	u.User = url.User("redacted")
	return u.String()
}

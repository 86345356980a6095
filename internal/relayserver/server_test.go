package relayserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/sdprelay"
)

type answerCall struct {
	source, offer string
	debug         bool
}

type recordingAnswerer struct {
	mu     sync.Mutex
	calls  []answerCall
	answer string
	err    error
}

func (a *recordingAnswerer) Answer(_ context.Context, source, offer string, debug bool) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, answerCall{source: source, offer: offer, debug: debug})
	return a.answer, a.err
}

func (a *recordingAnswerer) Calls() []answerCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]answerCall(nil), a.calls...)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startRelay(t *testing.T, cfg Config) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = newTestLogger()
	}
	m := metrics.New()
	cfg.Metrics = m
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, m
}

func newClient(t *testing.T, baseURL string) *sdprelay.Client {
	t.Helper()
	c, err := sdprelay.NewClient(sdprelay.ClientConfig{BaseURL: baseURL, Debug: true, Logger: newTestLogger()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func wsURL(ts *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
}

func TestServer_AnswersThroughClient(t *testing.T) {
	a := &recordingAnswerer{answer: "v=0 answer"}
	ts, m := startRelay(t, Config{Answerer: a})

	answer, err := newClient(t, ts.URL).Negotiate(context.Background(), "rtsp://user:pw@cam/1?ch=2&sub=1", "v=0 offer", time.Second)
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if answer != "v=0 answer" {
		t.Fatalf("answer=%q", answer)
	}

	calls := a.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls=%d, want 1", len(calls))
	}
	want := answerCall{source: "rtsp://user:pw@cam/1?ch=2&sub=1", offer: "v=0 offer", debug: true}
	if calls[0] != want {
		t.Fatalf("call=%+v, want %+v", calls[0], want)
	}
	if m.Get(EventAnswered) != 1 || m.Get(EventSessions) != 1 {
		t.Fatalf("metrics=%v", m.Snapshot())
	}
}

func TestServer_AnswererErrorIsRelayed(t *testing.T) {
	a := &recordingAnswerer{err: errors.New("camera offline")}
	ts, m := startRelay(t, Config{Answerer: a})

	_, err := newClient(t, ts.URL).Negotiate(context.Background(), "rtsp://cam/1", "v=0 offer", time.Second)
	if !errors.Is(err, sdprelay.ErrRelayRejected) {
		t.Fatalf("err=%v, want ErrRelayRejected", err)
	}
	var relayErr *sdprelay.Error
	if !errors.As(err, &relayErr) || relayErr.Message != "camera offline" {
		t.Fatalf("err=%#v, want message %q", err, "camera offline")
	}
	if m.Get(EventRejected) != 1 {
		t.Fatalf("metrics=%v", m.Snapshot())
	}
}

func TestServer_AnswerTimeoutBoundsAnswerer(t *testing.T) {
	block := AnswererFunc(func(ctx context.Context, _, _ string, _ bool) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	ts, _ := startRelay(t, Config{Answerer: block, AnswerTimeout: 50 * time.Millisecond})

	_, err := newClient(t, ts.URL).Negotiate(context.Background(), "rtsp://cam/1", "v=0 offer", 2*time.Second)
	if !errors.Is(err, sdprelay.ErrRelayRejected) {
		t.Fatalf("err=%v, want ErrRelayRejected", err)
	}
}

func readResponse(t *testing.T, conn *websocket.Conn) sdprelay.Response {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("message type=%d, want text", msgType)
	}
	resp, err := sdprelay.ParseResponse(data)
	if err != nil {
		t.Fatalf("ParseResponse(%q): %v", data, err)
	}
	return resp
}

func TestServer_RejectsInvalidRequests(t *testing.T) {
	a := &recordingAnswerer{answer: "unused"}
	ts, m := startRelay(t, Config{Answerer: a})

	cases := []struct {
		name  string
		query string
		msg   string
		want  string
	}{
		{"missing url", "", `{"type":"webrtc","sdp":"v=0"}`, "missing url parameter"},
		{"wrong type", "?url=rtsp%3A%2F%2Fcam", `{"type":"mse","sdp":"v=0"}`, "invalid request"},
		{"not json", "?url=rtsp%3A%2F%2Fcam", `hello`, "invalid request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, tc.query), nil)
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			defer conn.Close()

			if err := conn.WriteMessage(websocket.TextMessage, []byte(tc.msg)); err != nil {
				t.Fatalf("write: %v", err)
			}
			resp := readResponse(t, conn)
			if !strings.HasPrefix(resp.Error, tc.want) {
				t.Fatalf("error=%q, want prefix %q", resp.Error, tc.want)
			}
		})
	}
	if len(a.Calls()) != 0 {
		t.Fatalf("answerer called for invalid requests")
	}
	if got := m.Get(EventInvalid); got != uint64(len(cases)) {
		t.Fatalf("%s=%d, want %d", EventInvalid, got, len(cases))
	}
}

func TestServer_BinaryAndOversizedMessagesClose(t *testing.T) {
	ts, _ := startRelay(t, Config{Answerer: &recordingAnswerer{answer: "x"}, MaxRequestBytes: 64})

	cases := []struct {
		name    string
		msgType int
		payload []byte
		code    int
	}{
		{"binary", websocket.BinaryMessage, []byte(`{"type":"webrtc","sdp":"v=0"}`), websocket.CloseUnsupportedData},
		{"oversized", websocket.TextMessage, []byte(`{"type":"webrtc","sdp":"` + strings.Repeat("a", 128) + `"}`), websocket.CloseMessageTooBig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "?url=x"), nil)
			if err != nil {
				t.Fatalf("dial: %v", err)
			}
			defer conn.Close()

			if err := conn.WriteMessage(tc.msgType, tc.payload); err != nil {
				t.Fatalf("write: %v", err)
			}
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err = conn.ReadMessage()
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) || closeErr.Code != tc.code {
				t.Fatalf("err=%v, want close code %d", err, tc.code)
			}
		})
	}
}

func TestNew_RequiresAnswerer(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without answerer")
	}
}

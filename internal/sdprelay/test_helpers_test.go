package sdprelay

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
)

// newMockRelay serves handle on /ws. handle owns conn until it returns.
func newMockRelay(t *testing.T, handle func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn, r)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{BaseURL: baseURL, Debug: true})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

// readRequest reads and decodes the client's request, failing the test on
// contract violations.
func readRequest(t *testing.T, conn *websocket.Conn) (Request, bool) {
	t.Helper()
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Errorf("relay read: %v", err)
		return Request{}, false
	}
	if msgType != websocket.TextMessage {
		t.Errorf("relay got message type %d, want text", msgType)
		return Request{}, false
	}
	req, err := ParseRequest(data)
	if err != nil {
		t.Errorf("relay parse request %q: %v", data, err)
		return Request{}, false
	}
	return req, true
}

// drain blocks until the peer closes the session.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

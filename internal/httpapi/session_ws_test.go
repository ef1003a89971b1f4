package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/signconnect/server/internal/coach"
	"github.com/signconnect/server/internal/session"
)

// TestSessionWebSocketRoundTrip drives a full keyless session over a real
// socket: start control, welcome captions, a malformed payload, and stop.
func TestSessionWebSocketRoundTrip(t *testing.T) {
	handler := newTestRouter(t, RouterConfig{})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"type": "client_control", "action": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}

	// The ui_state goes out synchronously on start; the welcome text
	// streams from the speech worker, so collect until the final lands.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ui, final map[string]any
	for final == nil {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		switch msg["type"] {
		case "ui_state":
			ui = msg
		case "agent_text_final":
			final = msg
		}
	}

	if ui == nil {
		t.Fatal("no ui_state before the welcome finished")
	}
	if ui["mode"] != "IDLE" {
		t.Errorf("mode = %v, want IDLE", ui["mode"])
	}
	if ui["captionsEnabled"] != true {
		t.Errorf("captionsEnabled = %v, want true", ui["captionsEnabled"])
	}
	if final["text"] != coach.WelcomeText {
		t.Errorf("welcome = %q, want %q", final["text"], coach.WelcomeText)
	}

	// Malformed payloads surface a protocol error without killing the session.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	errMsg := readMessageOfType(t, conn, "error")
	if errMsg["code"] != "INVALID_INPUT" {
		t.Errorf("error code = %v, want INVALID_INPUT", errMsg["code"])
	}

	// Stop control still works after the bad payload.
	if err := conn.WriteJSON(map[string]string{"type": "client_control", "action": "stop"}); err != nil {
		t.Fatalf("write stop: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	stopUI := readMessageOfType(t, conn, "ui_state")
	if stopUI["mode"] != "IDLE" {
		t.Errorf("mode after stop = %v, want IDLE", stopUI["mode"])
	}
}

func readMessageOfType(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("reading for %q: %v", msgType, err)
		}
		if msg["type"] == msgType {
			return msg
		}
	}
}

func TestSessionWSRejectsBadToken(t *testing.T) {
	handler := newTestRouter(t, RouterConfig{})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session?token=garbage"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		conn.Close()
		t.Fatal("dial should fail with an invalid token")
	}
	if resp == nil {
		t.Fatal("expected an HTTP response from the failed handshake")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestSessionWSRejectsDisallowedOrigin(t *testing.T) {
	handler := newTestRouter(t, RouterConfig{
		AllowedOrigins: []string{"https://app.signconnect.io"},
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/session"
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		conn.Close()
		t.Fatal("dial should fail from a disallowed origin")
	}
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
		}
	}
}

func TestPersistSessionSkipsAnonymous(t *testing.T) {
	r := &Router{cfg: RouterConfig{}, logger: zerolog.Nop()}

	// No store and no learner: must not panic, must not touch anything.
	r.persistSession("sess-1", "", session.Summary{
		SignsMastered: []string{"A"},
		StartedAt:     time.Now(),
		Duration:      time.Minute,
	}, zerolog.Nop())
}

package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"forexcopilot/internal/events"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func dialSession(t *testing.T, m *Manager, topic string) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	var connectionID string
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		connectionID = m.Accept(context.Background(), conn, topic, "user-1")
		close(done)
	}))

	wsURL := "ws" + srv.URL[len("http"):]
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	<-done
	_ = connectionID
	return client, srv
}

func TestAccept_SendsWelcomeFrameAndRegisters(t *testing.T) {
	m := New(Config{HeartbeatInterval: time.Hour}, nil, zap.NewNop())
	client, srv := dialSession(t, m, "task-1")
	defer srv.Close()
	defer client.Close()

	var frame events.Frame
	if err := client.ReadJSON(&frame); err != nil {
		t.Fatalf("expected welcome frame, got error: %v", err)
	}
	if frame.Type != events.TypeSuccess {
		t.Fatalf("expected success frame type, got %s", frame.Type)
	}
	if m.ConnectionCount("task-1") != 1 {
		t.Fatalf("expected one registered connection on topic")
	}
}

func TestSend_BroadcastsToTopic(t *testing.T) {
	m := New(Config{HeartbeatInterval: time.Hour}, nil, zap.NewNop())
	client, srv := dialSession(t, m, "task-1")
	defer srv.Close()
	defer client.Close()

	var welcome events.Frame
	_ = client.ReadJSON(&welcome)

	frame := events.NewFrame("task-1", "progress", events.TypeProgress, nil, map[string]interface{}{"pct": 50})
	m.Send(context.Background(), "task-1", frame, nil)

	var got events.Frame
	if err := client.ReadJSON(&got); err != nil {
		t.Fatalf("expected frame, got error: %v", err)
	}
	if got.Message != "progress" {
		t.Fatalf("expected progress message, got %q", got.Message)
	}
}

func TestDisconnect_IsIdempotent(t *testing.T) {
	m := New(Config{HeartbeatInterval: time.Hour}, nil, zap.NewNop())
	client, srv := dialSession(t, m, "task-1")
	defer srv.Close()
	defer client.Close()

	var welcome events.Frame
	_ = client.ReadJSON(&welcome)

	session, ok := m.SessionByID(sessionIDFor(m, "task-1"))
	if !ok {
		t.Fatalf("expected to find the accepted session")
	}

	m.Disconnect(context.Background(), session, "task-1", "test")
	if m.ConnectionCount("task-1") != 0 {
		t.Fatalf("expected connection to be removed after disconnect")
	}

	// calling again must not panic or double-decrement
	m.Disconnect(context.Background(), session, "task-1", "test")
	if m.ConnectionCount("task-1") != 0 {
		t.Fatalf("expected disconnect to remain idempotent")
	}
}

func sessionIDFor(m *Manager, topic string) string {
	for _, e := range m.RegistrySnapshot(context.Background(), topic) {
		return e.ConnectionID
	}
	return ""
}

func TestStaleCount(t *testing.T) {
	m := New(Config{HeartbeatInterval: time.Hour}, nil, zap.NewNop())
	client, srv := dialSession(t, m, "task-1")
	defer srv.Close()
	defer client.Close()

	var welcome events.Frame
	_ = client.ReadJSON(&welcome)

	if m.StaleCount(time.Millisecond) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := m.StaleCount(time.Millisecond); got != 1 {
		t.Fatalf("expected one stale session after the threshold elapses, got %d", got)
	}
	if got := m.StaleCount(time.Hour); got != 0 {
		t.Fatalf("expected zero stale sessions under a generous threshold, got %d", got)
	}
}

func TestHasAnySessions(t *testing.T) {
	m := New(Config{HeartbeatInterval: time.Hour}, nil, zap.NewNop())
	if m.HasAnySessions() {
		t.Fatalf("expected no sessions on a fresh manager")
	}
	client, srv := dialSession(t, m, "task-1")
	defer srv.Close()
	defer client.Close()

	var welcome events.Frame
	_ = client.ReadJSON(&welcome)
	if !m.HasAnySessions() {
		t.Fatalf("expected HasAnySessions to report true once connected")
	}
}

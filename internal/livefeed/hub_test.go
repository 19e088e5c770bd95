package livefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/wavecare-ai/wavecare-voice/internal/calls"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/live"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func receiveEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := websocket.JSON.Receive(conn, &ev); err != nil {
		t.Fatalf("receive: %v", err)
	}
	return ev
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", want, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubSendsSnapshotOnConnect(t *testing.T) {
	snap := &calls.LiveSnapshot{CallID: "CA7", Status: calls.StatusActive}
	hub := NewHub(func(context.Context) (*calls.LiveSnapshot, error) { return snap, nil }, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dialHub(t, srv)
	ev := receiveEvent(t, conn)
	if ev.Type != "snapshot" || ev.CallID != "CA7" {
		t.Errorf("expected snapshot for CA7, got %+v", ev)
	}
}

func TestHubBroadcastsToAllClients(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	first := dialHub(t, srv)
	second := dialHub(t, srv)
	waitForClients(t, hub, 2)

	turn := calls.Turn{Speaker: calls.SpeakerCaller, Message: "hello", Timestamp: time.Now().UTC()}
	hub.BroadcastTurn("CA1", turn)

	for _, conn := range []*websocket.Conn{first, second} {
		ev := receiveEvent(t, conn)
		if ev.Type != "turn" || ev.CallID != "CA1" {
			t.Errorf("expected turn event, got %+v", ev)
		}
		if ev.Turn == nil || ev.Turn.Message != "hello" {
			t.Errorf("turn payload missing: %+v", ev)
		}
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)
	conn.Close()
	waitForClients(t, hub, 0)

	// Broadcasting with no clients must not panic or block.
	hub.BroadcastStatus("CA1", calls.StatusCompleted)
}

func TestHubPingPong(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)

	if err := websocket.JSON.Send(conn, map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("send ping: %v", err)
	}
	ev := receiveEvent(t, conn)
	if ev.Type != "pong" {
		t.Errorf("expected pong, got %+v", ev)
	}
}

// Package livefeed pushes live call activity to dashboard websocket clients.
package livefeed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/wavecare-ai/wavecare-voice/internal/calls"
	"github.com/wavecare-ai/wavecare-voice/pkg/logging"
)

// Event is one push to a dashboard client.
type Event struct {
	Type      string      `json:"type"` // "snapshot", "turn", "booking", "status", "pong"
	CallID    string      `json:"callId,omitempty"`
	Turn      *calls.Turn `json:"turn,omitempty"`
	Status    string      `json:"status,omitempty"`
	Snapshot  interface{} `json:"snapshot,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SnapshotFunc fetches the current live call view for a newly connected
// client, typically backed by the Redis live cache.
type SnapshotFunc func(ctx context.Context) (*calls.LiveSnapshot, error)

// Hub fans call activity out to every connected dashboard client. Clients are
// read-only apart from pings; all state flows server to client.
type Hub struct {
	snapshot SnapshotFunc
	logger   *logging.Logger
	now      func() time.Time

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// NewHub creates a hub. snapshot may be nil when no live cache is configured.
func NewHub(snapshot SnapshotFunc, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		snapshot: snapshot,
		logger:   logger.Component("livefeed"),
		now:      func() time.Time { return time.Now().UTC() },
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// HandleWebSocket upgrades the request and serves the client until it
// disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serve(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Hub) serve(conn *websocket.Conn, r *http.Request) {
	if h.snapshot != nil {
		if snap, err := h.snapshot(r.Context()); err == nil && snap != nil {
			_ = websocket.JSON.Send(conn, Event{Type: "snapshot", CallID: snap.CallID, Snapshot: snap, Timestamp: h.now()})
		}
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	h.logger.Info("live feed client connected", "clients", n)

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		h.logger.Debug("live feed client disconnected")
	}()

	// Drain client frames so pings keep the connection alive; anything else
	// is ignored.
	for {
		var msg struct {
			Type string `json:"type"`
		}
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			return
		}
		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, Event{Type: "pong", Timestamp: h.now()})
		}
	}
}

// BroadcastTurn pushes a transcript turn to all clients.
func (h *Hub) BroadcastTurn(callID string, turn calls.Turn) {
	h.broadcast(Event{Type: "turn", CallID: callID, Turn: &turn, Timestamp: h.now()})
}

// BroadcastBooking announces that the call booked an appointment.
func (h *Hub) BroadcastBooking(callID string) {
	h.broadcast(Event{Type: "booking", CallID: callID, Timestamp: h.now()})
}

// BroadcastStatus announces a lifecycle transition.
func (h *Hub) BroadcastStatus(callID, status string) {
	h.broadcast(Event{Type: "status", CallID: callID, Status: status, Timestamp: h.now()})
}

func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		// A slow or dead client fails its own send; the read loop notices
		// and unregisters it.
		_ = websocket.JSON.Send(conn, ev)
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

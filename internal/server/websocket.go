package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"houstonintel/messages"
	"houstonintel/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard is served same-origin; local tools may connect too.
		return true
	},
}

// Hub fans metric snapshots and alerts out to connected dashboard clients.
type Hub struct {
	connections []*websocket.Conn
	mutex       sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{connections: make([]*websocket.Conn, 0)}
}

// Run forwards engine snapshots to clients until the context ends.
func (h *Hub) Run(ctx context.Context, snapshots <-chan *types.MetricsSnapshot) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case snapshot, ok := <-snapshots:
			if !ok {
				h.closeAll()
				return
			}
			h.BroadcastFrame(messages.SnapshotFrame(snapshot))
		}
	}
}

// HandleConnection upgrades the request and registers the client. The
// current snapshot is sent immediately so new clients don't wait a full
// aggregation interval for data.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request, current *types.MetricsSnapshot) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}

	// The initial snapshot is written before the conn joins the broadcast
	// list; gorilla/websocket allows only one writer per conn, and a
	// broadcast racing this write would panic.
	if current != nil {
		frame := messages.SnapshotFrame(current)
		if data, err := json.Marshal(frame); err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
	}

	h.addConnection(conn)

	// Reads are discarded; the socket is broadcast-only. The read loop
	// exists to notice the close handshake.
	go func() {
		defer h.removeConnection(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// BroadcastFrame sends a frame to every connected client.
func (h *Hub) BroadcastFrame(frame messages.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("⚠️ Failed to marshal frame: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, conn := range h.connections {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("Failed to send to dashboard client: %v", err)
		}
	}
}

// ClientCount returns how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections)
}

func (h *Hub) addConnection(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.connections = append(h.connections, conn)
	log.Printf("Dashboard client connected. Total clients: %d", len(h.connections))
}

func (h *Hub) removeConnection(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for i, c := range h.connections {
		if c == conn {
			h.connections = append(h.connections[:i], h.connections[i+1:]...)
			conn.Close()
			log.Printf("Dashboard client disconnected. Total clients: %d", len(h.connections))
			break
		}
	}
}

func (h *Hub) closeAll() {
	// Clients get a status frame before the close so the dashboard can show
	// "disconnected" instead of an unexplained drop.
	farewell, _ := json.Marshal(messages.Frame{
		Type: messages.FrameStatus,
		Payload: messages.StatusUpdateMsg{
			Component: "server",
			Status:    "shutting_down",
			Message:   "server is shutting down",
			Timestamp: time.Now(),
		},
		Timestamp: time.Now(),
	})

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, conn := range h.connections {
		_ = conn.WriteMessage(websocket.TextMessage, farewell)
		conn.Close()
	}
	h.connections = h.connections[:0]
}

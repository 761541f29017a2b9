// Package adminapi exposes a read-only HTTP/WebSocket diagnostics
// surface over the live monitors: current cluster topology, router
// list state, and a push channel for topology-change events. Nothing
// here mutates monitor/failover/limitless state.
package adminapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TopologyEvent is one push notification sent to every connected
// websocket diagnostics client.
type TopologyEvent struct {
	Type      string      `json:"type"`
	ClusterID string      `json:"cluster_id"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub manages websocket diagnostics connections and broadcasts
// TopologyEvents to all of them, the admin-surface analogue of the
// teacher's WebSocketHub.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan TopologyEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub constructs a Hub. Call Run in a goroutine before serving
// HandleWebSocket.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan TopologyEvent, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
	}
}

// Run drives the hub's event loop until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("admin diagnostics hub starting")
	for {
		select {
		case <-ctx.Done():
			h.closeAllConnections()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				go h.sendToClient(client, event)
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) sendToClient(client *websocket.Conn, event TopologyEvent) {
	client.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := client.WriteJSON(event); err != nil {
		h.logger.Warn("failed to send diagnostics event", "error", err)
		h.unregister <- client
	}
}

// Broadcast queues event for every connected client, dropping it if
// the broadcast channel is saturated rather than blocking the caller
// (a monitor's publish path must never stall on a slow websocket
// reader).
func (h *Hub) Broadcast(event TopologyEvent) {
	event.Timestamp = time.Now()
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("admin diagnostics broadcast channel full, dropping event", "type", event.Type, "cluster_id", event.ClusterID)
	}
}

// HandleWebSocket upgrades the request and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade diagnostics websocket", "error", err)
		return
	}
	h.register <- conn
	go h.readPump(conn)
}

func (h *Hub) readPump(conn *websocket.Conn) {
	defer func() { h.unregister <- conn }()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		default:
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func (h *Hub) closeAllConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
}

// ActiveConnections reports the current websocket client count.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/planora/planora/pkg/executor"
)

// EventMessage is the JSON frame pushed to connected clients
type EventMessage struct {
	Type      string      `json:"type"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Hub broadcasts call lifecycle events to connected WebSocket clients
// so a human can see and confirm proposed actions. It implements
// executor.Notifier; every delivery is best-effort.
type Hub struct {
	upgrader websocket.Upgrader
	clients  map[*client]struct{}
	mu       sync.RWMutex
	logger   zerolog.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a notification hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

// HandleWebSocket upgrades an HTTP request and registers the client
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 32),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Int("clients", count).Msg("Notification client connected")

	go h.writeLoop(c)
	go h.readLoop(c)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CallProposed implements executor.Notifier
func (h *Hub) CallProposed(rec *executor.CallRecord) {
	h.Broadcast("call.proposed", map[string]interface{}{
		"call_id":      rec.ID,
		"tool_name":    rec.ToolName,
		"workspace_id": rec.WorkspaceID,
		"actor_id":     rec.ActorID,
		"created_at":   rec.CreatedAt,
	})
}

// CallResolved implements executor.Notifier
func (h *Hub) CallResolved(rec *executor.CallRecord) {
	h.Broadcast("call.resolved", map[string]interface{}{
		"call_id":      rec.ID,
		"tool_name":    rec.ToolName,
		"workspace_id": rec.WorkspaceID,
		"status":       string(rec.Status),
	})
}

// Broadcast sends an event to every connected client. Slow clients
// are dropped rather than allowed to block the broadcast.
func (h *Hub) Broadcast(event string, data interface{}) {
	msg := EventMessage{
		Type:      "event",
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to marshal event")
		return
	}

	// Sends happen under the read lock and channel closes under the
	// write lock, so a send can never hit a closed channel.
	var dead []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			dead = append(dead, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range dead {
		h.logger.Warn().Str("event", event).Msg("Dropping slow notification client")
		h.remove(c)
	}
}

// Close disconnects all clients
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()

	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug().Err(err).Msg("Notification write failed")
			h.remove(c)
			return
		}
	}
}

// readLoop drains the connection so close frames are processed
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

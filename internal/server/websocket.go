package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/castwatch/castwatch/internal/logging"
	"github.com/castwatch/castwatch/internal/monitor"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// sendBufferSize is the per-client outbound message buffer
	sendBufferSize = 64
)

// Message types sent to WebSocket clients.
const (
	MessageSnapshot = "snapshot"
	MessageEvent    = "event"
)

// WSMessage is one message sent to a WebSocket client. A snapshot carries
// the current devices and statuses; an event carries one monitor event.
type WSMessage struct {
	Type     string           `json:"type"`
	Devices  []monitor.Device `json:"devices,omitempty"`
	Statuses monitor.Snapshot `json:"statuses,omitempty"`
	Event    *monitor.Event   `json:"event,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Hub fans monitor events out to WebSocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

// Run broadcasts events until ctx is done or the event channel closes, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context, events <-chan monitor.Event) {
	defer h.CloseAll()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(ev)
		}
	}
}

// Broadcast sends ev to every client. A client whose buffer is full misses it.
func (h *Hub) Broadcast(ev monitor.Event) {
	data, err := json.Marshal(WSMessage{Type: MessageEvent, Event: &ev})
	if err != nil {
		logging.Error("Failed to marshal event", zap.Error(err))
		return
	}

	// Sends happen under the read lock so unregister cannot close a channel
	// mid-send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			logging.Debug("WebSocket client too slow, event dropped",
				zap.String("remote_addr", client.conn.RemoteAddr().String()),
			)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client; later connections are refused.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// register queues the message built by snapshot and adds the client. Both run
// under the write lock, so every Broadcast is either reflected in the
// snapshot or delivered after it.
func (h *Hub) register(client *wsClient, snapshot func() ([]byte, error)) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false, nil
	}
	data, err := snapshot()
	if err != nil {
		return false, err
	}
	client.send <- data
	h.clients[client] = struct{}{}
	return true, nil
}

func (h *Hub) unregister(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// handleWebSocket upgrades the request and streams a snapshot followed by
// every monitor event.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	remoteAddr := conn.RemoteAddr().String()

	client := &wsClient{conn: conn, send: make(chan []byte, sendBufferSize)}
	registered, err := s.hub.register(client, func() ([]byte, error) {
		return json.Marshal(WSMessage{
			Type:     MessageSnapshot,
			Devices:  s.mon.CurrentDevices(),
			Statuses: s.mon.Statuses(),
		})
	})
	if err != nil {
		logging.Error("Failed to marshal snapshot", zap.Error(err))
		_ = conn.Close()
		return
	}
	if !registered {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	logging.LogConnection(remoteAddr, "websocket_opened")

	go client.writePump()
	go client.readPump(s.hub)
}

// readPump discards client messages and detects disconnects.
func (c *wsClient) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
		logging.LogConnection(c.conn.RemoteAddr().String(), "websocket_closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

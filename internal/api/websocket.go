package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"screenbridge/internal/liveness"
	"screenbridge/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The listener is loopback only
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// statusHub pushes control service status changes to connected clients
type statusHub struct {
	source StatusSource
	logger *slog.Logger

	clients    map[*statusClient]bool
	clientsMu  sync.RWMutex
	direct     chan directMessage
	register   chan *statusClient
	unregister chan *statusClient
	done       chan struct{}
}

// directMessage is addressed to a single client
type directMessage struct {
	client *statusClient
	msg    protocol.Message
}

// statusClient is one connected stream consumer
type statusClient struct {
	hub  *statusHub
	conn *websocket.Conn
	send chan []byte
	ip   string
}

func newStatusHub(source StatusSource, logger *slog.Logger) *statusHub {
	return &statusHub{
		source:     source,
		logger:     logger,
		clients:    make(map[*statusClient]bool),
		direct:     make(chan directMessage, 8),
		register:   make(chan *statusClient),
		unregister: make(chan *statusClient),
		done:       make(chan struct{}),
	}
}

// run owns client registration until ctx is cancelled
func (h *statusHub) run(ctx context.Context) {
	defer close(h.done)

	var updates <-chan liveness.Status
	if h.source != nil {
		ch, cancel := h.source.Subscribe()
		defer cancel()
		updates = ch
	}

	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.clientsMu.Unlock()
			h.logger.Debug("status stream client registered", "remote", client.ip, "clients", total)

		case client := <-h.unregister:
			h.remove(client)

		case st, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			h.send(statusMessage(st))

		case d := <-h.direct:
			h.sendTo(d.client, d.msg)

		case <-ctx.Done():
			h.clientsMu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

func (h *statusHub) remove(client *statusClient) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.logger.Debug("status stream client unregistered", "remote", client.ip, "clients", len(h.clients))
	}
}

func (h *statusHub) send(msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal status message", "error", err)
		return
	}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// sendTo delivers msg to one registered client. The message is dropped if the
// client's queue is full.
func (h *statusHub) sendTo(client *statusClient, msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal status message", "error", err)
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// clientCount returns the number of registered clients
func (h *statusHub) clientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func statusMessage(st liveness.Status) protocol.Message {
	return protocol.Message{Type: protocol.TypeStatus, Payload: statusPayload(st)}
}

func (h *statusHub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("status stream upgrade failed", "error", err)
		return
	}

	client := &statusClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 16),
		ip:   r.RemoteAddr,
	}

	// The current status goes out first so clients never wait a full poll interval
	var current liveness.Status
	if h.source != nil {
		current = h.source.Status()
	}
	if data, err := json.Marshal(statusMessage(current)); err == nil {
		client.send <- data
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains client frames so control messages are processed
func (c *statusClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("status stream read error", "error", err)
			}
			return
		}
		c.handleMessage(data)
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *statusClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage answers a ping with the current status, to that client only
func (c *statusClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.logger.Debug("status stream: invalid message", "error", err)
		return
	}
	if msg.Type != protocol.TypePing {
		return
	}
	var current liveness.Status
	if c.hub.source != nil {
		current = c.hub.source.Status()
	}
	select {
	case c.hub.direct <- directMessage{client: c, msg: statusMessage(current)}:
	case <-c.hub.done:
	}
}

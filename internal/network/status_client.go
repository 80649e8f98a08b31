// Package network provides a client for a running bridge's status stream.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"screenbridge/internal/protocol"
)

// StatusClient follows /status/stream on a bridge and reconnects when the
// connection drops
type StatusClient struct {
	addr    string
	retry   time.Duration
	dialer  *websocket.Dialer
	logger  *slog.Logger
	pingGap time.Duration

	// OnStatus is called for every status message received
	OnStatus func(protocol.StatusPayload)
}

// NewStatusClient creates a new client for the bridge at addr (host:port)
func NewStatusClient(addr string, logger *slog.Logger) *StatusClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusClient{
		addr:    addr,
		retry:   5 * time.Second,
		dialer:  websocket.DefaultDialer,
		logger:  logger,
		pingGap: 30 * time.Second,
	}
}

// URL returns the stream endpoint
func (c *StatusClient) URL() string {
	u := url.URL{Scheme: "ws", Host: c.addr, Path: "/status/stream"}
	return u.String()
}

// Run connects and processes messages until ctx is done
func (c *StatusClient) Run(ctx context.Context) error {
	for {
		err := c.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			c.logger.Warn("status stream disconnected", "url", c.URL(), "error", err)
		}

		// If connect returns, it means we disconnected. Wait a bit and retry.
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.retry):
			c.logger.Debug("status stream reconnecting", "url", c.URL())
		}
	}
}

func (c *StatusClient) connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.URL(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.URL(), err)
	}
	defer conn.Close()
	c.logger.Debug("status stream connected", "url", c.URL())

	connDone := make(chan struct{})
	defer close(connDone)
	go c.keepAlive(ctx, conn, connDone)

	return c.readLoop(conn)
}

// keepAlive pings the bridge and closes the connection when ctx ends
func (c *StatusClient) keepAlive(ctx context.Context, conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(c.pingGap)
	defer ticker.Stop()
	for {
		select {
		case <-connDone:
			return
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

func (c *StatusClient) readLoop(conn *websocket.Conn) error {
	conn.SetReadLimit(4096)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		var msg struct {
			Type    protocol.MessageType   `json:"type"`
			Payload protocol.StatusPayload `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("status stream: invalid message", "error", err)
			continue
		}
		if msg.Type == protocol.TypeStatus && c.OnStatus != nil {
			c.OnStatus(msg.Payload)
		}
	}
}

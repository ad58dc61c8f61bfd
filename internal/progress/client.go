package progress

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// clientCommand is the only inbound message shape clients send:
// subscribe to or unsubscribe from a mining task.
type clientCommand struct {
	Action   string `json:"action"`
	MiningID string `json:"mining_id"`
}

// clientError is sent back on malformed commands.
type clientError struct {
	Error string `json:"error"`
}

// Client represents one WebSocket subscriber connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger
}

// NewClient creates a new Client instance
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger,
	}
}

// NewLocalClient creates a client with no WebSocket attached, for
// in-process subscribers that consume Events directly. The pump
// methods must not be used on a local client.
func NewLocalClient(hub *Hub, logger *slog.Logger) *Client {
	return &Client{
		hub:    hub,
		send:   make(chan []byte, 256),
		logger: logger,
	}
}

// Events exposes the outbound event queue for local clients.
func (c *Client) Events() <-chan []byte {
	return c.send
}

// ReadPump pumps subscription commands from the WebSocket connection
// to the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				if c.logger != nil {
					c.logger.Error("websocket read error", slog.Any("error", err))
				}
			}
			break
		}

		c.handleCommand(message)
	}
}

// WritePump pumps events from the hub to the WebSocket connection.
func (c *Client) WritePump() {
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
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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

// handleCommand processes an inbound subscribe/unsubscribe command.
func (c *Client) handleCommand(data []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.sendError("invalid message format")
		return
	}

	if cmd.MiningID == "" {
		c.sendError("mining_id is required")
		return
	}

	switch cmd.Action {
	case "subscribe":
		c.hub.Subscribe(c, cmd.MiningID)
	case "unsubscribe":
		c.hub.Unsubscribe(c, cmd.MiningID)
	default:
		c.sendError("unknown action")
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(errMsg string) {
	data, err := json.Marshal(clientError{Error: errMsg})
	if err != nil {
		return
	}

	select {
	case c.send <- data:
	default:
		// Buffer full, skip
	}
}

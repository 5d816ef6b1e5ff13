package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/peerlearn/peerlearn/internal/config"
	"github.com/peerlearn/peerlearn/internal/domain"
	"github.com/peerlearn/peerlearn/pkg/log"
)

const sendBufferSize = 256

var (
	// ErrSendBufferFull is returned when a client cannot keep up with its frames.
	ErrSendBufferFull = errors.New("client send buffer full")
	// ErrClientClosed is returned for frames sent after the hub dropped the client.
	ErrClientClosed = errors.New("client closed")
)

// Client is one WebSocket connection and its chat session.
type Client struct {
	ID      string
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Session *domain.ChatSession
	config  config.WebSocketConfig

	sendMu sync.RWMutex
	closed bool
}

// NewClient wires the session's chat switches to the hub, so the client
// watches whichever conversation its latest switch targets.
func NewClient(id string, hub *Hub, conn *websocket.Conn, session *domain.ChatSession, cfg config.WebSocketConfig) *Client {
	c := &Client{
		ID:      id,
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, sendBufferSize),
		Session: session,
		config:  cfg,
	}
	session.SetWatcher(func(chatID string, isGroup bool) {
		hub.Watch(c, chatID, isGroup)
	})
	return c
}

// ReadPump reads frames until the connection fails and hands each one to
// handler. It unregisters the client on return.
func (c *Client) ReadPump(ctx context.Context, handler func(context.Context, *Client, []byte)) {
	l := log.Ctx(ctx)
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l.Warn().Err(err).Str("client_id", c.ID).Msg("websocket read error")
			}
			return
		}

		c.Session.UpdateActivity()
		handler(ctx, c, message)
	}
}

// WritePump drains Send to the socket and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues a frame for the client without blocking.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.sendRaw(data)
}

func (c *Client) sendRaw(data []byte) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// close stops further sends and ends the write pump. It is idempotent.
func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

func (c *Client) isClosed() bool {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	return c.closed
}

package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

var (
	errClientClosed = errors.New("client closed")
	errSendFull     = errors.New("send buffer full")
)

// Client is one browser connection.
type Client struct {
	ID     string
	UserID string

	conn *websocket.Conn
	hub  *Hub

	mu     sync.RWMutex
	send   chan []byte
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a client for conn.
func NewClient(id string, conn *websocket.Conn, hub *Hub) *Client {
	ctx, cancel := context.WithCancel(hub.ctx)
	return &Client{
		ID:     id,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context ends when the client disconnects.
func (c *Client) Context() context.Context { return c.ctx }

// ReadPump reads frames until the connection fails, dispatching each to the
// hub. It unregisters the client on return.
func (c *Client) ReadPump() {
	defer func() {
		c.cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read failed", zap.String("client", c.ID), zap.Error(err))
			}
			return
		}
		if err := c.hub.HandleMessage(c.ctx, c, data); err != nil {
			c.SendError(err.Error())
		}
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// Send queues message for the client.
func (c *Client) Send(message *Message) error {
	data, err := marshalMessage(message)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

// SendJSON queues a message with a payload.
func (c *Client) SendJSON(messageType string, payload any) error {
	return c.Send(&Message{Type: messageType, Payload: payload})
}

// SendError queues an error message. Failures are ignored.
func (c *Client) SendError(msg string) {
	_ = c.SendJSON(TypeError, map[string]string{"message": msg})
}

// JoinRoom adds the client to room.
func (c *Client) JoinRoom(room string) bool {
	return c.hub.JoinRoom(c, room)
}

// LeaveRoom removes the client from room.
func (c *Client) LeaveRoom(room string) {
	c.hub.LeaveRoom(c, room)
}

func (c *Client) enqueue(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendFull
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.send)
}

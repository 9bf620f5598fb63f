// Package websocket streams messages to browsers grouped in rooms.
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub tracks connected clients and the rooms they joined.
type Hub struct {
	clients   map[*Client]struct{}
	clientsMu sync.RWMutex

	rooms   map[string]map[*Client]struct{}
	roomsMu sync.RWMutex

	unregister chan *Client

	handlers   map[string]MessageHandler
	handlersMu sync.RWMutex

	// onRoomEmpty runs, outside the hub locks, when the last client leaves
	// a room.
	onRoomEmpty func(room string)

	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l *zap.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// WithRoomEmpty sets the callback run when a room loses its last client.
func WithRoomEmpty(fn func(room string)) HubOption {
	return func(h *Hub) { h.onRoomEmpty = fn }
}

// NewHub creates a hub bound to ctx.
func NewHub(ctx context.Context, opts ...HubOption) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		unregister: make(chan *Client, 64),
		handlers:   make(map[string]MessageHandler),
		logger:     zap.NewNop(),
		ctx:        hubCtx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterHandler sets the handler of messageType.
func (h *Hub) RegisterHandler(messageType string, handler MessageHandler) {
	h.handlersMu.Lock()
	defer h.handlersMu.Unlock()
	h.handlers[messageType] = handler
}

// Start runs the event loop in the background.
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.run()
}

func (h *Hub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			h.cleanup()
			return

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// register adds client. It fails once the hub has stopped.
func (h *Hub) register(client *Client) bool {
	h.clientsMu.Lock()
	if h.ctx.Err() != nil {
		h.clientsMu.Unlock()
		return false
	}
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.clientsMu.Unlock()
	h.logger.Debug("websocket client registered", zap.String("client", client.ID), zap.Int("clients", n))
	return true
}

func (h *Hub) remove(client *Client) {
	h.clientsMu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.clientsMu.Unlock()
	if !ok {
		return
	}
	client.closeSend()

	var emptied []string
	h.roomsMu.Lock()
	for room, members := range h.rooms {
		if _, in := members[client]; in {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
				emptied = append(emptied, room)
			}
		}
	}
	h.roomsMu.Unlock()

	h.notifyEmpty(emptied...)
	h.logger.Debug("websocket client unregistered", zap.String("client", client.ID), zap.Int("clients", n))
}

func (h *Hub) notifyEmpty(rooms ...string) {
	if h.onRoomEmpty == nil {
		return
	}
	for _, room := range rooms {
		h.onRoomEmpty(room)
	}
}

// JoinRoom adds client to room. It reports whether the room was created.
func (h *Hub) JoinRoom(client *Client, room string) bool {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[client] = struct{}{}
	return !ok
}

// LeaveRoom removes client from room.
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.roomsMu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		h.roomsMu.Unlock()
		return
	}
	delete(members, client)
	empty := len(members) == 0
	if empty {
		delete(h.rooms, room)
	}
	h.roomsMu.Unlock()

	if empty {
		h.notifyEmpty(room)
	}
}

// BroadcastToRoom sends message to every client in room. Clients whose
// buffer is full miss the message.
func (h *Hub) BroadcastToRoom(room string, message *Message) {
	data, err := marshalMessage(message)
	if err != nil {
		h.logger.Warn("websocket broadcast dropped", zap.String("room", room), zap.Error(err))
		return
	}

	h.roomsMu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.roomsMu.RUnlock()

	for _, c := range members {
		if err := c.enqueue(data); err != nil {
			h.logger.Debug("websocket send skipped", zap.String("client", c.ID), zap.String("room", room), zap.Error(err))
		}
	}
}

// RoomClients returns the clients in room.
func (h *Hub) RoomClients(room string) []*Client {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()

	out := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		out = append(out, c)
	}
	return out
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of non-empty rooms.
func (h *Hub) RoomCount() int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms)
}

// HandleMessage decodes data and dispatches it to the handler of its type.
func (h *Hub) HandleMessage(ctx context.Context, client *Client, data []byte) error {
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		return err
	}

	h.handlersMu.RLock()
	handler, ok := h.handlers[message.Type]
	h.handlersMu.RUnlock()
	if !ok {
		return &UnknownTypeError{Type: message.Type}
	}
	return handler(ctx, client, &message)
}

// UnknownTypeError is returned for messages without a handler.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return "unknown message type " + e.Type
}

func (h *Hub) cleanup() {
	h.clientsMu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.clientsMu.Unlock()

	h.roomsMu.Lock()
	rooms := make([]string, 0, len(h.rooms))
	for room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.roomsMu.Unlock()

	for _, c := range clients {
		c.closeSend()
	}
	h.notifyEmpty(rooms...)
	h.logger.Debug("websocket hub stopped", zap.Int("clients", len(clients)))
}

// Shutdown disconnects every client and stops the hub.
func (h *Hub) Shutdown() {
	h.once.Do(func() {
		h.cancel()
		h.wg.Wait()
	})
}

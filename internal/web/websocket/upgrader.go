package websocket

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openhis/slotkit/internal/web/auth"
)

// Config holds upgrade settings.
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int
	// AllowedOrigins lists origins accepted besides the request host. Empty
	// accepts same-origin requests only.
	AllowedOrigins []string
}

// DefaultConfig returns the default upgrade settings.
func DefaultConfig() *Config {
	return &Config{ReadBufferSize: 1024, WriteBufferSize: 1024}
}

// Upgrader turns HTTP requests into hub clients.
type Upgrader struct {
	upgrader *websocket.Upgrader
	hub      *Hub
}

// NewUpgrader creates an upgrader for hub.
func NewUpgrader(config *Config, hub *Hub) *Upgrader {
	if config == nil {
		config = DefaultConfig()
	}
	allowed := make(map[string]struct{}, len(config.AllowedOrigins))
	for _, o := range config.AllowedOrigins {
		allowed[o] = struct{}{}
	}

	return &Upgrader{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed[origin]; ok {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
		hub: hub,
	}
}

// ServeHTTP upgrades the request and starts the client pumps. The session
// user, when present, is recorded on the client.
func (u *Upgrader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		u.hub.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.NewString(), conn, u.hub)
	if sess := auth.FromContext(r.Context()); sess != nil {
		client.UserID = sess.User
	}

	if !u.hub.register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	go client.WritePump()
	go client.ReadPump()
}

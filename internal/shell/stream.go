package shell

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openhis/slotkit/internal/resource"
	"github.com/openhis/slotkit/internal/swr"
	"github.com/openhis/slotkit/internal/web/websocket"
)

// ResourceMessage is the payload of a "resource" websocket message.
type ResourceMessage struct {
	Key       string    `json:"key"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Loading   bool      `json:"loading"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

type keyMessage struct {
	Key     string `json:"key"`
	Loading bool   `json:"loading,omitempty"`
}

var (
	errInvalidKey      = errors.New("key must be a backend path")
	errUnknownEndpoint = errors.New("key must name a resource endpoint")
)

// streamEndpoints are the backend collections a client may stream. Members
// are addressed below them, e.g. /ws/rest/v1/patient/{uuid}.
var streamEndpoints = []string{
	resource.PatientEndpoint,
	resource.OrderEndpoint,
	resource.VisitEndpoint,
	resource.LocationEndpoint,
}

func streamable(endpoint string) bool {
	if strings.ContainsAny(endpoint, "%{}\\") || path.Clean(endpoint) != endpoint {
		return false
	}
	for _, e := range streamEndpoints {
		if endpoint == e || strings.HasPrefix(endpoint, e+"/") {
			return true
		}
	}
	return false
}

// stream shares one store subscription per key between every websocket
// client that subscribed to it. The client set of a key is a hub room.
type stream struct {
	hub    *websocket.Hub
	store  *swr.Store
	client *resource.Client
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]*swr.Subscription
}

func newStream(store *swr.Store, client *resource.Client, logger *zap.Logger) *stream {
	return &stream{
		store:  store,
		client: client,
		logger: logger,
		subs:   make(map[string]*swr.Subscription),
	}
}

func (s *stream) attach(hub *websocket.Hub) {
	s.hub = hub
	hub.RegisterHandler(websocket.TypeSubscribe, s.subscribe)
	hub.RegisterHandler(websocket.TypeUnsubscribe, s.unsubscribe)
}

func decodeKey(m *websocket.Message) (string, error) {
	var km keyMessage
	if err := json.Unmarshal(m.Data, &km); err != nil {
		return "", err
	}
	return canonicalKey(km.Key)
}

// canonicalKey checks that raw names a streamable endpoint and sorts its
// query.
func canonicalKey(raw string) (string, error) {
	if !strings.HasPrefix(raw, "/") {
		return "", errInvalidKey
	}
	req := resource.RequestFromKey(raw)
	if !streamable(req.Endpoint) {
		return "", errUnknownEndpoint
	}
	key := req.Key()
	if key == "" {
		return "", errInvalidKey
	}
	return key, nil
}

func (s *stream) subscribe(_ context.Context, c *websocket.Client, m *websocket.Message) error {
	key, err := decodeKey(m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	c.JoinRoom(key)
	sub, ok := s.subs[key]
	if !ok {
		sub = s.store.Subscribe(key, s.fetcher(key), func(r swr.Result) {
			s.hub.BroadcastToRoom(key, &websocket.Message{Type: websocket.TypeResource, Payload: toMessage(r)})
		})
		s.subs[key] = sub
		s.logger.Debug("stream opened", zap.String("key", key))
	}
	s.mu.Unlock()

	// A loading key is followed by a broadcast of its result, which must not
	// be overtaken by a stale snapshot.
	res := sub.Result()
	if err := c.SendJSON(websocket.TypeSubscribed, keyMessage{Key: key, Loading: res.IsLoading}); err != nil {
		return err
	}
	if res.IsLoading {
		return nil
	}
	return c.SendJSON(websocket.TypeResource, toMessage(res))
}

func (s *stream) unsubscribe(_ context.Context, c *websocket.Client, m *websocket.Message) error {
	key, err := decodeKey(m)
	if err != nil {
		return err
	}
	c.LeaveRoom(key)
	return nil
}

// release cancels the subscription of a room that lost its last client. A
// client may have joined again in between, in which case nothing changes.
func (s *stream) release(key string) {
	s.mu.Lock()
	sub, ok := s.subs[key]
	if !ok || len(s.hub.RoomClients(key)) > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.subs, key)
	s.mu.Unlock()

	sub.Cancel()
	s.logger.Debug("stream closed", zap.String("key", key))
}

func (s *stream) open() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *stream) fetcher(key string) swr.Fetcher {
	req := resource.RequestFromKey(key)
	return func(ctx context.Context) (any, error) {
		env, err := s.client.Get(ctx, req)
		if err != nil {
			return nil, err
		}
		if env.Items == nil {
			return []json.RawMessage{}, nil
		}
		return env.Items, nil
	}
}

func toMessage(r swr.Result) ResourceMessage {
	msg := ResourceMessage{
		Key:       r.Key,
		Data:      r.Data,
		Loading:   r.IsLoading,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Err != nil {
		msg.Error = r.Err.Error()
	}
	return msg
}

package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, opts ...HubOption) (*Hub, string) {
	t.Helper()
	hub := NewHub(context.Background(), opts...)
	RegisterDefaultHandlers(hub)
	hub.Start()

	srv := httptest.NewServer(NewUpgrader(nil, hub))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestHub_Ping(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": TypePing, "data": map[string]int{"n": 1}}))
	m := read(t, conn)
	assert.Equal(t, TypePong, m.Type)
	assert.JSONEq(t, `{"n":1}`, string(m.Data))

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHub_UnknownType(t *testing.T) {
	_, url := startHub(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "nope"}))
	m := read(t, conn)
	assert.Equal(t, TypeError, m.Type)
	assert.Contains(t, string(m.Data), "unknown message type nope")
}

func TestHub_RoomBroadcast(t *testing.T) {
	var mu sync.Mutex
	var emptied []string
	hub, url := startHub(t, WithRoomEmpty(func(room string) {
		mu.Lock()
		emptied = append(emptied, room)
		mu.Unlock()
	}))
	hub.RegisterHandler("join", func(_ context.Context, c *Client, m *Message) error {
		var room string
		if err := json.Unmarshal(m.Data, &room); err != nil {
			return err
		}
		c.JoinRoom(room)
		return c.SendJSON("joined", room)
	})

	a := dial(t, url)
	b := dial(t, url)
	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.WriteJSON(map[string]any{"type": "join", "data": "r1"}))
		assert.Equal(t, "joined", read(t, conn).Type)
	}
	assert.Len(t, hub.RoomClients("r1"), 2)

	hub.BroadcastToRoom("r1", &Message{Type: "news", Payload: map[string]string{"v": "x"}})
	for _, conn := range []*websocket.Conn{a, b} {
		m := read(t, conn)
		assert.Equal(t, "news", m.Type)
		assert.JSONEq(t, `{"v":"x"}`, string(m.Data))
	}

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return len(hub.RoomClients("r1")) == 1 }, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Empty(t, emptied)
	mu.Unlock()

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(emptied) == 1 && emptied[0] == "r1"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.RoomCount())
}

func TestHub_LeaveRoomNotifies(t *testing.T) {
	emptied := make(chan string, 1)
	hub := NewHub(context.Background(), WithRoomEmpty(func(room string) { emptied <- room }))
	c := &Client{ID: "c1", hub: hub, send: make(chan []byte, 1)}

	assert.True(t, hub.JoinRoom(c, "k"))
	assert.False(t, hub.JoinRoom(c, "k"))
	hub.LeaveRoom(c, "k")
	assert.Equal(t, "k", <-emptied)

	hub.LeaveRoom(c, "k")
	assert.Empty(t, emptied)
}

func TestClient_SendAfterClose(t *testing.T) {
	hub := NewHub(context.Background())
	c := &Client{ID: "c1", hub: hub, send: make(chan []byte, 1)}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	require.NoError(t, c.SendJSON("a", 1))
	assert.ErrorIs(t, c.SendJSON("b", 2), errSendFull)

	c.closeSend()
	c.closeSend()
	assert.ErrorIs(t, c.SendJSON("c", 3), errClientClosed)
	assert.Error(t, c.Context().Err())
}

func TestUpgrader_RejectsForeignOrigin(t *testing.T) {
	_, url := startHub(t)

	header := map[string][]string{"Origin": {"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Shutdown()
	hub.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount())
}

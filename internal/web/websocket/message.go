package websocket

import (
	"context"
	"encoding/json"
	"fmt"
)

// Message types exchanged with browsers.
const (
	TypePing        = "ping"
	TypePong        = "pong"
	TypeError       = "error"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeSubscribed  = "subscribed"
	TypeResource    = "resource"
)

// Message is the envelope of every frame. Outgoing messages set Payload,
// which is marshaled into Data.
type Message struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Payload any             `json:"-"`
}

// MessageHandler handles one incoming message type.
type MessageHandler func(ctx context.Context, client *Client, message *Message) error

func marshalMessage(message *Message) ([]byte, error) {
	if message.Payload != nil {
		data, err := json.Marshal(message.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		message.Data = data
	}
	return json.Marshal(message)
}

// PingHandler answers ping with pong, echoing the data.
func PingHandler(_ context.Context, client *Client, message *Message) error {
	return client.Send(&Message{Type: TypePong, Data: message.Data})
}

// RegisterDefaultHandlers installs the built-in handlers.
func RegisterDefaultHandlers(hub *Hub) {
	hub.RegisterHandler(TypePing, PingHandler)
}

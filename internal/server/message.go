package server

import (
	"encoding/json"
	"time"

	"github.com/lox/dicepoker/internal/game"
)

// MessageType names a websocket message.
type MessageType string

const (
	// Client to server.
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypePing        MessageType = "ping"

	// Server to client.
	MessageTypeSnapshot MessageType = "snapshot"
	MessageTypeEvent    MessageType = "event"
	MessageTypePong     MessageType = "pong"
	MessageTypeError    MessageType = "error"
)

// AllTables subscribes to every table.
const AllTables = "*"

// Message is the websocket envelope.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage creates a message stamped with now.
func NewMessage(messageType MessageType, data any, now time.Time) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return &Message{Type: messageType, Data: raw, Timestamp: now}, nil
}

type SubscribeData struct {
	TableID string `json:"table_id"`
}

// EventData carries one game event for a table.
type EventData struct {
	TableID string         `json:"table_id"`
	Type    game.EventType `json:"type"`
	At      time.Time      `json:"at"`
	Event   game.GameEvent `json:"event"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

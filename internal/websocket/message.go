package websocket

import (
	"time"

	"offline-cart-sync/internal/events"

	json "github.com/goccy/go-json"
)

type MessageType string

const (
	TypeSnapshot MessageType = "snapshot"
	TypePing     MessageType = "ping"
	TypePong     MessageType = "pong"
)

// Event messages carry the bus topic as their type.
func TypeForTopic(topic events.Topic) MessageType {
	return MessageType(topic)
}

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Realtime event types pushed over the websocket.
const (
	EventNewMessage   = "new_message"
	EventMessagesRead = "messages_read"
	EventTyping       = "typing_indicator"
	EventError        = "error"
)

// WebSocketMessage is the frame wrapper for every realtime event.
type WebSocketMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessageEvent announces a stored message to the other participant.
type NewMessageEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Message        *Message  `json:"message"`
}

// MessagesReadEvent tells a sender that the reader caught up on a conversation.
type MessagesReadEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	ReaderID       uuid.UUID `json:"reader_id"`
	ReadAt         time.Time `json:"read_at"`
}

// TypingEvent is relayed from one participant to the other.
type TypingEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	ProfileID      uuid.UUID `json:"profile_id,omitempty"`
	IsTyping       bool      `json:"is_typing"`
}

// ErrorEvent reports a rejected inbound frame.
type ErrorEvent struct {
	Message string `json:"message"`
}

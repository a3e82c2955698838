package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageType distinguishes rendering of a message.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageSystem MessageType = "system"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageSystem:
		return true
	}
	return false
}

// MaxMessageLength bounds the content of a single message.
const MaxMessageLength = 5000

// Message is a chat message as stored and as returned by the API.
type Message struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	ConversationID uuid.UUID   `json:"conversation" db:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender" db:"sender_id"`
	SenderName     string      `json:"sender_name" db:"-"`
	Type           MessageType `json:"message_type" db:"message_type"`
	Content        string      `json:"content" db:"content"`
	Image          *string     `json:"image" db:"image_url"`
	IsRead         bool        `json:"is_read" db:"is_read"`
	ReadAt         *time.Time  `json:"read_at" db:"read_at"`
	IsMine         bool        `json:"is_mine" db:"-"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

// SendMessageRequest is the body of a send.
type SendMessageRequest struct {
	Content     string      `json:"content" binding:"required,max=5000"`
	MessageType MessageType `json:"message_type"`
}

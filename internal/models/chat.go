package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a two-party thread opened from a match.
type Conversation struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	MatchID       *uuid.UUID `json:"match_id,omitempty" db:"match_id"`
	Participant1  uuid.UUID  `json:"participant1" db:"participant1_id"`
	Participant2  uuid.UUID  `json:"participant2" db:"participant2_id"`
	LastMessage   string     `json:"last_message" db:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at" db:"last_message_at"`
	LastMessageBy *uuid.UUID `json:"last_message_by" db:"last_message_by"`
	Unread1       int        `json:"-" db:"unread_count_1"`
	Unread2       int        `json:"-" db:"unread_count_2"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// HasParticipant reports whether profileID takes part in the conversation.
func (c *Conversation) HasParticipant(profileID uuid.UUID) bool {
	return c.Participant1 == profileID || c.Participant2 == profileID
}

// OtherParticipant returns the participant that is not profileID.
func (c *Conversation) OtherParticipant(profileID uuid.UUID) uuid.UUID {
	if c.Participant1 == profileID {
		return c.Participant2
	}
	return c.Participant1
}

// UnreadFor returns the unread counter kept for profileID.
func (c *Conversation) UnreadFor(profileID uuid.UUID) int {
	if c.Participant1 == profileID {
		return c.Unread1
	}
	return c.Unread2
}

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	ID               uuid.UUID       `json:"id"`
	OtherParticipant *ProfileSummary `json:"other_participant"`
	LastMessage      string          `json:"last_message"`
	LastMessageAt    *time.Time      `json:"last_message_at"`
	UnreadCount      int             `json:"unread_count"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ConversationDetail is a single conversation with its recent messages.
type ConversationDetail struct {
	ID               uuid.UUID       `json:"id"`
	OtherParticipant *ProfileSummary `json:"other_participant"`
	IsActive         bool            `json:"is_active"`
	Messages         []*Message      `json:"messages"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Page is the paginated list envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// UnreadCountResponse carries the caller's unread total across conversations.
type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

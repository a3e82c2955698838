package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatRequestStatus is the lifecycle state of a chat request.
type ChatRequestStatus string

const (
	ChatRequestPending  ChatRequestStatus = "pending"
	ChatRequestAccepted ChatRequestStatus = "accepted"
	ChatRequestDeclined ChatRequestStatus = "declined"
)

// ChatRequest asks the other side of a match to unlock chat. Accepting it
// unlocks the match.
type ChatRequest struct {
	ID            uuid.UUID         `db:"id"`
	FromProfileID uuid.UUID         `db:"from_profile_id"`
	ToProfileID   uuid.UUID         `db:"to_profile_id"`
	MatchID       uuid.UUID         `db:"match_id"`
	Message       string            `db:"message"`
	Status        ChatRequestStatus `db:"status"`
	CreatedAt     time.Time         `db:"created_at"`
	RespondedAt   *time.Time        `db:"responded_at"`
}

// ChatRequestSummary is the chat request listing shape.
type ChatRequestSummary struct {
	ID          uuid.UUID         `json:"id"`
	MatchID     uuid.UUID         `json:"match"`
	FromProfile *ProfileSummary   `json:"from_profile"`
	ToProfile   *ProfileSummary   `json:"to_profile"`
	Message     string            `json:"message"`
	Status      ChatRequestStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	RespondedAt *time.Time        `json:"responded_at"`
}

// SendChatRequestRequest is the body of POST /chat/requests/send/.
type SendChatRequestRequest struct {
	MatchID uuid.UUID `json:"match_id" binding:"required"`
	Message string    `json:"message" binding:"max=500"`
}

// RespondChatRequestRequest is the body of POST /chat/requests/:id/respond/.
type RespondChatRequestRequest struct {
	Action string `json:"action"`
}

// RespondChatRequestResponse carries the unlocked conversation on accept.
type RespondChatRequestResponse struct {
	Message      string               `json:"message"`
	Conversation *ConversationSummary `json:"conversation,omitempty"`
}

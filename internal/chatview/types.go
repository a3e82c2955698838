// Package chatview is the client-side conversation view model: the
// conversation list, the open thread and the send pipeline. It owns no UI;
// the CLI and the terminal UI read its snapshots and call its operations.
package chatview

import (
	"context"
	"errors"
	"strings"
	"time"

	"soulconnect-chat/internal/models"

	"github.com/google/uuid"
)

var (
	ErrEmptyMessage         = errors.New("message is empty")
	ErrSendInFlight         = errors.New("a message is already being sent in this conversation")
	ErrSuperseded           = errors.New("result superseded by a newer request")
	ErrNoActiveConversation = errors.New("no conversation selected")
)

// ChatAPI is the slice of the backend the view model needs.
type ChatAPI interface {
	ListConversations(ctx context.Context) ([]models.ConversationSummary, error)
	ResolveMatchConversation(ctx context.Context, matchID uuid.UUID) (*models.ConversationDetail, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (*models.Message, error)
	MarkRead(ctx context.Context, conversationID uuid.UUID) error
}

// Participant is the other side of a conversation.
type Participant struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	PhotoURL  string
	IsOnline  bool
}

func (p Participant) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return "Unknown"
	}
	return name
}

// Conversation is one row of the conversation list.
type Conversation struct {
	ID          uuid.UUID
	Participant Participant
	LastMessage *Message
	UnreadCount int
}

// Message is a message as the view shows it. ID is nil only on a LastMessage preview.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	SenderName     string
	Type           models.MessageType
	Content        string
	IsRead         bool
	CreatedAt      time.Time
}

// Body is the rendering variant of a message: TextBody, ImageBody or SystemBody.
type Body interface {
	isBody()
}

type TextBody struct{ Text string }

type ImageBody struct{ URL string }

// SystemBody is a centered notice with no author.
type SystemBody struct{ Notice string }

func (TextBody) isBody()   {}
func (ImageBody) isBody()  {}
func (SystemBody) isBody() {}

// Body returns the rendering variant. Unknown types render as text.
func (m Message) Body() Body {
	switch m.Type {
	case models.MessageImage:
		return ImageBody{URL: m.Content}
	case models.MessageSystem:
		return SystemBody{Notice: m.Content}
	default:
		return TextBody{Text: m.Content}
	}
}

// FromModel converts a wire message.
func FromModel(m models.Message) Message {
	content := m.Content
	if m.Type == models.MessageImage && m.Image != nil && *m.Image != "" {
		content = *m.Image
	}
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		Type:           m.Type,
		Content:        content,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

func participantFrom(p *models.ProfileSummary) Participant {
	if p == nil {
		return Participant{}
	}
	out := Participant{
		ID:        p.ID,
		FirstName: p.User.FirstName,
		LastName:  p.User.LastName,
		IsOnline:  p.User.IsOnline,
	}
	if photo := models.PickPrimaryPhoto(p.Photos); photo != nil {
		out.PhotoURL = photo.ImageURL
	}
	return out
}

func conversationFromSummary(s models.ConversationSummary) Conversation {
	c := Conversation{
		ID:          s.ID,
		Participant: participantFrom(s.OtherParticipant),
		UnreadCount: max(s.UnreadCount, 0),
	}
	if s.LastMessageAt != nil {
		c.LastMessage = &Message{ConversationID: s.ID, Type: models.MessageText, Content: s.LastMessage, CreatedAt: *s.LastMessageAt}
	}
	return c
}

func conversationFromDetail(d *models.ConversationDetail) Conversation {
	c := Conversation{ID: d.ID, Participant: participantFrom(d.OtherParticipant)}
	if n := len(d.Messages); n > 0 && d.Messages[n-1] != nil {
		last := FromModel(*d.Messages[n-1])
		c.LastMessage = &last
	}
	return c
}

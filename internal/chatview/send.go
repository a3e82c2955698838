package chatview

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SendState is the state of the latest send attempt in a conversation.
type SendState int

const (
	SendIdle SendState = iota
	SendSending
	SendSucceeded
	SendFailed
)

func (s SendState) String() string {
	switch s {
	case SendIdle:
		return "idle"
	case SendSending:
		return "sending"
	case SendSucceeded:
		return "sent"
	case SendFailed:
		return "failed"
	}
	return "unknown"
}

// SendPipeline posts composed messages and folds the confirmed message back
// into the thread and the list. It keeps one draft per conversation.
type SendPipeline struct {
	api    ChatAPI
	convs  *ConversationStore
	thread *MessageListController

	mu       sync.Mutex
	drafts   map[uuid.UUID]string
	inFlight map[uuid.UUID]bool
	states   map[uuid.UUID]SendState
}

func NewSendPipeline(api ChatAPI, convs *ConversationStore, thread *MessageListController) *SendPipeline {
	return &SendPipeline{
		api:      api,
		convs:    convs,
		thread:   thread,
		drafts:   make(map[uuid.UUID]string),
		inFlight: make(map[uuid.UUID]bool),
		states:   make(map[uuid.UUID]SendState),
	}
}

func (p *SendPipeline) SetDraft(conversationID uuid.UUID, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if text == "" {
		delete(p.drafts, conversationID)
		return
	}
	p.drafts[conversationID] = text
}

func (p *SendPipeline) Draft(conversationID uuid.UUID) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drafts[conversationID]
}

func (p *SendPipeline) State(conversationID uuid.UUID) SendState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[conversationID]
}

// Sending reports whether a send is outstanding for the conversation.
func (p *SendPipeline) Sending(conversationID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight[conversationID]
}

// Send posts content. Blank content fails with ErrEmptyMessage before any
// call; a second send while one is outstanding fails with ErrSendInFlight.
// The draft is cleared only when the backend confirms the message.
func (p *SendPipeline) Send(ctx context.Context, conversationID uuid.UUID, content string) (*Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}

	p.mu.Lock()
	if p.inFlight[conversationID] {
		p.mu.Unlock()
		return nil, ErrSendInFlight
	}
	p.inFlight[conversationID] = true
	p.states[conversationID] = SendSending
	p.drafts[conversationID] = content
	p.mu.Unlock()

	sent, err := p.api.SendMessage(ctx, conversationID, trimmed)

	p.mu.Lock()
	delete(p.inFlight, conversationID)
	if err != nil {
		p.states[conversationID] = SendFailed
		p.mu.Unlock()
		log.Printf("SendMessage: conversation %s: %v", conversationID, err)
		return nil, err
	}
	p.states[conversationID] = SendSucceeded
	delete(p.drafts, conversationID)
	p.mu.Unlock()

	msg := FromModel(*sent)
	if msg.ConversationID == uuid.Nil {
		msg.ConversationID = conversationID
	}
	p.thread.Append(conversationID, msg)
	p.convs.ApplyIncomingMessage(conversationID, msg)
	return &msg, nil
}

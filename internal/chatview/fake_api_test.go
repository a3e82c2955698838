package chatview

import (
	"context"
	"errors"
	"sync"
	"time"

	"soulconnect-chat/internal/models"

	"github.com/google/uuid"
)

var errBackend = errors.New("backend unavailable")

type fakeAPI struct {
	mu sync.Mutex
	me uuid.UUID

	conversations []models.ConversationSummary
	listErr       error

	messages    map[uuid.UUID][]models.Message
	messagesErr error
	gates       map[uuid.UUID]chan struct{}
	started     chan uuid.UUID

	details     map[uuid.UUID]*models.ConversationDetail
	resolveErr  error
	resolveGate chan struct{}

	markReadErr   error
	markReadCalls []uuid.UUID

	sendErr   error
	sendGate  chan struct{}
	sendCalls []string
}

func newFakeAPI(me uuid.UUID) *fakeAPI {
	return &fakeAPI{
		me:       me,
		messages: make(map[uuid.UUID][]models.Message),
		gates:    make(map[uuid.UUID]chan struct{}),
		details:  make(map[uuid.UUID]*models.ConversationDetail),
	}
}

func (f *fakeAPI) ListConversations(context.Context) ([]models.ConversationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.ConversationSummary(nil), f.conversations...), nil
}

func (f *fakeAPI) ResolveMatchConversation(_ context.Context, matchID uuid.UUID) (*models.ConversationDetail, error) {
	if f.resolveGate != nil {
		<-f.resolveGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	d, ok := f.details[matchID]
	if !ok {
		return nil, errors.New("match not found")
	}
	return d, nil
}

func (f *fakeAPI) ListMessages(_ context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	f.mu.Lock()
	gate := f.gates[conversationID]
	started := f.started
	f.mu.Unlock()
	if started != nil {
		started <- conversationID
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	return append([]models.Message(nil), f.messages[conversationID]...), nil
}

func (f *fakeAPI) SendMessage(_ context.Context, conversationID uuid.UUID, content string) (*models.Message, error) {
	f.mu.Lock()
	f.sendCalls = append(f.sendCalls, content)
	gate := f.sendGate
	err := f.sendErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       f.me,
		Type:           models.MessageText,
		Content:        content,
		CreatedAt:      time.Now(),
	}, nil
}

func (f *fakeAPI) MarkRead(_ context.Context, conversationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReadCalls = append(f.markReadCalls, conversationID)
	return f.markReadErr
}

func (f *fakeAPI) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sendCalls)
}

func (f *fakeAPI) markReadCount(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.markReadCalls {
		if c == id {
			n++
		}
	}
	return n
}

func summary(first string, unread int) models.ConversationSummary {
	return models.ConversationSummary{
		ID:               uuid.New(),
		OtherParticipant: &models.ProfileSummary{ID: uuid.New(), User: models.UserBasic{FirstName: first}},
		UnreadCount:      unread,
		IsActive:         true,
	}
}

func received(conversationID, from uuid.UUID, content string, at time.Time) models.Message {
	return models.Message{ID: uuid.New(), ConversationID: conversationID, SenderID: from, Type: models.MessageText, Content: content, CreatedAt: at}
}

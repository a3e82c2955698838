package chatview

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// ConversationStore holds the conversation list and the selected conversation.
type ConversationStore struct {
	api ChatAPI

	mu            sync.RWMutex
	conversations []Conversation
	activeID      uuid.UUID
	pendingMatch  int
}

func NewConversationStore(api ChatAPI) *ConversationStore {
	return &ConversationStore{api: api}
}

// LoadConversations replaces the list with the backend's. On failure the
// previous list is kept.
func (s *ConversationStore) LoadConversations(ctx context.Context) error {
	summaries, err := s.api.ListConversations(ctx)
	if err != nil {
		log.Printf("LoadConversations: %v", err)
		return err
	}

	list := make([]Conversation, 0, len(summaries))
	for _, summary := range summaries {
		list = append(list, conversationFromSummary(summary))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A conversation selected from a match may be newer than the fetched list.
	if s.activeID != uuid.Nil && indexOf(list, s.activeID) < 0 {
		if i := indexOf(s.conversations, s.activeID); i >= 0 {
			list = append([]Conversation{s.conversations[i]}, list...)
		}
	}
	s.conversations = list
	s.autoSelectLocked()
	return nil
}

// OpenMatch resolves the conversation of a match and selects it. A match
// selection overrides whatever the list load selected.
func (s *ConversationStore) OpenMatch(ctx context.Context, matchID uuid.UUID) (uuid.UUID, error) {
	s.beginMatch()
	return s.resolveMatch(ctx, matchID)
}

// beginMatch marks a match resolution as pending so list loads do not auto-select.
func (s *ConversationStore) beginMatch() {
	s.mu.Lock()
	s.pendingMatch++
	s.mu.Unlock()
}

func (s *ConversationStore) resolveMatch(ctx context.Context, matchID uuid.UUID) (uuid.UUID, error) {
	detail, err := s.api.ResolveMatchConversation(ctx, matchID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingMatch--
	if err != nil {
		log.Printf("OpenMatch: match %s: %v", matchID, err)
		s.autoSelectLocked()
		return uuid.Nil, err
	}

	conv := conversationFromDetail(detail)
	if i := indexOf(s.conversations, conv.ID); i >= 0 {
		conv.UnreadCount = s.conversations[i].UnreadCount
		if conv.LastMessage == nil {
			conv.LastMessage = s.conversations[i].LastMessage
		}
		s.conversations[i] = conv
	} else {
		s.conversations = append([]Conversation{conv}, s.conversations...)
	}
	s.activeID = conv.ID
	return conv.ID, nil
}

func (s *ConversationStore) autoSelectLocked() {
	if s.activeID == uuid.Nil && s.pendingMatch == 0 && len(s.conversations) > 0 {
		s.activeID = s.conversations[0].ID
	}
}

// SelectConversation sets the active conversation.
func (s *ConversationStore) SelectConversation(id uuid.UUID) {
	s.mu.Lock()
	s.activeID = id
	s.mu.Unlock()
}

// ActiveID returns the selected conversation, or uuid.Nil.
func (s *ConversationStore) ActiveID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Conversations returns a snapshot of the list.
func (s *ConversationStore) Conversations() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

func (s *ConversationStore) Conversation(id uuid.UUID) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.conversations, id); i >= 0 {
		return s.conversations[i], true
	}
	return Conversation{}, false
}

// ApplyIncomingMessage refreshes the list preview. The unread count is untouched.
func (s *ConversationStore) ApplyIncomingMessage(conversationID uuid.UUID, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.conversations, conversationID); i >= 0 {
		m := msg
		s.conversations[i].LastMessage = &m
	}
}

// RecordRemoteMessage applies a message pushed by the server from the other
// participant. It counts as unread unless the conversation is open. It
// reports false when the conversation is not in the list.
func (s *ConversationStore) RecordRemoteMessage(conversationID uuid.UUID, msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.conversations, conversationID)
	if i < 0 {
		return false
	}
	m := msg
	s.conversations[i].LastMessage = &m
	if conversationID != s.activeID {
		s.conversations[i].UnreadCount++
	}
	return true
}

// ClearUnread zeroes the badge. Call it only after a successful read call.
func (s *ConversationStore) ClearUnread(conversationID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.conversations, conversationID); i >= 0 {
		s.conversations[i].UnreadCount = 0
	}
}

// TotalUnread sums the badges.
func (s *ConversationStore) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, c := range s.conversations {
		total += c.UnreadCount
	}
	return total
}

func indexOf(list []Conversation, id uuid.UUID) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// Package memstore keeps every store in process memory. It backs the
// server's memory storage mode and handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"soulconnect-chat/internal/models"
	"soulconnect-chat/internal/store"

	"github.com/google/uuid"
)

// Store implements every store interface.
type Store struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]*models.User
	profiles      map[uuid.UUID]*models.Profile
	photos        map[uuid.UUID][]models.Photo
	likes         map[[2]uuid.UUID]bool
	matches       map[uuid.UUID]*models.Match
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID][]*models.Message
	requests      map[uuid.UUID]*models.ChatRequest
}

var (
	_ store.UserStore    = (*Store)(nil)
	_ store.MatchStore   = (*Store)(nil)
	_ store.ChatStore    = (*Store)(nil)
	_ store.MessageStore = (*Store)(nil)

	_ store.ChatRequestStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:         make(map[uuid.UUID]*models.User),
		profiles:      make(map[uuid.UUID]*models.Profile),
		photos:        make(map[uuid.UUID][]models.Photo),
		likes:         make(map[[2]uuid.UUID]bool),
		matches:       make(map[uuid.UUID]*models.Match),
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID][]*models.Message),
		requests:      make(map[uuid.UUID]*models.ChatRequest),
	}
}

func (s *Store) CreateUser(_ context.Context, user *models.User, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return store.ErrEmailExists
		}
	}
	user.ProfileID = profile.ID
	profile.UserID = user.ID
	u, p := *user, *profile
	s.users[user.ID] = &u
	s.profiles[profile.ID] = &p
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *Store) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) TouchLastActive(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.LastActive = time.Now().UTC()
	}
	return nil
}

func (s *Store) summary(profileID uuid.UUID) (*models.ProfileSummary, bool) {
	p, ok := s.profiles[profileID]
	if !ok {
		return nil, false
	}
	u := s.users[p.UserID]
	photos := append([]models.Photo{}, s.photos[profileID]...)
	ps := &models.ProfileSummary{
		ID:       p.ID,
		User:     models.UserBasic{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName},
		FullName: u.FullName(),
		City:     p.City,
		Photos:   photos,
	}
	ps.PrimaryPhoto = models.PickPrimaryPhoto(ps.Photos)
	return ps, true
}

func (s *Store) GetProfileSummaries(_ context.Context, profileIDs []uuid.UUID) (map[uuid.UUID]*models.ProfileSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]*models.ProfileSummary, len(profileIDs))
	for _, id := range profileIDs {
		if ps, ok := s.summary(id); ok {
			out[id] = ps
		}
	}
	return out, nil
}

func (s *Store) SearchProfiles(_ context.Context, query string, exclude uuid.UUID, limit int) ([]*models.ProfileSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := strings.ToLower(query)
	out := make([]*models.ProfileSummary, 0)
	for id := range s.profiles {
		if id == exclude {
			continue
		}
		ps, _ := s.summary(id)
		if strings.Contains(strings.ToLower(ps.User.FirstName), q) || strings.Contains(strings.ToLower(ps.User.LastName), q) {
			out = append(out, ps)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AddPhoto(_ context.Context, profileID uuid.UUID, photo *models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profileID]; !ok {
		return store.ErrProfileNotFound
	}
	photos := s.photos[profileID]
	if photo.IsPrimary {
		for i := range photos {
			photos[i].IsPrimary = false
		}
	}
	photo.DisplayOrder = len(photos)
	s.photos[profileID] = append(photos, *photo)
	return nil
}

func (s *Store) CreateLike(_ context.Context, from, to uuid.UUID, _ string) (*models.Match, error) {
	if from == to {
		return nil, store.ErrSelfLike
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[to]; !ok {
		return nil, store.ErrProfileNotFound
	}
	if s.likes[[2]uuid.UUID{from, to}] {
		return nil, store.ErrAlreadyLiked
	}
	s.likes[[2]uuid.UUID{from, to}] = true
	if !s.likes[[2]uuid.UUID{to, from}] {
		return nil, nil
	}

	p1, p2 := models.OrderedPair(from, to)
	for _, m := range s.matches {
		if m.Profile1ID == p1 && m.Profile2ID == p2 {
			m.Status = models.MatchActive
			cp := *m
			return &cp, nil
		}
	}
	m := &models.Match{
		ID:         uuid.New(),
		Profile1ID: p1,
		Profile2ID: p2,
		Status:     models.MatchActive,
		MatchedAt:  time.Now().UTC(),
	}
	s.matches[m.ID] = m
	cp := *m
	return &cp, nil
}

// PutMatch stores a match directly, bypassing likes.
func (s *Store) PutMatch(m *models.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.matches[m.ID] = &cp
}

func (s *Store) GetMatchByID(_ context.Context, id uuid.UUID) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, store.ErrMatchNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) ListActiveMatches(_ context.Context, profileID uuid.UUID) ([]*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Match, 0)
	for _, m := range s.matches {
		if m.Involves(profileID) && m.Status == models.MatchActive {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchedAt.After(out[j].MatchedAt) })
	return out, nil
}

func (s *Store) Unmatch(_ context.Context, matchID, by uuid.UUID) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok || !m.Involves(by) || m.Status != models.MatchActive {
		return nil, store.ErrMatchNotFound
	}
	now := time.Now().UTC()
	m.Status = models.MatchUnmatched
	m.UnmatchedBy = &by
	m.UnmatchedAt = &now
	for _, c := range s.conversations {
		if c.MatchID != nil && *c.MatchID == matchID {
			c.IsActive = false
		}
	}
	cp := *m
	return &cp, nil
}

func (s *Store) CreateChatRequest(_ context.Context, req *models.ChatRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.Status == models.ChatRequestPending && r.FromProfileID == req.FromProfileID && r.ToProfileID == req.ToProfileID {
			return store.ErrChatRequestExists
		}
	}
	req.Status = models.ChatRequestPending
	req.CreatedAt = time.Now().UTC()
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *Store) ListPendingChatRequests(_ context.Context, toProfileID uuid.UUID) ([]*models.ChatRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ChatRequest, 0)
	for _, r := range s.requests {
		if r.ToProfileID == toProfileID && r.Status == models.ChatRequestPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) RespondChatRequest(_ context.Context, requestID, responder uuid.UUID, accept bool) (*models.ChatRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok || r.ToProfileID != responder || r.Status != models.ChatRequestPending {
		return nil, store.ErrChatRequestNotFound
	}
	now := time.Now().UTC()
	r.RespondedAt = &now
	r.Status = models.ChatRequestDeclined
	if accept {
		r.Status = models.ChatRequestAccepted
		if m, ok := s.matches[r.MatchID]; ok {
			m.ChatUnlocked = true
			m.ChatUnlockedAt = &now
		}
	}
	cp := *r
	return &cp, nil
}

func (s *Store) GetConversationByID(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, store.ErrChatNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) GetOrCreateForMatch(_ context.Context, match *models.Match) (*models.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.MatchID != nil && *c.MatchID == match.ID {
			cp := *c
			return &cp, false, nil
		}
	}
	matchID := match.ID
	c := &models.Conversation{
		ID:           uuid.New(),
		MatchID:      &matchID,
		Participant1: match.Profile1ID,
		Participant2: match.Profile2ID,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	s.conversations[c.ID] = c
	cp := *c
	return &cp, true, nil
}

func (s *Store) ListForParticipant(_ context.Context, profileID uuid.UUID, limit, offset int) ([]*models.Conversation, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*models.Conversation, 0)
	for _, c := range s.conversations {
		if c.HasParticipant(profileID) && c.IsActive {
			cp := *c
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		switch {
		case a.LastMessageAt != nil && b.LastMessageAt != nil:
			return a.LastMessageAt.After(*b.LastMessageAt)
		case a.LastMessageAt != nil:
			return true
		case b.LastMessageAt != nil:
			return false
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	total := len(all)
	if offset >= total {
		return []*models.Conversation{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *Store) MarkAsRead(_ context.Context, conversationID, profileID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return 0, store.ErrChatNotFound
	}
	now := time.Now().UTC()
	var updated int64
	for _, m := range s.messages[conversationID] {
		if m.SenderID != profileID && !m.IsRead {
			m.IsRead = true
			m.ReadAt = &now
			updated++
		}
	}
	if c.Participant1 == profileID {
		c.Unread1 = 0
	}
	if c.Participant2 == profileID {
		c.Unread2 = 0
	}
	return updated, nil
}

func (s *Store) TotalUnread(_ context.Context, profileID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, c := range s.conversations {
		if c.HasParticipant(profileID) && c.IsActive {
			total += c.UnreadFor(profileID)
		}
	}
	return total, nil
}

func (s *Store) CreateMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[msg.ConversationID]
	if !ok {
		return store.ErrChatNotFound
	}
	cp := *msg
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], &cp)

	at, by := msg.CreatedAt, msg.SenderID
	c.LastMessage = store.Preview(msg)
	c.LastMessageAt = &at
	c.LastMessageBy = &by
	if c.Participant1 != msg.SenderID {
		c.Unread1++
	}
	if c.Participant2 != msg.SenderID {
		c.Unread2++
	}
	return nil
}

func (s *Store) ListMessages(_ context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.messages[conversationID]
	if limit > 0 && len(stored) > limit {
		stored = stored[len(stored)-limit:]
	}
	out := make([]*models.Message, 0, len(stored))
	for _, m := range stored {
		cp := *m
		if p, ok := s.profiles[m.SenderID]; ok {
			cp.SenderName = s.users[p.UserID].FullName()
		}
		out = append(out, &cp)
	}
	return out, nil
}

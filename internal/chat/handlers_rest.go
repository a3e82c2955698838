package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"soulconnect-chat/internal/middleware"
	"soulconnect-chat/internal/models"
	"soulconnect-chat/internal/store"
	"soulconnect-chat/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	detailMessages  = 50
)

// Notifier pushes realtime events and answers presence queries.
type Notifier interface {
	user.Presence
	Notify(ctx context.Context, recipients []uuid.UUID, eventType string, payload any) error
}

// RestHandler handles the chat REST API.
type RestHandler struct {
	chatStore     store.ChatStore
	messageStore  store.MessageStore
	matchStore    store.MatchStore
	userStore     store.UserStore
	notifier      Notifier
	requireUnlock bool
}

func NewRestHandler(cs store.ChatStore, ms store.MessageStore, mts store.MatchStore, us store.UserStore, notifier Notifier, requireUnlock bool) *RestHandler {
	return &RestHandler{
		chatStore:     cs,
		messageStore:  ms,
		matchStore:    mts,
		userStore:     us,
		notifier:      notifier,
		requireUnlock: requireUnlock,
	}
}

// ListConversations returns the caller's conversations, most recent first.
// GET /chat/conversations/?page=<n>&page_size=<n>
func (h *RestHandler) ListConversations(c *gin.Context) {
	_, me, _ := middleware.CurrentUser(c)
	page, pageSize := pagination(c)

	conversations, total, err := h.chatStore.ListForParticipant(c.Request.Context(), me, pageSize, (page-1)*pageSize)
	if err != nil {
		log.Printf("ListConversations: Failed for profile %s: %v", me, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve conversations"})
		return
	}

	ids := make([]uuid.UUID, 0, len(conversations))
	for _, conv := range conversations {
		ids = append(ids, conv.OtherParticipant(me))
	}
	profiles, err := user.Summaries(c.Request.Context(), h.userStore, h.notifier, ids...)
	if err != nil {
		log.Printf("ListConversations: Failed to load participants for %s: %v", me, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve conversations"})
		return
	}

	results := make([]models.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		results = append(results, models.ConversationSummary{
			ID:               conv.ID,
			OtherParticipant: profiles[conv.OtherParticipant(me)],
			LastMessage:      conv.LastMessage,
			LastMessageAt:    conv.LastMessageAt,
			UnreadCount:      conv.UnreadFor(me),
			IsActive:         conv.IsActive,
			CreatedAt:        conv.CreatedAt,
		})
	}

	resp := models.Page[models.ConversationSummary]{Count: total, Results: results}
	if page*pageSize < total {
		resp.Next = pageLink(c, page+1, pageSize)
	}
	if page > 1 {
		resp.Previous = pageLink(c, page-1, pageSize)
	}
	c.JSON(http.StatusOK, resp)
}

// GetConversation returns one conversation with its recent messages and marks it read.
// GET /chat/conversations/:id/
func (h *RestHandler) GetConversation(c *gin.Context) {
	_, me, _ := middleware.CurrentUser(c)
	conv, ok := h.conversationFor(c, me)
	if !ok {
		return
	}

	detail, err := h.detail(c.Request.Context(), conv, me)
	if err != nil {
		log.Printf("GetConversation: Failed to build detail for %s: %v", conv.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve conversation"})
		return
	}
	h.markRead(c.Request.Context(), conv, me)
	c.JSON(http.StatusOK, detail)
}

// GetOrCreateForMatch resolves the conversation for a match, creating it on first use.
// POST /chat/conversations/match/:matchId/
func (h *RestHandler) GetOrCreateForMatch(c *gin.Context) {
	_, me, _ := middleware.CurrentUser(c)
	matchID, err := uuid.Parse(c.Param("matchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid match ID format"})
		return
	}

	match, err := h.matchStore.GetMatchByID(c.Request.Context(), matchID)
	if err != nil {
		if errors.Is(err, store.ErrMatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Match not found."})
			return
		}
		log.Printf("GetOrCreateForMatch: Failed to load match %s: %v", matchID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open conversation"})
		return
	}
	if !match.Involves(me) || match.Status != models.MatchActive {
		c.JSON(http.StatusNotFound, gin.H{"error": "Match not found."})
		return
	}
	if h.requireUnlock && !match.ChatUnlocked {
		c.JSON(http.StatusForbidden, gin.H{"error": "Chat is locked for this match. Upgrade to premium to unlock chat."})
		return
	}

	conv, created, err := h.chatStore.GetOrCreateForMatch(c.Request.Context(), match)
	if err != nil {
		log.Printf("GetOrCreateForMatch: Failed for match %s: %v", matchID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open conversation"})
		return
	}

	detail, err := h.detail(c.Request.Context(), conv, me)
	if err != nil {
		log.Printf("GetOrCreateForMatch: Failed to build detail for %s: %v", conv.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open conversation"})
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, detail)
}

// ListMessages returns every message of a conversation in chronological order.
// GET /chat/conversations/:id/messages/
func (h *RestHandler) ListMessages(c *gin.Context) {
	_, me, _ := middleware.CurrentUser(c)
	conv, ok := h.conversationFor(c, me)
	if !ok {
		return
	}

	messages, err := h.messageStore.ListMessages(c.Request.Context(), conv.ID, 0)
	if err != nil {
		log.Printf("ListMessages: Failed for conversation %s: %v", conv.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}
	for _, m := range messages {
		m.IsMine = m.SenderID == me
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage stores a message from the caller.
// POST /chat/conversations/:id/send/
func (h *RestHandler) SendMessage(c *gin.Context) {
	_, me, _ := middleware.CurrentUser(c)

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message content may not be blank."})
		return
	}
	msgType := req.MessageType
	if msgType == "" {
		msgType = models.MessageText
	}
	if msgType != models.MessageText && msgType != models.MessageImage {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("\"%s\" is not a valid message type.", msgType)})
		return
	}

	conv, ok := h.conversationFor(c, me)
	if !ok {
		return
	}
	if !conv.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "This conversation is no longer active."})
		return
	}
	if h.requireUnlock && !h.unlocked(c.Request.Context(), conv) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Chat is locked for this match. Upgrade to premium to unlock chat."})
		return
	}

	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       me,
		Type:           msgType,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if msgType == models.MessageImage {
		msg.Image = &content
	}

	if err := h.messageStore.CreateMessage(c.Request.Context(), msg); err != nil {
		log.Printf("SendMessage: Failed to store message for conversation %s: %v", conv.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}
	if profiles, err := h.userStore.GetProfileSummaries(c.Request.Context(), []uuid.UUID{me}); err == nil {
		if p, ok := profiles[me]; ok {
			msg.SenderName = p.FullName
		}
	}

	outbound := *msg
	if err := h.notifier.Notify(c.Request.Context(), []uuid.UUID{conv.OtherParticipant(me)}, models.EventNewMessage,
		models.NewMessageEvent{ConversationID: conv.ID, Message: &outbound}); err != nil {
		log.Printf("SendMessage: realtime notify failed for conversation %s: %v", conv.ID, err)
	}

	msg.IsMine = true
	c.JSON(http.StatusCreated, msg)
}

// MarkAsRead marks every received message of the conversation as read.
// POST /chat/conversations/:id/read/
func (h *RestHandler) MarkAsRead(c *gin.Context) {
	_, me, _ := middleware.CurrentUser(c)
	conv, ok := h.conversationFor(c, me)
	if !ok {
		return
	}
	if err := h.markRead(c.Request.Context(), conv, me); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark messages as read"})
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Messages marked as read."})
}

// UnreadCount returns the caller's unread total.
// GET /chat/unread/
func (h *RestHandler) UnreadCount(c *gin.Context) {
	_, me, _ := middleware.CurrentUser(c)
	total, err := h.chatStore.TotalUnread(c.Request.Context(), me)
	if err != nil {
		log.Printf("UnreadCount: Failed for profile %s: %v", me, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count unread messages"})
		return
	}
	c.JSON(http.StatusOK, models.UnreadCountResponse{UnreadCount: total})
}

// conversationFor loads the :id conversation and writes a 404 unless me takes part in it.
func (h *RestHandler) conversationFor(c *gin.Context, me uuid.UUID) (*models.Conversation, bool) {
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID format"})
		return nil, false
	}
	conv, err := h.chatStore.GetConversationByID(c.Request.Context(), convID)
	if err != nil {
		if errors.Is(err, store.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found."})
			return nil, false
		}
		log.Printf("conversationFor: Failed to load conversation %s: %v", convID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve conversation"})
		return nil, false
	}
	if !conv.HasParticipant(me) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found."})
		return nil, false
	}
	return conv, true
}

func (h *RestHandler) detail(ctx context.Context, conv *models.Conversation, me uuid.UUID) (*models.ConversationDetail, error) {
	other := conv.OtherParticipant(me)
	profiles, err := user.Summaries(ctx, h.userStore, h.notifier, other)
	if err != nil {
		return nil, err
	}
	messages, err := h.messageStore.ListMessages(ctx, conv.ID, detailMessages)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		m.IsMine = m.SenderID == me
	}
	return &models.ConversationDetail{
		ID:               conv.ID,
		OtherParticipant: profiles[other],
		IsActive:         conv.IsActive,
		Messages:         messages,
		CreatedAt:        conv.CreatedAt,
	}, nil
}

func (h *RestHandler) markRead(ctx context.Context, conv *models.Conversation, me uuid.UUID) error {
	updated, err := h.chatStore.MarkAsRead(ctx, conv.ID, me)
	if err != nil {
		log.Printf("MarkAsRead: Failed for conversation %s: %v", conv.ID, err)
		return err
	}
	if updated > 0 {
		event := models.MessagesReadEvent{ConversationID: conv.ID, ReaderID: me, ReadAt: time.Now().UTC()}
		if err := h.notifier.Notify(ctx, []uuid.UUID{conv.OtherParticipant(me)}, models.EventMessagesRead, event); err != nil {
			log.Printf("MarkAsRead: realtime notify failed for conversation %s: %v", conv.ID, err)
		}
	}
	return nil
}

func (h *RestHandler) unlocked(ctx context.Context, conv *models.Conversation) bool {
	if conv.MatchID == nil {
		return false
	}
	match, err := h.matchStore.GetMatchByID(ctx, *conv.MatchID)
	if err != nil {
		log.Printf("unlocked: Failed to load match %s: %v", *conv.MatchID, err)
		return false
	}
	return match.ChatUnlocked
}

func pagination(c *gin.Context) (page, pageSize int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func pageLink(c *gin.Context, page, pageSize int) *string {
	u := *c.Request.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()
	link := u.RequestURI()
	return &link
}

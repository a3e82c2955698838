package chat

import (
	"errors"
	"log"
	"net/http"

	"soulconnect-chat/internal/middleware"
	"soulconnect-chat/internal/models"
	"soulconnect-chat/internal/store"
	"soulconnect-chat/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestHandler handles chat requests, which unlock chat on a match when
// the other side accepts.
type RequestHandler struct {
	requestStore store.ChatRequestStore
	matchStore   store.MatchStore
	chatStore    store.ChatStore
	userStore    store.UserStore
	presence     user.Presence
}

func NewRequestHandler(rs store.ChatRequestStore, ms store.MatchStore, cs store.ChatStore, us store.UserStore, presence user.Presence) *RequestHandler {
	return &RequestHandler{requestStore: rs, matchStore: ms, chatStore: cs, userStore: us, presence: presence}
}

// ListRequests returns the pending requests addressed to the caller.
// GET /chat/requests/
func (h *RequestHandler) ListRequests(c *gin.Context) {
	_, me, _ := middleware.CurrentUser(c)

	requests, err := h.requestStore.ListPendingChatRequests(c.Request.Context(), me)
	if err != nil {
		log.Printf("ListRequests: Failed for profile %s: %v", me, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve chat requests"})
		return
	}

	ids := []uuid.UUID{me}
	for _, r := range requests {
		ids = append(ids, r.FromProfileID)
	}
	profiles, err := user.Summaries(c.Request.Context(), h.userStore, h.presence, ids...)
	if err != nil {
		log.Printf("ListRequests: Failed to load profiles for %s: %v", me, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve chat requests"})
		return
	}

	results := make([]models.ChatRequestSummary, 0, len(requests))
	for _, r := range requests {
		results = append(results, requestSummary(r, profiles))
	}
	c.JSON(http.StatusOK, models.Page[models.ChatRequestSummary]{Count: len(results), Results: results})
}

// SendRequest asks the other side of an active match to unlock chat.
// POST /chat/requests/send/
func (h *RequestHandler) SendRequest(c *gin.Context) {
	_, me, _ := middleware.CurrentUser(c)

	var req models.SendChatRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	match, err := h.matchStore.GetMatchByID(c.Request.Context(), req.MatchID)
	if err != nil && !errors.Is(err, store.ErrMatchNotFound) {
		log.Printf("SendRequest: Failed to load match %s: %v", req.MatchID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send chat request"})
		return
	}
	if match == nil || !match.Involves(me) || match.Status != models.MatchActive {
		c.JSON(http.StatusNotFound, gin.H{"error": "Match not found."})
		return
	}
	if match.ChatUnlocked {
		c.JSON(http.StatusOK, models.MessageResponse{Message: "Chat is already unlocked."})
		return
	}

	chatReq := &models.ChatRequest{
		ID:            uuid.New(),
		FromProfileID: me,
		ToProfileID:   match.Other(me),
		MatchID:       match.ID,
		Message:       req.Message,
	}
	if err := h.requestStore.CreateChatRequest(c.Request.Context(), chatReq); err != nil {
		if errors.Is(err, store.ErrChatRequestExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Chat request already sent."})
			return
		}
		log.Printf("SendRequest: Failed %s -> %s: %v", me, chatReq.ToProfileID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send chat request"})
		return
	}

	profiles, err := user.Summaries(c.Request.Context(), h.userStore, h.presence, me, chatReq.ToProfileID)
	if err != nil {
		log.Printf("SendRequest: Failed to load profiles for request %s: %v", chatReq.ID, err)
	}
	c.JSON(http.StatusCreated, requestSummary(chatReq, profiles))
}

// RespondRequest accepts or declines a pending request addressed to the caller.
// Accepting unlocks chat and returns the match's conversation.
// POST /chat/requests/:id/respond/
func (h *RequestHandler) RespondRequest(c *gin.Context) {
	_, me, _ := middleware.CurrentUser(c)
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat request ID format"})
		return
	}

	var req models.RespondChatRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Action != "accept" && req.Action != "decline") {
		c.JSON(http.StatusBadRequest, gin.H{"error": `Invalid action. Use "accept" or "decline".`})
		return
	}
	accept := req.Action == "accept"

	chatReq, err := h.requestStore.RespondChatRequest(c.Request.Context(), requestID, me, accept)
	if err != nil {
		if errors.Is(err, store.ErrChatRequestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat request not found."})
			return
		}
		log.Printf("RespondRequest: Failed for request %s: %v", requestID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to respond to chat request"})
		return
	}
	if !accept {
		c.JSON(http.StatusOK, models.RespondChatRequestResponse{Message: "Chat request declined."})
		return
	}

	summary, err := h.unlockedConversation(c, chatReq, me)
	if err != nil {
		log.Printf("RespondRequest: Failed to open conversation for match %s: %v", chatReq.MatchID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open conversation"})
		return
	}
	c.JSON(http.StatusOK, models.RespondChatRequestResponse{Message: "Chat request accepted.", Conversation: summary})
}

func (h *RequestHandler) unlockedConversation(c *gin.Context, chatReq *models.ChatRequest, me uuid.UUID) (*models.ConversationSummary, error) {
	ctx := c.Request.Context()
	match, err := h.matchStore.GetMatchByID(ctx, chatReq.MatchID)
	if err != nil {
		return nil, err
	}
	conv, _, err := h.chatStore.GetOrCreateForMatch(ctx, match)
	if err != nil {
		return nil, err
	}
	other := conv.OtherParticipant(me)
	profiles, err := user.Summaries(ctx, h.userStore, h.presence, other)
	if err != nil {
		return nil, err
	}
	return &models.ConversationSummary{
		ID:               conv.ID,
		OtherParticipant: profiles[other],
		LastMessage:      conv.LastMessage,
		LastMessageAt:    conv.LastMessageAt,
		UnreadCount:      conv.UnreadFor(me),
		IsActive:         conv.IsActive,
		CreatedAt:        conv.CreatedAt,
	}, nil
}

func requestSummary(r *models.ChatRequest, profiles map[uuid.UUID]*models.ProfileSummary) models.ChatRequestSummary {
	return models.ChatRequestSummary{
		ID:          r.ID,
		MatchID:     r.MatchID,
		FromProfile: profiles[r.FromProfileID],
		ToProfile:   profiles[r.ToProfileID],
		Message:     r.Message,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		RespondedAt: r.RespondedAt,
	}
}

package matching

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

// MatchHandler exposes likes and the match list.
type MatchHandler struct {
	matchStore store.MatchStore
	userStore  store.UserStore
	presence   user.Presence
}

func NewMatchHandler(ms store.MatchStore, us store.UserStore, presence user.Presence) *MatchHandler {
	return &MatchHandler{matchStore: ms, userStore: us, presence: presence}
}

// ListMatches returns the caller's active matches.
// GET /matching/matches/
func (h *MatchHandler) ListMatches(c *gin.Context) {
	_, me, _ := middleware.CurrentUser(c)

	matches, err := h.matchStore.ListActiveMatches(c.Request.Context(), me)
	if err != nil {
		log.Printf("ListMatches: Failed for profile %s: %v", me, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve matches"})
		return
	}

	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.Other(me))
	}
	profiles, err := user.Summaries(c.Request.Context(), h.userStore, h.presence, ids...)
	if err != nil {
		log.Printf("ListMatches: Failed to load profiles for %s: %v", me, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve matches"})
		return
	}

	results := make([]models.MatchSummary, 0, len(matches))
	for _, m := range matches {
		results = append(results, summarize(m, profiles[m.Other(me)]))
	}
	c.JSON(http.StatusOK, models.Page[models.MatchSummary]{Count: len(results), Results: results})
}

// SendLike likes a profile and reports whether it completed a match.
// POST /matching/like/
func (h *MatchHandler) SendLike(c *gin.Context) {
	_, me, _ := middleware.CurrentUser(c)

	var req models.LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	match, err := h.matchStore.CreateLike(c.Request.Context(), me, req.ProfileID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyLiked):
			c.JSON(http.StatusBadRequest, gin.H{"error": "You have already liked this profile."})
		case errors.Is(err, store.ErrSelfLike):
			c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot like your own profile."})
		case errors.Is(err, store.ErrProfileNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found."})
		default:
			log.Printf("SendLike: Failed %s -> %s: %v", me, req.ProfileID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send like"})
		}
		return
	}

	resp := models.LikeResponse{Message: "Like sent successfully."}
	if match != nil {
		resp.IsMatch = true
		profiles, err := user.Summaries(c.Request.Context(), h.userStore, h.presence, req.ProfileID)
		if err != nil {
			log.Printf("SendLike: Failed to load matched profile %s: %v", req.ProfileID, err)
		}
		summary := summarize(match, profiles[req.ProfileID])
		resp.Match = &summary
	}
	c.JSON(http.StatusCreated, resp)
}

// Unmatch ends one of the caller's active matches. Its conversation stops
// accepting messages and drops out of the conversation list.
// POST /matching/matches/:id/unmatch/
func (h *MatchHandler) Unmatch(c *gin.Context) {
	_, me, _ := middleware.CurrentUser(c)
	matchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid match ID format"})
		return
	}

	if _, err := h.matchStore.Unmatch(c.Request.Context(), matchID, me); err != nil {
		if errors.Is(err, store.ErrMatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Match not found."})
			return
		}
		log.Printf("Unmatch: Failed for match %s by %s: %v", matchID, me, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unmatch"})
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Unmatched successfully."})
}

func summarize(m *models.Match, other *models.ProfileSummary) models.MatchSummary {
	return models.MatchSummary{
		ID:           m.ID,
		OtherProfile: other,
		Status:       m.Status,
		MatchedAt:    m.MatchedAt,
		ChatUnlocked: m.ChatUnlocked,
	}
}

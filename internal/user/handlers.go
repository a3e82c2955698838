package user

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"soulconnect-chat/internal/middleware"
	"soulconnect-chat/internal/models"
	"soulconnect-chat/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Presence reports whether a profile currently holds a realtime connection.
type Presence interface {
	IsOnline(profileID uuid.UUID) bool
}

// Summaries loads profile listings and stamps their online flag.
func Summaries(ctx context.Context, us store.UserStore, presence Presence, ids ...uuid.UUID) (map[uuid.UUID]*models.ProfileSummary, error) {
	summaries, err := us.GetProfileSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	if presence != nil {
		for id, s := range summaries {
			s.User.IsOnline = presence.IsOnline(id)
		}
	}
	return summaries, nil
}

// UserHandler exposes profile lookup endpoints.
type UserHandler struct {
	userStore store.UserStore
	presence  Presence
}

func NewUserHandler(userStore store.UserStore, presence Presence) *UserHandler {
	return &UserHandler{userStore: userStore, presence: presence}
}

// GetProfile returns the listing view of one profile.
// GET /profiles/:id/
func (h *UserHandler) GetProfile(c *gin.Context) {
	profileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid profile ID format"})
		return
	}

	summaries, err := Summaries(c.Request.Context(), h.userStore, h.presence, profileID)
	if err != nil {
		log.Printf("GetProfile: Failed to load profile %s: %v", profileID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve profile"})
		return
	}
	summary, ok := summaries[profileID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// SearchProfiles finds profiles by name.
// GET /profiles/?search=<name>&limit=<n>
func (h *UserHandler) SearchProfiles(c *gin.Context) {
	query := strings.TrimSpace(c.Query("search"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Search query parameter is required"})
		return
	}
	_, me, _ := middleware.CurrentUser(c)

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	profiles, err := h.userStore.SearchProfiles(c.Request.Context(), query, me, limit)
	if err != nil {
		log.Printf("SearchProfiles: Error searching for '%s': %v", query, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error during profile search"})
		return
	}
	if h.presence != nil {
		for _, p := range profiles {
			p.User.IsOnline = h.presence.IsOnline(p.ID)
		}
	}
	c.JSON(http.StatusOK, profiles)
}

type addPhotoRequest struct {
	ImageURL     string `json:"image_url" binding:"required,url"`
	ThumbnailURL string `json:"thumbnail_url" binding:"omitempty,url"`
	IsPrimary    bool   `json:"is_primary"`
}

// AddPhoto attaches a photo URL to the caller's profile.
// POST /profiles/me/photos/
func (h *UserHandler) AddPhoto(c *gin.Context) {
	var req addPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}
	_, me, _ := middleware.CurrentUser(c)

	photo := &models.Photo{
		ID:           uuid.New(),
		ImageURL:     req.ImageURL,
		ThumbnailURL: req.ThumbnailURL,
		IsPrimary:    req.IsPrimary,
		IsApproved:   true,
		UploadedAt:   time.Now().UTC(),
	}
	if err := h.userStore.AddPhoto(c.Request.Context(), me, photo); err != nil {
		log.Printf("AddPhoto: Failed for profile %s: %v", me, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save photo"})
		return
	}
	c.JSON(http.StatusCreated, photo)
}

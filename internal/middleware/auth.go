package middleware

import (
	"net/http"
	"strings"

	"soulconnect-chat/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	authorizationHeaderKey  = "Authorization"
	authorizationTypeBearer = "bearer"

	// UserIDKey and ProfileIDKey hold uuid.UUID values in the gin context.
	UserIDKey    = "userID"
	ProfileIDKey = "profileID"
)

// AuthMiddleware returns a Gin middleware that validates bearer access tokens.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(authorizationHeaderKey)
		if len(authHeader) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is not provided"})
			return
		}

		fields := strings.Fields(authHeader)
		if len(fields) < 2 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		if strings.ToLower(fields[0]) != authorizationTypeBearer {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unsupported authorization type, 'Bearer' required"})
			return
		}

		claims, err := utils.ValidateJWT(fields[1], utils.AccessToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "details": err.Error()})
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token subject"})
			return
		}
		profileID, err := uuid.Parse(claims.ProfileID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token subject"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(ProfileIDKey, profileID)
		c.Next()
	}
}

// CurrentUser returns the authenticated user and profile ids set by AuthMiddleware.
func CurrentUser(c *gin.Context) (userID, profileID uuid.UUID, ok bool) {
	u, uok := c.Get(UserIDKey)
	p, pok := c.Get(ProfileIDKey)
	if !uok || !pok {
		return uuid.Nil, uuid.Nil, false
	}
	userID, uok = u.(uuid.UUID)
	profileID, pok = p.(uuid.UUID)
	return userID, profileID, uok && pok
}

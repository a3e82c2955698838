package server

import (
	"net/http"

	"soulconnect-chat/internal/auth"
	"soulconnect-chat/internal/chat"
	"soulconnect-chat/internal/matching"
	"soulconnect-chat/internal/middleware"
	"soulconnect-chat/internal/store"
	"soulconnect-chat/internal/user"
	"soulconnect-chat/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Users         store.UserStore
	Matches       store.MatchStore
	Chats         store.ChatStore
	Messages      store.MessageStore
	ChatRequests  store.ChatRequestStore
	Hub           *websocket.Hub
	CORSOrigins   []string
	RequireUnlock bool
}

// NewRouter wires every route under /api/v1 plus /health and /ws.
func NewRouter(d Deps) *gin.Engine {
	authHandler := auth.NewAuthHandler(d.Users)
	userHandler := user.NewUserHandler(d.Users, d.Hub)
	matchHandler := matching.NewMatchHandler(d.Matches, d.Users, d.Hub)
	chatHandler := chat.NewRestHandler(d.Chats, d.Messages, d.Matches, d.Users, d.Hub, d.RequireUnlock)
	requestHandler := chat.NewRequestHandler(d.ChatRequests, d.Matches, d.Chats, d.Users, d.Hub)
	wsHandler := websocket.NewWSHandler(d.Hub)

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = d.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Upgrade", "Connection"}
	corsConfig.AllowCredentials = true
	if len(corsConfig.AllowOrigins) > 0 {
		r.Use(cors.New(corsConfig))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
	r.GET("/ws", wsHandler.HandleWebSocketConnection)

	apiV1 := r.Group("/api/v1")
	{
		publicAuth := apiV1.Group("/auth")
		{
			publicAuth.POST("/register/", authHandler.Register)
			publicAuth.POST("/login/", authHandler.Login)
			publicAuth.POST("/token/refresh/", authHandler.Refresh)
		}

		protected := apiV1.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.GET("/auth/me/", authHandler.GetMe)
			protected.POST("/auth/logout/", authHandler.Logout)

			protected.GET("/profiles/", userHandler.SearchProfiles)
			protected.GET("/profiles/:id/", userHandler.GetProfile)
			protected.POST("/profiles/me/photos/", userHandler.AddPhoto)

			protected.GET("/matching/matches/", matchHandler.ListMatches)
			protected.POST("/matching/like/", matchHandler.SendLike)
			protected.POST("/matching/matches/:id/unmatch/", matchHandler.Unmatch)

			protected.GET("/chat/conversations/", chatHandler.ListConversations)
			protected.GET("/chat/conversations/:id/", chatHandler.GetConversation)
			protected.POST("/chat/conversations/match/:matchId/", chatHandler.GetOrCreateForMatch)
			protected.GET("/chat/conversations/:id/messages/", chatHandler.ListMessages)
			protected.POST("/chat/conversations/:id/send/", chatHandler.SendMessage)
			protected.POST("/chat/conversations/:id/read/", chatHandler.MarkAsRead)
			protected.GET("/chat/unread/", chatHandler.UnreadCount)

			protected.GET("/chat/requests/", requestHandler.ListRequests)
			protected.POST("/chat/requests/send/", requestHandler.SendRequest)
			protected.POST("/chat/requests/:id/respond/", requestHandler.RespondRequest)
		}
	}
	return r
}

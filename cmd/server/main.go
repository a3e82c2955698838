package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"soulconnect-chat/internal/config"
	"soulconnect-chat/internal/server"
	"soulconnect-chat/internal/store"
	"soulconnect-chat/internal/store/memstore"
	"soulconnect-chat/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const redisEventsChannel = "soulconnect:chat:events"

func main() {
	config.LoadConfig(".env")
	if config.Cfg == nil {
		log.Fatal("Error: Configuration not loaded.")
	}

	log.Println("SoulConnect Chat Backend Starting...")
	log.Printf("Server will run on port: %s", config.Cfg.ServerPort)
	log.Printf("JWT Secret (first 5 chars for check): %s...", previewSecret(config.Cfg.JWTSecret))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := server.Deps{
		CORSOrigins:   config.Cfg.CORSOrigins,
		RequireUnlock: config.Cfg.ChatRequireUnlock,
	}

	if config.Cfg.Storage == "memory" {
		mem := memstore.New()
		deps.Users, deps.Matches, deps.Chats, deps.Messages, deps.ChatRequests = mem, mem, mem, mem, mem
		log.Println("Using in-memory storage; data is lost on exit.")
	} else {
		if config.Cfg.AutoMigrate {
			if err := store.MigrateUp(config.Cfg.DatabaseURL); err != nil {
				log.Fatalf("Unable to migrate database: %v\n", err)
			}
		}

		dbpool, err := pgxpool.New(ctx, config.Cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Unable to create connection pool: %v\n", err)
		}
		defer dbpool.Close()

		if err := dbpool.Ping(ctx); err != nil {
			log.Fatalf("Unable to connect to database: %v\n", err)
		}
		log.Printf("Successfully connected to the database at %s", config.DBHost(config.Cfg.DatabaseURL))

		deps.Users = store.NewPostgresUserStore(dbpool)
		deps.Matches = store.NewPostgresMatchStore(dbpool)
		deps.Chats = store.NewPostgresChatStore(dbpool)
		deps.Messages = store.NewPostgresMessageStore(dbpool)
		deps.ChatRequests = store.NewPostgresChatRequestStore(dbpool)
	}

	var broker websocket.Broker = websocket.NewLocalBroker()
	if config.Cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.Cfg.RedisAddr,
			Password: config.Cfg.RedisPassword,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Unable to connect to redis at %s: %v\n", config.Cfg.RedisAddr, err)
		}
		broker = websocket.NewRedisBroker(rdb, redisEventsChannel)
		log.Printf("Realtime events fan out through redis channel %s", redisEventsChannel)
	}

	deps.Hub = websocket.NewHub(deps.Chats, broker)
	go deps.Hub.Run(ctx)
	log.Println("WebSocket Hub initialized and running.")

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    ":" + config.Cfg.ServerPort,
		Handler: server.NewRouter(deps),
	}

	go func() {
		log.Printf("Listening and serving HTTP on :%s\n", config.Cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exiting")
}

func previewSecret(secret string) string {
	if len(secret) >= 5 {
		return secret[:5]
	}
	return secret
}

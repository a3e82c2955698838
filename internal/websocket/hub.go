package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"soulconnect-chat/internal/models"
	"soulconnect-chat/internal/store"

	"github.com/google/uuid"
)

// relayTimeout bounds how long a relayed client event waits on the broker.
const relayTimeout = 5 * time.Second

// Hub tracks connected clients per profile and delivers realtime events.
type Hub struct {
	clients    map[uuid.UUID]map[*Client]bool
	clientsMux sync.RWMutex

	processMessage chan HubMessage
	register       chan *Client
	unregister     chan *Client
	done           chan struct{}

	chatStore store.ChatStore
	broker    Broker
}

func NewHub(cs store.ChatStore, broker Broker) *Hub {
	return &Hub{
		clients:        make(map[uuid.UUID]map[*Client]bool),
		processMessage: make(chan HubMessage),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		chatStore:      cs,
		broker:         broker,
	}
}

// Run processes hub events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	deliveries, err := h.broker.Subscribe(ctx)
	if err != nil {
		log.Printf("WebSocket Hub: broker subscribe failed, realtime delivery disabled: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.clientsMux.Lock()
			if _, ok := h.clients[client.profileID]; !ok {
				h.clients[client.profileID] = make(map[*Client]bool)
			}
			h.clients[client.profileID][client] = true
			h.clientsMux.Unlock()

		case client := <-h.unregister:
			h.clientsMux.Lock()
			if profileClients, ok := h.clients[client.profileID]; ok {
				if _, exists := profileClients[client]; exists {
					close(client.send)
					delete(profileClients, client)
					if len(profileClients) == 0 {
						delete(h.clients, client.profileID)
					}
				}
			}
			h.clientsMux.Unlock()

		case hubMsg := <-h.processMessage:
			h.handleIncomingMessage(ctx, hubMsg.client, hubMsg.rawJSON)

		case env, ok := <-deliveries:
			if !ok {
				deliveries = nil
				continue
			}
			h.deliverLocal(env)
		}
	}
}

// Register attaches a client. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Notify publishes an event for the given profiles through the broker.
func (h *Hub) Notify(ctx context.Context, recipients []uuid.UUID, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return h.broker.Publish(ctx, Envelope{Recipients: recipients, Type: eventType, Payload: raw})
}

// IsOnline reports whether the profile has a connection on this instance.
func (h *Hub) IsOnline(profileID uuid.UUID) bool {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients[profileID]) > 0
}

func (h *Hub) deliverLocal(env Envelope) {
	frame, err := json.Marshal(models.WebSocketMessage{Type: env.Type, Payload: env.Payload})
	if err != nil {
		log.Printf("WebSocket Hub: failed to encode %s frame: %v", env.Type, err)
		return
	}

	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	for _, profileID := range env.Recipients {
		for client := range h.clients[profileID] {
			client.enqueue(frame)
		}
	}
}

func (h *Hub) closeAll() {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for profileID, profileClients := range h.clients {
		for client := range profileClients {
			close(client.send)
		}
		delete(h.clients, profileID)
	}
}

func (h *Hub) handleIncomingMessage(ctx context.Context, sender *Client, rawJSON []byte) {
	var wsMsg models.WebSocketMessage
	if err := json.Unmarshal(rawJSON, &wsMsg); err != nil {
		h.sendError(sender, "Invalid message format")
		return
	}

	switch wsMsg.Type {
	case models.EventTyping:
		var payload models.TypingEvent
		if err := json.Unmarshal(wsMsg.Payload, &payload); err != nil {
			h.sendError(sender, "Invalid typing_indicator payload")
			return
		}
		h.handleTypingIndicator(ctx, sender, payload)

	default:
		log.Printf("WebSocket Hub: Unknown message type '%s' from Profile %s", wsMsg.Type, sender.profileID)
		h.sendError(sender, "Unknown message type")
	}
}

func (h *Hub) handleTypingIndicator(ctx context.Context, sender *Client, payload models.TypingEvent) {
	conv, err := h.chatStore.GetConversationByID(ctx, payload.ConversationID)
	if err != nil {
		if !errors.Is(err, store.ErrChatNotFound) {
			log.Printf("WS Hub (Typing): Error loading conversation %s: %v", payload.ConversationID, err)
		}
		h.sendError(sender, "Conversation not found")
		return
	}
	if !conv.HasParticipant(sender.profileID) {
		h.sendError(sender, "Conversation not found")
		return
	}

	payload.ProfileID = sender.profileID
	recipient := conv.OtherParticipant(sender.profileID)

	// Run drains the broker, so it must never wait on Publish itself.
	go func() {
		pctx, cancel := context.WithTimeout(ctx, relayTimeout)
		defer cancel()
		if err := h.Notify(pctx, []uuid.UUID{recipient}, models.EventTyping, payload); err != nil {
			log.Printf("WS Hub (Typing): notify failed: %v", err)
		}
	}()
}

func (h *Hub) sendError(c *Client, message string) {
	raw, _ := json.Marshal(models.ErrorEvent{Message: message})
	frame, _ := json.Marshal(models.WebSocketMessage{Type: models.EventError, Payload: raw})
	c.enqueue(frame)
}

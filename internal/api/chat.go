package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"soulconnect-chat/internal/models"

	"github.com/google/uuid"
)

const (
	conversationPageSize = 100
	maxConversationPages = 20
)

// rawBody defers decoding of list endpoints to decodeList.
type rawBody = json.RawMessage

// ListConversations fetches every page of the caller's conversations.
func (c *Client) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	all := make([]models.ConversationSummary, 0)
	for page := 1; page <= maxConversationPages; page++ {
		var raw rawBody
		path := fmt.Sprintf("/chat/conversations/?page=%d&page_size=%d", page, conversationPageSize)
		if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
			return nil, err
		}
		items, hasNext, err := decodeList[models.ConversationSummary](raw)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if !hasNext {
			break
		}
	}
	return all, nil
}

// ResolveMatchConversation opens, creating on first use, the conversation of a match.
func (c *Client) ResolveMatchConversation(ctx context.Context, matchID uuid.UUID) (*models.ConversationDetail, error) {
	var detail models.ConversationDetail
	if err := c.do(ctx, http.MethodPost, "/chat/conversations/match/"+matchID.String()+"/", nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListMessages returns a conversation's messages in chronological order.
func (c *Client) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	var raw rawBody
	if err := c.do(ctx, http.MethodGet, "/chat/conversations/"+conversationID.String()+"/messages/", nil, &raw); err != nil {
		return nil, err
	}
	items, _, err := decodeList[models.Message](raw)
	return items, err
}

// SendMessage posts content and returns the stored message.
func (c *Client) SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (*models.Message, error) {
	var msg models.Message
	body := models.SendMessageRequest{Content: content}
	if err := c.do(ctx, http.MethodPost, "/chat/conversations/"+conversationID.String()+"/send/", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) MarkRead(ctx context.Context, conversationID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/chat/conversations/"+conversationID.String()+"/read/", nil, nil)
}

func (c *Client) UnreadTotal(ctx context.Context) (int, error) {
	var resp models.UnreadCountResponse
	if err := c.do(ctx, http.MethodGet, "/chat/unread/", nil, &resp); err != nil {
		return 0, err
	}
	return resp.UnreadCount, nil
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"soulconnect-chat/internal/models"

	"github.com/google/uuid"
)

// ListChatRequests returns the pending chat requests addressed to the caller.
func (c *Client) ListChatRequests(ctx context.Context) ([]models.ChatRequestSummary, error) {
	var raw rawBody
	if err := c.do(ctx, http.MethodGet, "/chat/requests/", nil, &raw); err != nil {
		return nil, err
	}
	items, _, err := decodeList[models.ChatRequestSummary](raw)
	return items, err
}

// SendChatRequest asks the other side of a match to unlock chat. When the
// match is already unlocked the server answers with a notice instead of a
// request, which is returned with a nil summary.
func (c *Client) SendChatRequest(ctx context.Context, matchID uuid.UUID, message string) (*models.ChatRequestSummary, string, error) {
	var raw rawBody
	body := models.SendChatRequestRequest{MatchID: matchID, Message: message}
	if err := c.do(ctx, http.MethodPost, "/chat/requests/send/", body, &raw); err != nil {
		return nil, "", err
	}
	var head struct {
		ID      *uuid.UUID `json:"id"`
		Message string     `json:"message"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, "", fmt.Errorf("decode chat request: %w", err)
	}
	if head.ID == nil {
		return nil, head.Message, nil
	}
	var summary models.ChatRequestSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, "", fmt.Errorf("decode chat request: %w", err)
	}
	return &summary, "", nil
}

// RespondChatRequest accepts or declines a pending request. Accepting returns
// the unlocked conversation.
func (c *Client) RespondChatRequest(ctx context.Context, requestID uuid.UUID, accept bool) (*models.RespondChatRequestResponse, error) {
	action := "decline"
	if accept {
		action = "accept"
	}
	var resp models.RespondChatRequestResponse
	path := "/chat/requests/" + requestID.String() + "/respond/"
	if err := c.do(ctx, http.MethodPost, path, models.RespondChatRequestRequest{Action: action}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

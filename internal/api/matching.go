package api

import (
	"context"
	"net/http"

	"soulconnect-chat/internal/models"

	"github.com/google/uuid"
)

func (c *Client) ListMatches(ctx context.Context) ([]models.MatchSummary, error) {
	var raw rawBody
	if err := c.do(ctx, http.MethodGet, "/matching/matches/", nil, &raw); err != nil {
		return nil, err
	}
	items, _, err := decodeList[models.MatchSummary](raw)
	return items, err
}

// Like likes a profile. The response says whether it completed a match.
func (c *Client) Like(ctx context.Context, profileID uuid.UUID, message string) (*models.LikeResponse, error) {
	var resp models.LikeResponse
	if err := c.do(ctx, http.MethodPost, "/matching/like/", models.LikeRequest{ProfileID: profileID, Message: message}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Unmatch ends a match. Its conversation stops accepting messages.
func (c *Client) Unmatch(ctx context.Context, matchID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/matching/matches/"+matchID.String()+"/unmatch/", nil, nil)
}

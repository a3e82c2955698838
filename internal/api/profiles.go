package api

import (
	"context"
	"net/http"
	"net/url"

	"soulconnect-chat/internal/models"

	"github.com/google/uuid"
)

func (c *Client) GetProfile(ctx context.Context, profileID uuid.UUID) (*models.ProfileSummary, error) {
	var p models.ProfileSummary
	if err := c.do(ctx, http.MethodGet, "/profiles/"+profileID.String()+"/", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) SearchProfiles(ctx context.Context, query string) ([]models.ProfileSummary, error) {
	var raw rawBody
	if err := c.do(ctx, http.MethodGet, "/profiles/?search="+url.QueryEscape(query), nil, &raw); err != nil {
		return nil, err
	}
	items, _, err := decodeList[models.ProfileSummary](raw)
	return items, err
}

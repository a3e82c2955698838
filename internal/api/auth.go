package api

import (
	"context"
	"log"
	"net/http"

	"soulconnect-chat/internal/models"
)

// Login authenticates and stores the token pair and user in the session.
func (c *Client) Login(ctx context.Context, email, password string) (*models.PublicUser, error) {
	var resp models.AuthResponse
	if err := c.doPublic(ctx, http.MethodPost, "/auth/login/", models.LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return c.storeAuth(resp)
}

// Register creates an account and logs it in.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.PublicUser, error) {
	var resp models.AuthResponse
	if err := c.doPublic(ctx, http.MethodPost, "/auth/register/", req, &resp); err != nil {
		return nil, err
	}
	return c.storeAuth(resp)
}

// Logout tells the backend and then clears the session whatever it answered.
func (c *Client) Logout(ctx context.Context) error {
	if c.session.LoggedIn() {
		if err := c.do(ctx, http.MethodPost, "/auth/logout/", map[string]string{"refresh": c.session.RefreshToken()}, nil); err != nil {
			log.Printf("api: logout request failed: %v", err)
		}
	}
	return c.session.Teardown()
}

func (c *Client) Me(ctx context.Context) (*models.PublicUser, error) {
	var u models.PublicUser
	if err := c.do(ctx, http.MethodGet, "/auth/me/", nil, &u); err != nil {
		return nil, err
	}
	c.session.SetUser(&u)
	return &u, nil
}

func (c *Client) storeAuth(resp models.AuthResponse) (*models.PublicUser, error) {
	c.session.SetTokens(resp.Tokens.Access, resp.Tokens.Refresh)
	c.session.SetUser(resp.User)
	if err := c.session.Save(); err != nil {
		return resp.User, err
	}
	return resp.User, nil
}

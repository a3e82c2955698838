// Package api is the REST client for the SoulConnect backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"soulconnect-chat/internal/models"
	"soulconnect-chat/internal/session"
)

const defaultTimeout = 15 * time.Second

// Client talks to /api/v1. It attaches the session's access token, refreshes
// it once on a 401 and expires the session when that does not help.
type Client struct {
	baseURL string
	wsURL   string
	http    *http.Client
	session *session.Session

	noticeMu sync.RWMutex
	notice   func(*Error)

	refreshMu sync.Mutex
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithWebsocketURL overrides the realtime endpoint derived from the base URL.
func WithWebsocketURL(wsURL string) Option {
	return func(c *Client) { c.wsURL = wsURL }
}

// WithNoticeHook sets the hook called for 403, 404, 429 and 5xx responses.
func WithNoticeHook(fn func(*Error)) Option {
	return func(c *Client) { c.notice = fn }
}

// New creates a client for baseURL, e.g. http://localhost:8080/api/v1.
func New(baseURL string, sess *session.Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		session: sess,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.wsURL == "" {
		c.wsURL = deriveWebsocketURL(c.baseURL)
	}
	return c
}

// SetNoticeHook replaces the notice hook after construction.
func (c *Client) SetNoticeHook(fn func(*Error)) {
	c.noticeMu.Lock()
	c.notice = fn
	c.noticeMu.Unlock()
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *session.Session { return c.session }

func (c *Client) emitNotice(e *Error) {
	switch e.Kind {
	case KindForbidden, KindNotFound, KindRateLimited, KindServer:
	default:
		return
	}
	c.noticeMu.RLock()
	fn := c.notice
	c.noticeMu.RUnlock()
	if fn != nil {
		fn(e)
	}
}

// do sends an authenticated request and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	token := c.session.AccessToken()
	if token == "" && c.session.RefreshToken() == "" {
		return ErrNotLoggedIn
	}

	status, raw, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if rerr := c.refresh(ctx, token); rerr != nil {
			log.Printf("api: refresh after 401 on %s %s failed: %v", method, path, rerr)
			c.session.Expire()
			return ErrSessionExpired
		}
		status, raw, err = c.send(ctx, method, path, payload, c.session.AccessToken())
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			c.session.Expire()
			return ErrSessionExpired
		}
	}
	return c.decode(status, raw, out)
}

// doPublic sends an unauthenticated request, used by login, register and refresh.
func (c *Client) doPublic(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	status, raw, err := c.send(ctx, method, path, payload, "")
	if err != nil {
		return err
	}
	return c.decode(status, raw, out)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (int, []byte, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, nil, &Error{Kind: KindTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &Error{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &Error{Kind: KindTransport, Err: err}
	}
	return resp.StatusCode, raw, nil
}

func (c *Client) decode(status int, raw []byte, out any) error {
	if status < 200 || status >= 300 {
		apiErr := newStatusError(status, raw)
		c.emitNotice(apiErr)
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// refresh swaps the refresh token for a new access token. Concurrent callers
// that failed with the same stale token share one refresh.
func (c *Client) refresh(ctx context.Context, stale string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if current := c.session.AccessToken(); current != "" && current != stale {
		return nil
	}
	refresh := c.session.RefreshToken()
	if refresh == "" {
		return ErrNotLoggedIn
	}

	var resp models.AccessResponse
	if err := c.doPublic(ctx, http.MethodPost, "/auth/token/refresh/", models.RefreshRequest{Refresh: refresh}, &resp); err != nil {
		return err
	}
	if resp.Access == "" {
		return fmt.Errorf("refresh returned no access token")
	}
	c.session.SetAccess(resp.Access)
	if err := c.session.Save(); err != nil {
		log.Printf("api: failed to persist refreshed token: %v", err)
	}
	return nil
}

// deriveWebsocketURL maps http(s)://host/api/v1 to ws(s)://host/ws.
func deriveWebsocketURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String()
}

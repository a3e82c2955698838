package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"soulconnect-chat/internal/config"
	"soulconnect-chat/internal/models"
	"soulconnect-chat/internal/store/memstore"
	"soulconnect-chat/internal/utils"
	"soulconnect-chat/internal/websocket"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return newTestRouterWith(t, false)
}

func newTestRouterWith(t *testing.T, requireUnlock bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.BcryptCost = 4

	prev := config.Cfg
	config.Cfg = &config.AppConfig{
		JWTSecret:         "router-test",
		AccessTokenMaxAge: time.Minute,
		RefreshMaxAge:     time.Hour,
	}
	t.Cleanup(func() { config.Cfg = prev })

	mem := memstore.New()
	ctx, cancel := context.WithCancel(context.Background())
	hub := websocket.NewHub(mem, websocket.NewLocalBroker())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	return NewRouter(Deps{Users: mem, Matches: mem, Chats: mem, Messages: mem, ChatRequests: mem, Hub: hub, RequireUnlock: requireUnlock})
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func register(t *testing.T, r http.Handler, email, first, last string) models.AuthResponse {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register/", "", models.RegisterRequest{
		Email: email, Password: "secret123", FirstName: first, LastName: last,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d: %s", email, w.Code, w.Body.String())
	}
	return decode[models.AuthResponse](t, w)
}

func TestAuthFlow(t *testing.T) {
	r := newTestRouter(t)

	alice := register(t, r, "Alice@Example.com", "Alice", "Smith")
	if alice.Tokens.Access == "" || alice.Tokens.Refresh == "" {
		t.Fatalf("expected both tokens, got %+v", alice.Tokens)
	}
	if alice.User.Email != "alice@example.com" {
		t.Errorf("expected lowercased email, got %q", alice.User.Email)
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register/", "", models.RegisterRequest{
		Email: "alice@example.com", Password: "secret123", FirstName: "Alice",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate register: expected 409, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/register/", "", models.RegisterRequest{
		Email: "numeric@example.com", Password: "12345678", FirstName: "N",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("numeric password: expected 400, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/login/", "", models.LoginRequest{Email: "alice@example.com", Password: "wrong1234"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login: expected 401, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/login/", "", models.LoginRequest{Email: "alice@example.com", Password: "secret123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/auth/me/", alice.Tokens.Access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", w.Code)
	}
	me := decode[models.PublicUser](t, w)
	if me.ProfileID != alice.User.ProfileID || me.FullName != "Alice Smith" {
		t.Errorf("unexpected me: %+v", me)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/auth/me/", alice.Tokens.Refresh, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("refresh token as bearer: expected 401, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/token/refresh/", "", models.RefreshRequest{Refresh: alice.Tokens.Refresh})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", w.Code)
	}
	if decode[models.AccessResponse](t, w).Access == "" {
		t.Errorf("expected a new access token")
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/token/refresh/", "", models.RefreshRequest{Refresh: alice.Tokens.Access})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("access token as refresh: expected 401, got %d", w.Code)
	}
}

func TestChatFlow(t *testing.T) {
	r := newTestRouter(t)
	alice := register(t, r, "alice@example.com", "Alice", "Smith")
	bob := register(t, r, "bob@example.com", "Bob", "Builder")
	carol := register(t, r, "carol@example.com", "Carol", "")

	w := doJSON(t, r, http.MethodPost, "/api/v1/matching/like/", alice.Tokens.Access, models.LikeRequest{ProfileID: bob.User.ProfileID})
	if w.Code != http.StatusCreated || decode[models.LikeResponse](t, w).IsMatch {
		t.Fatalf("first like: expected 201 without match, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/api/v1/matching/like/", alice.Tokens.Access, models.LikeRequest{ProfileID: bob.User.ProfileID})
	if w.Code != http.StatusBadRequest {
		t.Errorf("repeated like: expected 400, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, "/api/v1/matching/like/", bob.Tokens.Access, models.LikeRequest{ProfileID: alice.User.ProfileID})
	like := decode[models.LikeResponse](t, w)
	if w.Code != http.StatusCreated || !like.IsMatch || like.Match == nil {
		t.Fatalf("mutual like: expected match, got %d: %s", w.Code, w.Body.String())
	}
	matchPath := "/api/v1/chat/conversations/match/" + like.Match.ID.String() + "/"

	w = doJSON(t, r, http.MethodGet, "/api/v1/matching/matches/", alice.Tokens.Access, nil)
	matches := decode[models.Page[models.MatchSummary]](t, w)
	if matches.Count != 1 || matches.Results[0].OtherProfile.FullName != "Bob Builder" {
		t.Errorf("unexpected matches: %+v", matches)
	}

	w = doJSON(t, r, http.MethodPost, matchPath, alice.Tokens.Access, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("open conversation: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	conv := decode[models.ConversationDetail](t, w)
	w = doJSON(t, r, http.MethodPost, matchPath, bob.Tokens.Access, nil)
	if w.Code != http.StatusOK || decode[models.ConversationDetail](t, w).ID != conv.ID {
		t.Fatalf("reopen conversation: expected 200 with the same id, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, matchPath, carol.Tokens.Access, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("outsider opening match: expected 404, got %d", w.Code)
	}

	convPath := "/api/v1/chat/conversations/" + conv.ID.String() + "/"
	w = doJSON(t, r, http.MethodPost, convPath+"send/", bob.Tokens.Access, models.SendMessageRequest{Content: "  hello  "})
	if w.Code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	sent := decode[models.Message](t, w)
	if sent.Content != "hello" || !sent.IsMine || sent.Type != models.MessageText || sent.SenderName != "Bob Builder" {
		t.Errorf("unexpected sent message: %+v", sent)
	}

	w = doJSON(t, r, http.MethodPost, convPath+"send/", bob.Tokens.Access, models.SendMessageRequest{Content: "   "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank send: expected 400, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, convPath+"send/", bob.Tokens.Access, models.SendMessageRequest{Content: "x", MessageType: models.MessageSystem})
	if w.Code != http.StatusBadRequest {
		t.Errorf("system send: expected 400, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/chat/unread/", alice.Tokens.Access, nil)
	if got := decode[models.UnreadCountResponse](t, w).UnreadCount; got != 1 {
		t.Errorf("expected 1 unread, got %d", got)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/chat/conversations/", alice.Tokens.Access, nil)
	list := decode[models.Page[models.ConversationSummary]](t, w)
	if list.Count != 1 || len(list.Results) != 1 {
		t.Fatalf("expected one conversation, got %+v", list)
	}
	row := list.Results[0]
	if row.UnreadCount != 1 || row.LastMessage != "hello" || row.OtherParticipant.FullName != "Bob Builder" {
		t.Errorf("unexpected conversation row: %+v", row)
	}
	if list.Next != nil || list.Previous != nil {
		t.Errorf("single page should have no links: %+v", list)
	}

	w = doJSON(t, r, http.MethodGet, convPath+"messages/", alice.Tokens.Access, nil)
	msgs := decode[[]models.Message](t, w)
	if len(msgs) != 1 || msgs[0].IsMine {
		t.Errorf("unexpected messages for reader: %+v", msgs)
	}

	w = doJSON(t, r, http.MethodPost, convPath+"read/", alice.Tokens.Access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("read: expected 200, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/v1/chat/unread/", alice.Tokens.Access, nil)
	if got := decode[models.UnreadCountResponse](t, w).UnreadCount; got != 0 {
		t.Errorf("expected 0 unread after read, got %d", got)
	}

	w = doJSON(t, r, http.MethodGet, convPath, carol.Tokens.Access, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("outsider detail: expected 404, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/v1/chat/conversations/", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous list: expected 401, got %d", w.Code)
	}
}

func matchPair(t *testing.T, r http.Handler, a, b models.AuthResponse) models.MatchSummary {
	t.Helper()
	doJSON(t, r, http.MethodPost, "/api/v1/matching/like/", a.Tokens.Access, models.LikeRequest{ProfileID: b.User.ProfileID})
	w := doJSON(t, r, http.MethodPost, "/api/v1/matching/like/", b.Tokens.Access, models.LikeRequest{ProfileID: a.User.ProfileID})
	like := decode[models.LikeResponse](t, w)
	if !like.IsMatch || like.Match == nil {
		t.Fatalf("expected a match, got %d: %s", w.Code, w.Body.String())
	}
	return *like.Match
}

func TestUnmatchDeactivatesConversation(t *testing.T) {
	r := newTestRouter(t)
	alice := register(t, r, "alice@example.com", "Alice", "Smith")
	bob := register(t, r, "bob@example.com", "Bob", "Builder")
	carol := register(t, r, "carol@example.com", "Carol", "")
	match := matchPair(t, r, alice, bob)

	matchPath := "/api/v1/chat/conversations/match/" + match.ID.String() + "/"
	conv := decode[models.ConversationDetail](t, doJSON(t, r, http.MethodPost, matchPath, alice.Tokens.Access, nil))
	sendPath := "/api/v1/chat/conversations/" + conv.ID.String() + "/send/"
	if w := doJSON(t, r, http.MethodPost, sendPath, alice.Tokens.Access, models.SendMessageRequest{Content: "hi"}); w.Code != http.StatusCreated {
		t.Fatalf("send before unmatch: expected 201, got %d", w.Code)
	}

	unmatchPath := "/api/v1/matching/matches/" + match.ID.String() + "/unmatch/"
	if w := doJSON(t, r, http.MethodPost, unmatchPath, carol.Tokens.Access, nil); w.Code != http.StatusNotFound {
		t.Errorf("outsider unmatch: expected 404, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/matching/matches/not-a-uuid/unmatch/", alice.Tokens.Access, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad match id: expected 400, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, unmatchPath, alice.Tokens.Access, nil); w.Code != http.StatusOK {
		t.Fatalf("unmatch: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodPost, unmatchPath, bob.Tokens.Access, nil); w.Code != http.StatusNotFound {
		t.Errorf("second unmatch: expected 404, got %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, sendPath, bob.Tokens.Access, models.SendMessageRequest{Content: "still there?"})
	if w.Code != http.StatusForbidden {
		t.Errorf("send after unmatch: expected 403, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, matchPath, bob.Tokens.Access, nil); w.Code != http.StatusNotFound {
		t.Errorf("open after unmatch: expected 404, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/chat/conversations/", bob.Tokens.Access, nil)
	if list := decode[models.Page[models.ConversationSummary]](t, w); list.Count != 0 || len(list.Results) != 0 {
		t.Errorf("expected the conversation to drop out of the list, got %+v", list)
	}
	w = doJSON(t, r, http.MethodGet, "/api/v1/chat/unread/", bob.Tokens.Access, nil)
	if got := decode[models.UnreadCountResponse](t, w).UnreadCount; got != 0 {
		t.Errorf("inactive conversation should not count as unread, got %d", got)
	}
	w = doJSON(t, r, http.MethodGet, "/api/v1/matching/matches/", alice.Tokens.Access, nil)
	if matches := decode[models.Page[models.MatchSummary]](t, w); matches.Count != 0 {
		t.Errorf("expected no active matches, got %+v", matches)
	}
}

func TestChatRequestUnlocksChat(t *testing.T) {
	r := newTestRouterWith(t, true)
	alice := register(t, r, "alice@example.com", "Alice", "Smith")
	bob := register(t, r, "bob@example.com", "Bob", "Builder")
	carol := register(t, r, "carol@example.com", "Carol", "")
	match := matchPair(t, r, alice, bob)
	matchPath := "/api/v1/chat/conversations/match/" + match.ID.String() + "/"

	if w := doJSON(t, r, http.MethodPost, matchPath, alice.Tokens.Access, nil); w.Code != http.StatusForbidden {
		t.Fatalf("locked match: expected 403, got %d", w.Code)
	}

	send := models.SendChatRequestRequest{MatchID: match.ID, Message: "can we talk?"}
	w := doJSON(t, r, http.MethodPost, "/api/v1/chat/requests/send/", alice.Tokens.Access, send)
	if w.Code != http.StatusCreated {
		t.Fatalf("send request: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	sent := decode[models.ChatRequestSummary](t, w)
	if sent.Status != models.ChatRequestPending || sent.Message != "can we talk?" {
		t.Errorf("unexpected request: %+v", sent)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/chat/requests/send/", alice.Tokens.Access, send); w.Code != http.StatusBadRequest {
		t.Errorf("duplicate request: expected 400, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/chat/requests/send/", carol.Tokens.Access, send); w.Code != http.StatusNotFound {
		t.Errorf("outsider request: expected 404, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/chat/requests/", bob.Tokens.Access, nil)
	pending := decode[models.Page[models.ChatRequestSummary]](t, w)
	if pending.Count != 1 || pending.Results[0].FromProfile == nil || pending.Results[0].FromProfile.ID != alice.User.ProfileID {
		t.Fatalf("unexpected pending requests: %+v", pending)
	}

	respondPath := "/api/v1/chat/requests/" + sent.ID.String() + "/respond/"
	if w := doJSON(t, r, http.MethodPost, respondPath, bob.Tokens.Access, models.RespondChatRequestRequest{Action: "maybe"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad action: expected 400, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, respondPath, alice.Tokens.Access, models.RespondChatRequestRequest{Action: "accept"}); w.Code != http.StatusNotFound {
		t.Errorf("sender accepting own request: expected 404, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, respondPath, bob.Tokens.Access, models.RespondChatRequestRequest{Action: "accept"})
	if w.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	accepted := decode[models.RespondChatRequestResponse](t, w)
	if accepted.Conversation == nil || accepted.Conversation.OtherParticipant == nil || accepted.Conversation.OtherParticipant.ID != alice.User.ProfileID {
		t.Fatalf("expected the unlocked conversation, got %+v", accepted)
	}

	w = doJSON(t, r, http.MethodPost, matchPath, alice.Tokens.Access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("open after accept: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	convPath := "/api/v1/chat/conversations/" + accepted.Conversation.ID.String() + "/"
	if w := doJSON(t, r, http.MethodPost, convPath+"send/", alice.Tokens.Access, models.SendMessageRequest{Content: "thanks!"}); w.Code != http.StatusCreated {
		t.Errorf("send after accept: expected 201, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, respondPath, bob.Tokens.Access, models.RespondChatRequestRequest{Action: "accept"}); w.Code != http.StatusNotFound {
		t.Errorf("second response: expected 404, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/chat/requests/send/", alice.Tokens.Access, send)
	if w.Code != http.StatusOK || decode[models.MessageResponse](t, w).Message != "Chat is already unlocked." {
		t.Errorf("request on unlocked match: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodGet, "/api/v1/matching/matches/", bob.Tokens.Access, nil)
	if matches := decode[models.Page[models.MatchSummary]](t, w); matches.Count != 1 || !matches.Results[0].ChatUnlocked {
		t.Errorf("expected the match to be unlocked, got %+v", matches)
	}
}

func TestDeclinedChatRequestKeepsChatLocked(t *testing.T) {
	r := newTestRouterWith(t, true)
	alice := register(t, r, "alice@example.com", "Alice", "Smith")
	carol := register(t, r, "carol@example.com", "Carol", "Jones")
	match := matchPair(t, r, alice, carol)

	w := doJSON(t, r, http.MethodPost, "/api/v1/chat/requests/send/", carol.Tokens.Access, models.SendChatRequestRequest{MatchID: match.ID})
	sent := decode[models.ChatRequestSummary](t, w)

	w = doJSON(t, r, http.MethodPost, "/api/v1/chat/requests/"+sent.ID.String()+"/respond/", alice.Tokens.Access, models.RespondChatRequestRequest{Action: "decline"})
	if w.Code != http.StatusOK {
		t.Fatalf("decline: expected 200, got %d", w.Code)
	}
	if resp := decode[models.RespondChatRequestResponse](t, w); resp.Conversation != nil {
		t.Errorf("decline should not return a conversation: %+v", resp)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/chat/requests/", alice.Tokens.Access, nil)
	if pending := decode[models.Page[models.ChatRequestSummary]](t, w); pending.Count != 0 {
		t.Errorf("declined request should leave the pending list, got %+v", pending)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/chat/conversations/match/"+match.ID.String()+"/", carol.Tokens.Access, nil); w.Code != http.StatusForbidden {
		t.Errorf("declined match: expected 403, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPost, "/api/v1/chat/requests/send/", carol.Tokens.Access, models.SendChatRequestRequest{MatchID: match.ID})
	if w.Code != http.StatusCreated {
		t.Errorf("new request after decline: expected 201, got %d", w.Code)
	}
}

func TestProfiles(t *testing.T) {
	r := newTestRouter(t)
	alice := register(t, r, "alice@example.com", "Alice", "Smith")
	bob := register(t, r, "bob@example.com", "Bob", "Builder")

	w := doJSON(t, r, http.MethodPost, "/api/v1/profiles/me/photos/", bob.Tokens.Access, map[string]any{
		"image_url": "https://cdn.example.com/bob.jpg", "is_primary": true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add photo: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/profiles/"+bob.User.ProfileID.String()+"/", alice.Tokens.Access, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get profile: expected 200, got %d", w.Code)
	}
	p := decode[models.ProfileSummary](t, w)
	if p.PrimaryPhoto == nil || p.PrimaryPhoto.ImageURL != "https://cdn.example.com/bob.jpg" {
		t.Errorf("expected primary photo, got %+v", p.PrimaryPhoto)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/profiles/?search=bo", alice.Tokens.Access, nil)
	found := decode[[]models.ProfileSummary](t, w)
	if len(found) != 1 || found[0].ID != bob.User.ProfileID {
		t.Errorf("unexpected search result: %+v", found)
	}
	w = doJSON(t, r, http.MethodGet, "/api/v1/profiles/?search=alice", alice.Tokens.Access, nil)
	if found := decode[[]models.ProfileSummary](t, w); len(found) != 0 {
		t.Errorf("search should exclude the caller, got %+v", found)
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

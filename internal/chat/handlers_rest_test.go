package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"soulconnect-chat/internal/middleware"
	"soulconnect-chat/internal/models"
	"soulconnect-chat/internal/store/memstore"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type sentEvent struct {
	recipients []uuid.UUID
	eventType  string
	payload    any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
	online map[uuid.UUID]bool
}

func (n *recordingNotifier) IsOnline(id uuid.UUID) bool { return n.online[id] }

func (n *recordingNotifier) Notify(_ context.Context, recipients []uuid.UUID, eventType string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{recipients: recipients, eventType: eventType, payload: payload})
	return nil
}

func (n *recordingNotifier) ofType(eventType string) []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentEvent
	for _, e := range n.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	mem      *memstore.Store
	notifier *recordingNotifier
	router   *gin.Engine
	alice    uuid.UUID
	bob      uuid.UUID
	match    *models.Match
}

func seedProfile(t *testing.T, mem *memstore.Store, first string) uuid.UUID {
	t.Helper()
	u := &models.User{ID: uuid.New(), Email: strings.ToLower(first) + "@example.com", FirstName: first}
	p := &models.Profile{ID: uuid.New()}
	if err := mem.CreateUser(context.Background(), u, p); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return p.ID
}

func newFixture(t *testing.T, requireUnlock, unlocked bool) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mem := memstore.New()
	f := &fixture{mem: mem, notifier: &recordingNotifier{online: map[uuid.UUID]bool{}}}
	f.alice = seedProfile(t, mem, "Alice")
	f.bob = seedProfile(t, mem, "Bob")

	p1, p2 := models.OrderedPair(f.alice, f.bob)
	f.match = &models.Match{ID: uuid.New(), Profile1ID: p1, Profile2ID: p2, Status: models.MatchActive, ChatUnlocked: unlocked, MatchedAt: time.Now()}
	mem.PutMatch(f.match)

	h := NewRestHandler(mem, mem, mem, mem, f.notifier, requireUnlock)
	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(func(c *gin.Context) {
		if id, err := uuid.Parse(c.GetHeader("X-Profile")); err == nil {
			c.Set(middleware.UserIDKey, uuid.New())
			c.Set(middleware.ProfileIDKey, id)
		}
		c.Next()
	})
	r.GET("/chat/conversations/", h.ListConversations)
	r.GET("/chat/conversations/:id/", h.GetConversation)
	r.POST("/chat/conversations/match/:matchId/", h.GetOrCreateForMatch)
	r.GET("/chat/conversations/:id/messages/", h.ListMessages)
	r.POST("/chat/conversations/:id/send/", h.SendMessage)
	r.POST("/chat/conversations/:id/read/", h.MarkAsRead)
	r.GET("/chat/unread/", h.UnreadCount)
	f.router = r
	return f
}

func (f *fixture) do(method, path string, as uuid.UUID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Profile", as.String())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) open(t *testing.T) uuid.UUID {
	t.Helper()
	w := f.do(http.MethodPost, "/chat/conversations/match/"+f.match.ID.String()+"/", f.alice, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var detail models.ConversationDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	return detail.ID
}

func TestLockedMatchIsForbidden(t *testing.T) {
	f := newFixture(t, true, false)
	w := f.do(http.MethodPost, "/chat/conversations/match/"+f.match.ID.String()+"/", f.alice, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a locked match, got %d", w.Code)
	}
}

func TestLockedSendIsForbidden(t *testing.T) {
	f := newFixture(t, false, false)
	convID := f.open(t)

	h := NewRestHandler(f.mem, f.mem, f.mem, f.mem, f.notifier, true)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, uuid.New())
		c.Set(middleware.ProfileIDKey, f.alice)
	})
	r.POST("/send/:id", h.SendMessage)
	req := httptest.NewRequest(http.MethodPost, "/send/"+convID.String(), strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when chat is locked, got %d", w.Code)
	}
}

func TestUnlockedMatchOpens(t *testing.T) {
	f := newFixture(t, true, true)
	f.open(t)
}

func TestSendNotifiesOtherParticipant(t *testing.T) {
	f := newFixture(t, false, false)
	convID := f.open(t)

	w := f.do(http.MethodPost, "/chat/conversations/"+convID.String()+"/send/", f.alice, `{"content":"hi bob"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	events := f.notifier.ofType(models.EventNewMessage)
	if len(events) != 1 {
		t.Fatalf("expected one new_message event, got %d", len(events))
	}
	if len(events[0].recipients) != 1 || events[0].recipients[0] != f.bob {
		t.Errorf("expected bob as recipient, got %v", events[0].recipients)
	}
	ev, ok := events[0].payload.(models.NewMessageEvent)
	if !ok || ev.ConversationID != convID || ev.Message.Content != "hi bob" || ev.Message.IsMine {
		t.Errorf("unexpected payload: %+v", events[0].payload)
	}
}

func TestImageMessageCarriesURL(t *testing.T) {
	f := newFixture(t, false, false)
	convID := f.open(t)

	w := f.do(http.MethodPost, "/chat/conversations/"+convID.String()+"/send/", f.alice,
		`{"content":"https://cdn.example.com/a.png","message_type":"image"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("send image: expected 201, got %d", w.Code)
	}
	var msg models.Message
	if err := json.Unmarshal(w.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Image == nil || *msg.Image != "https://cdn.example.com/a.png" {
		t.Errorf("expected image url, got %v", msg.Image)
	}

	w = f.do(http.MethodGet, "/chat/conversations/", f.bob, "")
	var page models.Page[models.ConversationSummary]
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Results) != 1 || page.Results[0].LastMessage != "[image]" {
		t.Errorf("expected image preview, got %+v", page.Results)
	}
}

func TestMarkReadNotifiesOnlyWhenSomethingChanged(t *testing.T) {
	f := newFixture(t, false, false)
	convID := f.open(t)
	readPath := "/chat/conversations/" + convID.String() + "/read/"

	if w := f.do(http.MethodPost, readPath, f.bob, ""); w.Code != http.StatusOK {
		t.Fatalf("read: expected 200, got %d", w.Code)
	}
	if got := len(f.notifier.ofType(models.EventMessagesRead)); got != 0 {
		t.Fatalf("expected no messages_read event on an empty thread, got %d", got)
	}

	f.do(http.MethodPost, "/chat/conversations/"+convID.String()+"/send/", f.alice, `{"content":"ping"}`)
	f.do(http.MethodPost, readPath, f.bob, "")

	events := f.notifier.ofType(models.EventMessagesRead)
	if len(events) != 1 || events[0].recipients[0] != f.alice {
		t.Fatalf("expected one messages_read event for alice, got %+v", events)
	}
	ev := events[0].payload.(models.MessagesReadEvent)
	if ev.ReaderID != f.bob {
		t.Errorf("expected bob as reader, got %s", ev.ReaderID)
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire struct {
		ReadAt string `json:"read_at"`
	}
	json.Unmarshal(raw, &wire)
	if !strings.HasSuffix(wire.ReadAt, "Z") {
		t.Errorf("read_at should be emitted in UTC, got %q", wire.ReadAt)
	}
	if at, err := time.Parse(time.RFC3339Nano, wire.ReadAt); err != nil || time.Since(at) > time.Minute {
		t.Errorf("read_at %q is not a recent RFC 3339 timestamp (%v)", wire.ReadAt, err)
	}
}

func TestDetailMarksRead(t *testing.T) {
	f := newFixture(t, false, false)
	convID := f.open(t)
	f.do(http.MethodPost, "/chat/conversations/"+convID.String()+"/send/", f.alice, `{"content":"one"}`)

	w := f.do(http.MethodGet, "/chat/conversations/"+convID.String()+"/", f.bob, "")
	if w.Code != http.StatusOK {
		t.Fatalf("detail: expected 200, got %d", w.Code)
	}
	var detail models.ConversationDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(detail.Messages) != 1 || detail.OtherParticipant.ID != f.alice {
		t.Errorf("unexpected detail: %+v", detail)
	}

	w = f.do(http.MethodGet, "/chat/unread/", f.bob, "")
	var unread models.UnreadCountResponse
	if err := json.Unmarshal(w.Body.Bytes(), &unread); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if unread.UnreadCount != 0 {
		t.Errorf("expected detail view to clear unread, got %d", unread.UnreadCount)
	}
}

func TestPagination(t *testing.T) {
	f := newFixture(t, false, false)
	for i := 0; i < 3; i++ {
		other := seedProfile(t, f.mem, "Peer"+string(rune('A'+i)))
		p1, p2 := models.OrderedPair(f.alice, other)
		m := &models.Match{ID: uuid.New(), Profile1ID: p1, Profile2ID: p2, Status: models.MatchActive, MatchedAt: time.Now()}
		f.mem.PutMatch(m)
		if _, _, err := f.mem.GetOrCreateForMatch(context.Background(), m); err != nil {
			t.Fatalf("GetOrCreateForMatch: %v", err)
		}
	}

	w := f.do(http.MethodGet, "/chat/conversations/?page=2&page_size=2", f.alice, "")
	var page models.Page[models.ConversationSummary]
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Count != 3 || len(page.Results) != 1 {
		t.Fatalf("expected 1 of 3 on page 2, got %d of %d", len(page.Results), page.Count)
	}
	if page.Next != nil {
		t.Errorf("expected no next link, got %s", *page.Next)
	}
	if page.Previous == nil || !strings.Contains(*page.Previous, "page=1") {
		t.Errorf("expected previous link to page 1, got %v", page.Previous)
	}
}

func TestOutsiderGets404(t *testing.T) {
	f := newFixture(t, false, false)
	convID := f.open(t)
	stranger := seedProfile(t, f.mem, "Mallory")

	for _, path := range []string{
		"/chat/conversations/" + convID.String() + "/",
		"/chat/conversations/" + convID.String() + "/messages/",
	} {
		if w := f.do(http.MethodGet, path, stranger, ""); w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
	if w := f.do(http.MethodGet, "/chat/conversations/not-a-uuid/", f.alice, ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", w.Code)
	}
}

package chatview

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"soulconnect-chat/internal/models"

	"github.com/google/uuid"
)

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func msgsAt(times ...string) []Message {
	out := make([]Message, 0, len(times))
	for i, ts := range times {
		out = append(out, Message{ID: uuid.New(), Content: string(rune('a' + i)), CreatedAt: at(ts)})
	}
	return out
}

func flatten(groups []DateGroup) []Message {
	var out []Message
	for _, g := range groups {
		out = append(out, g.Messages...)
	}
	return out
}

func TestGroupByDateTwoDays(t *testing.T) {
	groups := GroupByDateIn(msgsAt("2024-01-01T10:00", "2024-01-01T18:00", "2024-01-02T09:00"), time.UTC)
	if len(groups) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(groups))
	}
	if !groups[0].Date.Equal(at("2024-01-01T00:00")) || len(groups[0].Messages) != 2 {
		t.Errorf("unexpected first bucket: %v with %d messages", groups[0].Date, len(groups[0].Messages))
	}
	if !groups[1].Date.Equal(at("2024-01-02T00:00")) || len(groups[1].Messages) != 1 {
		t.Errorf("unexpected second bucket: %v with %d messages", groups[1].Date, len(groups[1].Messages))
	}
}

func TestGroupByDateUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	groups := GroupByDateIn(msgsAt("2024-01-01T10:00", "2024-01-01T18:00"), tokyo)
	if len(groups) != 2 {
		t.Fatalf("18:00 UTC is the next day in JST, expected 2 buckets, got %d", len(groups))
	}
}

func TestGroupByDateProperties(t *testing.T) {
	cases := [][]Message{
		nil,
		msgsAt("2024-01-01T10:00"),
		msgsAt("2024-01-01T10:00", "2024-01-02T10:00", "2024-01-01T23:00", "2024-01-03T00:00", "2024-01-03T12:00"),
		msgsAt("2024-02-28T23:59", "2024-02-29T00:00", "2024-03-01T00:00"),
	}
	for i, msgs := range cases {
		groups := GroupByDateIn(msgs, time.UTC)

		flat := flatten(groups)
		if len(flat) != len(msgs) {
			t.Fatalf("case %d: completeness: %d in, %d out", i, len(msgs), len(flat))
		}
		for j := range msgs {
			if flat[j].ID != msgs[j].ID {
				t.Errorf("case %d: message %d reordered", i, j)
			}
		}

		if again := GroupByDateIn(flat, time.UTC); !reflect.DeepEqual(groups, again) {
			t.Errorf("case %d: regrouping changed the buckets", i)
		}
	}

	out := GroupByDateIn(msgsAt("2024-01-01T10:00", "2024-01-02T10:00", "2024-01-01T11:00"), time.UTC)
	if len(out) != 3 {
		t.Errorf("a date change back starts a new bucket, expected 3, got %d", len(out))
	}
}

func TestStartClearsOnlyOpenedConversation(t *testing.T) {
	me := uuid.New()
	api := newFakeAPI(me)
	first, second := summary("Ann", 3), summary("Bea", 3)
	api.conversations = []models.ConversationSummary{first, second}
	api.messages[first.ID] = []models.Message{received(first.ID, first.OtherParticipant.ID, "hi", time.Now())}

	w := NewWindow(api, me)
	if err := w.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if w.Conversations.ActiveID() != first.ID {
		t.Fatalf("expected first conversation auto-selected")
	}
	a, _ := w.Conversations.Conversation(first.ID)
	b, _ := w.Conversations.Conversation(second.ID)
	if a.UnreadCount != 0 || b.UnreadCount != 3 {
		t.Errorf("expected unread 0/3, got %d/%d", a.UnreadCount, b.UnreadCount)
	}
	thread := w.Thread.Snapshot()
	if thread.State != LoadLoaded || len(thread.Messages) != 1 || !thread.Messages[0].IsRead {
		t.Errorf("unexpected thread: %+v", thread)
	}
}

func TestNoConversationsSelectsNothing(t *testing.T) {
	api := newFakeAPI(uuid.New())
	w := NewWindow(api, api.me)
	if err := w.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if w.Conversations.ActiveID() != uuid.Nil {
		t.Errorf("expected nothing selected")
	}
	if w.Thread.Snapshot().State != LoadIdle {
		t.Errorf("expected idle thread")
	}
}

func TestFailedReadKeepsBadge(t *testing.T) {
	me := uuid.New()
	api := newFakeAPI(me)
	conv := summary("Ann", 3)
	api.conversations = []models.ConversationSummary{conv}
	api.messages[conv.ID] = []models.Message{received(conv.ID, uuid.New(), "hi", time.Now())}
	api.markReadErr = errBackend

	w := NewWindow(api, me)
	if err := w.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c, _ := w.Conversations.Conversation(conv.ID)
	if c.UnreadCount != 3 {
		t.Errorf("badge must stay after a failed read call, got %d", c.UnreadCount)
	}
	thread := w.Thread.Snapshot()
	if thread.State != LoadLoaded || len(thread.Messages) != 1 || thread.Messages[0].IsRead {
		t.Errorf("fetched messages must stay loaded and unread: %+v", thread)
	}
}

func TestFailedLoadIsDistinctFromEmpty(t *testing.T) {
	me := uuid.New()
	api := newFakeAPI(me)
	convs := NewConversationStore(api)
	thread := NewMessageListController(api, convs, me)

	empty := uuid.New()
	if err := thread.LoadMessages(context.Background(), empty); err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if s := thread.Snapshot(); s.State != LoadLoaded || len(s.Messages) != 0 {
		t.Fatalf("expected loaded empty thread, got %+v", s)
	}

	api.messagesErr = errBackend
	if err := thread.LoadMessages(context.Background(), uuid.New()); !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	s := thread.Snapshot()
	if s.State != LoadFailed || len(s.Messages) != 0 || s.Err == nil {
		t.Errorf("expected failed empty thread, got %+v", s)
	}
	if api.markReadCount(s.ConversationID) != 0 {
		t.Errorf("a failed fetch must not issue a read call")
	}
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	me := uuid.New()
	api := newFakeAPI(me)
	convA, convB := uuid.New(), uuid.New()
	api.messages[convA] = []models.Message{received(convA, uuid.New(), "from A", time.Now())}
	api.messages[convB] = []models.Message{received(convB, uuid.New(), "from B", time.Now())}
	gate := make(chan struct{})
	api.gates[convA] = gate
	api.started = make(chan uuid.UUID, 2)

	convs := NewConversationStore(api)
	thread := NewMessageListController(api, convs, me)

	done := make(chan error, 1)
	go func() { done <- thread.LoadMessages(context.Background(), convA) }()
	<-api.started

	if err := thread.LoadMessages(context.Background(), convB); err != nil {
		t.Fatalf("LoadMessages(B): %v", err)
	}
	<-api.started
	close(gate)

	if err := <-done; !IsSuperseded(err) {
		t.Fatalf("expected A's load to be superseded, got %v", err)
	}
	s := thread.Snapshot()
	if s.ConversationID != convB || len(s.Messages) != 1 || s.Messages[0].Content != "from B" {
		t.Errorf("thread must still be B's, got %+v", s)
	}
	if api.markReadCount(convA) != 0 {
		t.Errorf("superseded fetch must not mark A read")
	}
}

func TestSendConfirmedDuringLoadIsKept(t *testing.T) {
	for _, storedBeforeFetch := range []bool{false, true} {
		me := uuid.New()
		api := newFakeAPI(me)
		conv := summary("Ann", 0)
		api.conversations = []models.ConversationSummary{conv}
		earlier := received(conv.ID, conv.OtherParticipant.ID, "earlier", time.Now().Add(-time.Minute))
		api.messages[conv.ID] = []models.Message{earlier}
		gate := make(chan struct{})
		api.gates[conv.ID] = gate
		api.started = make(chan uuid.UUID, 1)

		convs := NewConversationStore(api)
		if err := convs.LoadConversations(context.Background()); err != nil {
			t.Fatalf("LoadConversations: %v", err)
		}
		thread := NewMessageListController(api, convs, me)
		sender := NewSendPipeline(api, convs, thread)

		done := make(chan error, 1)
		go func() { done <- thread.LoadMessages(context.Background(), conv.ID) }()
		<-api.started

		sent, err := sender.Send(context.Background(), conv.ID, "while loading")
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if s := thread.Snapshot(); s.State != LoadLoading || len(s.Messages) != 0 {
			t.Fatalf("thread should still be loading, got %+v", s)
		}
		if storedBeforeFetch {
			api.mu.Lock()
			api.messages[conv.ID] = append(api.messages[conv.ID], models.Message{
				ID: sent.ID, ConversationID: conv.ID, SenderID: me, Type: models.MessageText, Content: sent.Content, CreatedAt: sent.CreatedAt,
			})
			api.mu.Unlock()
		}
		close(gate)
		if err := <-done; err != nil {
			t.Fatalf("LoadMessages: %v", err)
		}

		s := thread.Snapshot()
		if s.State != LoadLoaded || len(s.Messages) != 2 {
			t.Fatalf("storedBeforeFetch=%t: expected earlier + sent, got %+v", storedBeforeFetch, s.Messages)
		}
		if s.Messages[0].ID != earlier.ID || s.Messages[1].ID != sent.ID {
			t.Errorf("storedBeforeFetch=%t: messages out of order: %+v", storedBeforeFetch, s.Messages)
		}
	}
}

func TestSendConfirmedDuringFailedLoadIsDropped(t *testing.T) {
	me := uuid.New()
	api := newFakeAPI(me)
	conv := summary("Ann", 0)
	gate := make(chan struct{})
	api.gates[conv.ID] = gate
	api.started = make(chan uuid.UUID, 1)
	api.messagesErr = errBackend

	convs := NewConversationStore(api)
	thread := NewMessageListController(api, convs, me)
	sender := NewSendPipeline(api, convs, thread)

	done := make(chan error, 1)
	go func() { done <- thread.LoadMessages(context.Background(), conv.ID) }()
	<-api.started
	if _, err := sender.Send(context.Background(), conv.ID, "lost view"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	close(gate)
	if err := <-done; !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if s := thread.Snapshot(); s.State != LoadFailed || len(s.Messages) != 0 {
		t.Errorf("failed load should show the error alone, got %+v", s)
	}
}

func newSendWindow(t *testing.T) (*Window, *fakeAPI, uuid.UUID) {
	t.Helper()
	me := uuid.New()
	api := newFakeAPI(me)
	conv := summary("Ann", 0)
	api.conversations = []models.ConversationSummary{conv}
	w := NewWindow(api, me)
	if err := w.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return w, api, conv.ID
}

func TestSendAppendsConfirmedMessage(t *testing.T) {
	w, _, convID := newSendWindow(t)

	msg, err := w.Send(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.Content != "Hello" || msg.SenderID != w.Me() {
		t.Errorf("unexpected message: %+v", msg)
	}
	thread := w.Thread.Snapshot()
	if len(thread.Messages) != 1 || thread.Messages[0].SenderID != w.Me() {
		t.Errorf("expected one own message in the thread, got %+v", thread.Messages)
	}
	c, _ := w.Conversations.Conversation(convID)
	if c.LastMessage == nil || c.LastMessage.Content != "Hello" {
		t.Errorf("expected list preview Hello, got %+v", c.LastMessage)
	}
	if w.Sender.State(convID) != SendSucceeded || w.Sender.Draft(convID) != "" {
		t.Errorf("expected succeeded state with cleared draft")
	}
}

func TestSendTrimsContent(t *testing.T) {
	w, api, _ := newSendWindow(t)
	if _, err := w.Send(context.Background(), "  hi there \n"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if api.sendCalls[0] != "hi there" {
		t.Errorf("expected trimmed content, got %q", api.sendCalls[0])
	}
}

func TestFailedSendKeepsDraft(t *testing.T) {
	w, api, convID := newSendWindow(t)
	api.sendErr = errBackend

	if _, err := w.Send(context.Background(), "retry me"); !errors.Is(err, errBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if n := len(w.Thread.Snapshot().Messages); n != 0 {
		t.Errorf("failed send must not add messages, got %d", n)
	}
	if w.Sender.Draft(convID) != "retry me" || w.Sender.State(convID) != SendFailed {
		t.Errorf("expected draft kept and failed state, got %q/%v", w.Sender.Draft(convID), w.Sender.State(convID))
	}
	c, _ := w.Conversations.Conversation(convID)
	if c.LastMessage != nil {
		t.Errorf("failed send must not touch the preview")
	}
}

func TestBlankSendMakesNoCall(t *testing.T) {
	w, api, convID := newSendWindow(t)
	w.Sender.SetDraft(convID, "   ")

	if _, err := w.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if api.sendCount() != 0 {
		t.Errorf("expected no network call")
	}
	if len(w.Thread.Snapshot().Messages) != 0 || w.Sender.Draft(convID) != "   " || w.Sender.State(convID) != SendIdle {
		t.Errorf("thread and compose state must be unchanged")
	}
}

func TestSecondSendWhileInFlight(t *testing.T) {
	w, api, convID := newSendWindow(t)
	api.sendGate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := w.Send(context.Background(), "first")
		done <- err
	}()
	for !w.Sender.Sending(convID) {
		time.Sleep(time.Millisecond)
	}

	if _, err := w.Send(context.Background(), "second"); !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("expected ErrSendInFlight, got %v", err)
	}
	close(api.sendGate)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}
	if n := len(w.Thread.Snapshot().Messages); n != 1 {
		t.Errorf("expected exactly one message, got %d", n)
	}
}

func TestSendWithoutSelection(t *testing.T) {
	api := newFakeAPI(uuid.New())
	w := NewWindow(api, api.me)
	if _, err := w.Send(context.Background(), "hi"); !errors.Is(err, ErrNoActiveConversation) {
		t.Fatalf("expected ErrNoActiveConversation, got %v", err)
	}
}

func TestMatchSelectionWinsOverList(t *testing.T) {
	me := uuid.New()
	api := newFakeAPI(me)
	listed := summary("Ann", 1)
	api.conversations = []models.ConversationSummary{listed}

	matchID, matchConv := uuid.New(), uuid.New()
	api.details[matchID] = &models.ConversationDetail{
		ID:               matchConv,
		OtherParticipant: &models.ProfileSummary{ID: uuid.New(), User: models.UserBasic{FirstName: "Cy"}},
		IsActive:         true,
	}
	api.resolveGate = make(chan struct{})

	w := NewWindow(api, me)
	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background(), &matchID) }()

	// The list finishes first; nothing may be auto-selected while the match is pending.
	for len(w.Conversations.Conversations()) == 0 {
		time.Sleep(time.Millisecond)
	}
	if got := w.Conversations.ActiveID(); got != uuid.Nil {
		t.Fatalf("auto-selected %s while a match was pending", got)
	}
	close(api.resolveGate)

	if err := <-done; err != nil {
		t.Fatalf("Start: %v", err)
	}
	if w.Conversations.ActiveID() != matchConv {
		t.Errorf("expected match conversation selected")
	}
	if _, ok := w.Conversations.Conversation(matchConv); !ok {
		t.Errorf("expected match conversation in the list")
	}
	if w.Thread.Snapshot().ConversationID != matchConv {
		t.Errorf("expected match thread loaded")
	}
}

func TestMatchResolvedBeforeListIsKept(t *testing.T) {
	me := uuid.New()
	api := newFakeAPI(me)
	api.conversations = []models.ConversationSummary{summary("Ann", 0)}
	matchID, matchConv := uuid.New(), uuid.New()
	api.details[matchID] = &models.ConversationDetail{ID: matchConv}

	store := NewConversationStore(api)
	if _, err := store.OpenMatch(context.Background(), matchID); err != nil {
		t.Fatalf("OpenMatch: %v", err)
	}
	if err := store.LoadConversations(context.Background()); err != nil {
		t.Fatalf("LoadConversations: %v", err)
	}
	if store.ActiveID() != matchConv {
		t.Errorf("list load must not override the match selection")
	}
	if list := store.Conversations(); len(list) != 2 || list[0].ID != matchConv {
		t.Errorf("expected match conversation kept at the top, got %+v", list)
	}
}

func TestFailedMatchFallsBackToFirst(t *testing.T) {
	me := uuid.New()
	api := newFakeAPI(me)
	first := summary("Ann", 0)
	api.conversations = []models.ConversationSummary{first}
	api.resolveErr = errBackend

	w := NewWindow(api, me)
	matchID := uuid.New()
	if err := w.Start(context.Background(), &matchID); !errors.Is(err, errBackend) {
		t.Fatalf("expected match error, got %v", err)
	}
	if w.Conversations.ActiveID() != first.ID {
		t.Errorf("expected first conversation selected after failed match")
	}
}

func TestFailedListKeepsPrevious(t *testing.T) {
	api := newFakeAPI(uuid.New())
	api.conversations = []models.ConversationSummary{summary("Ann", 2)}
	store := NewConversationStore(api)
	if err := store.LoadConversations(context.Background()); err != nil {
		t.Fatalf("LoadConversations: %v", err)
	}

	api.listErr = errBackend
	if err := store.LoadConversations(context.Background()); !errors.Is(err, errBackend) {
		t.Fatalf("expected error, got %v", err)
	}
	if list := store.Conversations(); len(list) != 1 || list[0].UnreadCount != 2 {
		t.Errorf("previous list must survive a failed load, got %+v", list)
	}
}

func TestParticipantPhoto(t *testing.T) {
	tests := []struct {
		name   string
		photos []models.Photo
		want   string
	}{
		{"primary wins", []models.Photo{{ImageURL: "a"}, {ImageURL: "b", IsPrimary: true}}, "b"},
		{"first otherwise", []models.Photo{{ImageURL: "a"}, {ImageURL: "b"}}, "a"},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := summary("Ann", 0)
			s.OtherParticipant.Photos = tt.photos
			if got := conversationFromSummary(s).Participant.PhotoURL; got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestUnreadNeverNegative(t *testing.T) {
	s := summary("Ann", -2)
	if got := conversationFromSummary(s).UnreadCount; got != 0 {
		t.Errorf("expected negative counts clamped to 0, got %d", got)
	}
}

func TestApplyIncomingMessageKeepsUnread(t *testing.T) {
	api := newFakeAPI(uuid.New())
	conv := summary("Ann", 2)
	api.conversations = []models.ConversationSummary{conv}
	store := NewConversationStore(api)
	store.LoadConversations(context.Background())

	store.ApplyIncomingMessage(conv.ID, Message{Content: "x"})
	c, _ := store.Conversation(conv.ID)
	if c.UnreadCount != 2 || c.LastMessage.Content != "x" {
		t.Errorf("unexpected conversation: %+v", c)
	}
}

func TestRemoteMessages(t *testing.T) {
	me := uuid.New()
	api := newFakeAPI(me)
	open, other := summary("Ann", 0), summary("Bea", 0)
	api.conversations = []models.ConversationSummary{open, other}
	w := NewWindow(api, me)
	if err := w.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}

	in := received(other.ID, other.OtherParticipant.ID, "psst", time.Now())
	if err := w.ReceiveMessage(context.Background(), models.NewMessageEvent{ConversationID: other.ID, Message: &in}); err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	c, _ := w.Conversations.Conversation(other.ID)
	if c.UnreadCount != 1 || c.LastMessage.Content != "psst" {
		t.Errorf("background conversation should count unread: %+v", c)
	}

	in = received(open.ID, open.OtherParticipant.ID, "hello", time.Now())
	if err := w.ReceiveMessage(context.Background(), models.NewMessageEvent{ConversationID: open.ID, Message: &in}); err != nil {
		t.Fatalf("ReceiveMessage: %v", err)
	}
	c, _ = w.Conversations.Conversation(open.ID)
	if c.UnreadCount != 0 {
		t.Errorf("open conversation should stay read, got %d", c.UnreadCount)
	}
	thread := w.Thread.Snapshot()
	if len(thread.Messages) != 1 || !thread.Messages[0].IsRead {
		t.Errorf("expected the message appended and read: %+v", thread.Messages)
	}
	if api.markReadCount(open.ID) != 2 {
		t.Errorf("expected a read call on open and one for the live message, got %d", api.markReadCount(open.ID))
	}
}

func TestApplyReadFlipsOwnMessages(t *testing.T) {
	w, _, convID := newSendWindow(t)
	if _, err := w.Send(context.Background(), "seen?"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	w.ApplyRead(models.MessagesReadEvent{ConversationID: convID, ReaderID: uuid.New()})
	if !w.Thread.Snapshot().Messages[0].IsRead {
		t.Errorf("expected own message marked read")
	}
}

func TestBodyVariants(t *testing.T) {
	tests := []struct {
		typ  models.MessageType
		want Body
	}{
		{models.MessageText, TextBody{Text: "c"}},
		{models.MessageImage, ImageBody{URL: "c"}},
		{models.MessageSystem, SystemBody{Notice: "c"}},
		{"", TextBody{Text: "c"}},
	}
	for _, tt := range tests {
		if got := (Message{Type: tt.typ, Content: "c"}).Body(); got != tt.want {
			t.Errorf("%q: expected %#v, got %#v", tt.typ, tt.want, got)
		}
	}
}

func TestFromModelImage(t *testing.T) {
	url := "https://cdn.example.com/x.png"
	m := FromModel(models.Message{Type: models.MessageImage, Content: "caption", Image: &url})
	if body, ok := m.Body().(ImageBody); !ok || body.URL != url {
		t.Errorf("expected image body with url, got %#v", m.Body())
	}
}

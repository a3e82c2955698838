package chatview

import (
	"context"
	"log"

	"soulconnect-chat/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Window ties the list, the thread and the send pipeline together for one user.
type Window struct {
	Conversations *ConversationStore
	Thread        *MessageListController
	Sender        *SendPipeline

	api ChatAPI
	me  uuid.UUID
}

// NewWindow builds the view model for the user whose profile is me.
func NewWindow(api ChatAPI, me uuid.UUID) *Window {
	convs := NewConversationStore(api)
	thread := NewMessageListController(api, convs, me)
	return &Window{
		Conversations: convs,
		Thread:        thread,
		Sender:        NewSendPipeline(api, convs, thread),
		api:           api,
		me:            me,
	}
}

// Me is the current user's profile id.
func (w *Window) Me() uuid.UUID { return w.me }

// Start loads the conversation list and, when matchID is set, resolves that
// match's conversation at the same time. The match conversation is selected
// over the list's first item. The selected thread is then loaded.
func (w *Window) Start(ctx context.Context, matchID *uuid.UUID) error {
	var g errgroup.Group
	var listErr error
	if matchID != nil {
		id := *matchID
		w.Conversations.beginMatch()
		g.Go(func() error {
			_, err := w.Conversations.resolveMatch(ctx, id)
			return err
		})
	}
	g.Go(func() error {
		listErr = w.Conversations.LoadConversations(ctx)
		return nil
	})
	matchErr := g.Wait()

	if active := w.Conversations.ActiveID(); active != uuid.Nil {
		if err := w.Thread.LoadMessages(ctx, active); err != nil && !IsSuperseded(err) {
			log.Printf("Start: loading thread %s: %v", active, err)
		}
	}
	if matchErr != nil {
		return matchErr
	}
	return listErr
}

// Resync reloads the list and the open thread, picking up whatever was
// pushed while live updates were down.
func (w *Window) Resync(ctx context.Context) error {
	if err := w.Conversations.LoadConversations(ctx); err != nil {
		return err
	}
	if active := w.Conversations.ActiveID(); active != uuid.Nil {
		if err := w.Thread.LoadMessages(ctx, active); err != nil && !IsSuperseded(err) {
			return err
		}
	}
	return nil
}

// Select opens a conversation and loads its thread.
func (w *Window) Select(ctx context.Context, conversationID uuid.UUID) error {
	w.Conversations.SelectConversation(conversationID)
	return w.Thread.LoadMessages(ctx, conversationID)
}

// Send posts content to the active conversation.
func (w *Window) Send(ctx context.Context, content string) (*Message, error) {
	active := w.Conversations.ActiveID()
	if active == uuid.Nil {
		return nil, ErrNoActiveConversation
	}
	return w.Sender.Send(ctx, active, content)
}

// ReceiveMessage applies a message pushed by the server. Messages from an
// unknown conversation trigger a list reload. A message landing in the open
// thread is marked read right away.
func (w *Window) ReceiveMessage(ctx context.Context, ev models.NewMessageEvent) error {
	if ev.Message == nil {
		return nil
	}
	msg := FromModel(*ev.Message)
	if msg.SenderID == w.me {
		return nil
	}
	convID := ev.ConversationID
	if msg.ConversationID == uuid.Nil {
		msg.ConversationID = convID
	}

	if !w.Conversations.RecordRemoteMessage(convID, msg) {
		return w.Conversations.LoadConversations(ctx)
	}
	if w.Conversations.ActiveID() != convID || !w.Thread.Append(convID, msg) {
		return nil
	}
	if err := w.api.MarkRead(ctx, convID); err != nil {
		log.Printf("ReceiveMessage: mark read for %s failed: %v", convID, err)
		return nil
	}
	w.Thread.MarkReceivedRead(convID)
	w.Conversations.ClearUnread(convID)
	return nil
}

// ApplyRead records that the other participant read the user's messages.
func (w *Window) ApplyRead(ev models.MessagesReadEvent) {
	if ev.ReaderID == w.me {
		return
	}
	w.Thread.MarkSentRead(ev.ConversationID)
}

package chatview

import (
	"context"
	"errors"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LoadState is the state of the open thread.
type LoadState int

const (
	LoadIdle LoadState = iota
	LoadLoading
	LoadLoaded
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadIdle:
		return "idle"
	case LoadLoading:
		return "loading"
	case LoadLoaded:
		return "loaded"
	case LoadFailed:
		return "failed"
	}
	return "unknown"
}

// Thread is a snapshot of the open conversation's messages.
type Thread struct {
	ConversationID uuid.UUID
	Messages       []Message
	State          LoadState
	Err            error
}

// MessageListController loads one conversation's messages at a time.
type MessageListController struct {
	api   ChatAPI
	convs *ConversationStore
	me    uuid.UUID

	mu             sync.RWMutex
	generation     uint64
	conversationID uuid.UUID
	messages       []Message
	pending        []Message
	state          LoadState
	err            error
}

// NewMessageListController creates a controller for the user whose profile is me.
func NewMessageListController(api ChatAPI, convs *ConversationStore, me uuid.UUID) *MessageListController {
	return &MessageListController{api: api, convs: convs, me: me}
}

// LoadMessages replaces the thread with conversationID's messages and then
// marks them read. A response for a request that has since been superseded
// is dropped with ErrSuperseded. A failed read call leaves the badge.
// Messages confirmed while the fetch is running are merged into the result;
// a failed fetch drops them, as the next successful load returns them.
func (c *MessageListController) LoadMessages(ctx context.Context, conversationID uuid.UUID) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.conversationID = conversationID
	c.messages = nil
	c.pending = nil
	c.state = LoadLoading
	c.err = nil
	c.mu.Unlock()

	fetched, err := c.api.ListMessages(ctx, conversationID)

	c.mu.Lock()
	if c.generation != gen || c.conversationID != conversationID {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		c.messages = nil
		c.pending = nil
		c.state = LoadFailed
		c.err = err
		c.mu.Unlock()
		log.Printf("LoadMessages: conversation %s: %v", conversationID, err)
		return err
	}
	c.messages = make([]Message, 0, len(fetched)+len(c.pending))
	for _, m := range fetched {
		c.messages = append(c.messages, FromModel(m))
	}
	if len(c.pending) > 0 {
		for _, m := range c.pending {
			if !containsMessage(c.messages, m.ID) {
				c.messages = append(c.messages, m)
			}
		}
		slices.SortStableFunc(c.messages, func(a, b Message) int { return a.CreatedAt.Compare(b.CreatedAt) })
		c.pending = nil
	}
	c.state = LoadLoaded
	c.mu.Unlock()

	if err := c.api.MarkRead(ctx, conversationID); err != nil {
		log.Printf("LoadMessages: mark read for %s failed: %v", conversationID, err)
		return nil
	}

	c.mu.Lock()
	if c.generation == gen {
		for i := range c.messages {
			if c.messages[i].SenderID != c.me {
				c.messages[i].IsRead = true
			}
		}
	}
	c.mu.Unlock()
	c.convs.ClearUnread(conversationID)
	return nil
}

// Snapshot returns a copy of the current thread.
func (c *MessageListController) Snapshot() Thread {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	return Thread{ConversationID: c.conversationID, Messages: msgs, State: c.state, Err: c.err}
}

// Append adds a confirmed message to the open conversation's thread. While
// that thread is still loading the message is held until the fetch lands.
// It reports whether the message was added or held.
func (c *MessageListController) Append(conversationID uuid.UUID, msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conversationID != conversationID {
		return false
	}
	switch c.state {
	case LoadLoaded:
		if containsMessage(c.messages, msg.ID) {
			return false
		}
		c.messages = append(c.messages, msg)
		return true
	case LoadLoading:
		if containsMessage(c.pending, msg.ID) {
			return false
		}
		c.pending = append(c.pending, msg)
		return true
	}
	return false
}

func containsMessage(list []Message, id uuid.UUID) bool {
	if id == uuid.Nil {
		return false
	}
	for _, m := range list {
		if m.ID == id {
			return true
		}
	}
	return false
}

// MarkReceivedRead flips messages from the other participant to read.
func (c *MessageListController) MarkReceivedRead(conversationID uuid.UUID) {
	c.markRead(conversationID, func(m Message) bool { return m.SenderID != c.me })
}

// MarkSentRead flips the user's own messages to read after the other side read them.
func (c *MessageListController) MarkSentRead(conversationID uuid.UUID) {
	c.markRead(conversationID, func(m Message) bool { return m.SenderID == c.me })
}

func (c *MessageListController) markRead(conversationID uuid.UUID, match func(Message) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conversationID != conversationID {
		return
	}
	for i := range c.messages {
		if match(c.messages[i]) {
			c.messages[i].IsRead = true
		}
	}
}

// DateGroup is the messages of one calendar day.
type DateGroup struct {
	Date     time.Time
	Messages []Message
}

// GroupByDate buckets messages by local calendar date.
func GroupByDate(messages []Message) []DateGroup {
	return GroupByDateIn(messages, time.Local)
}

// GroupByDateIn buckets messages by calendar date in loc, keeping their
// order. A new bucket starts whenever the date differs from the previous
// message's.
func GroupByDateIn(messages []Message, loc *time.Location) []DateGroup {
	if loc == nil {
		loc = time.Local
	}
	groups := make([]DateGroup, 0)
	for _, m := range messages {
		t := m.CreatedAt.In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		if n := len(groups); n > 0 && groups[n-1].Date.Equal(day) {
			groups[n-1].Messages = append(groups[n-1].Messages, m)
			continue
		}
		groups = append(groups, DateGroup{Date: day, Messages: []Message{m}})
	}
	return groups
}

// IsSuperseded reports whether err only means a newer load replaced this one.
func IsSuperseded(err error) bool {
	return errors.Is(err, ErrSuperseded)
}

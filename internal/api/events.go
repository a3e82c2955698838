package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"soulconnect-chat/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	eventBuffer = 64
	writeWait   = 10 * time.Second
)

// Event is one decoded server push. Exactly one pointer field is set, matching Type.
type Event struct {
	Type         string
	NewMessage   *models.NewMessageEvent
	MessagesRead *models.MessagesReadEvent
	Typing       *models.TypingEvent
	Error        *models.ErrorEvent
}

// EventStream is a live websocket subscription.
type EventStream struct {
	conn   *websocket.Conn
	events chan Event
	writeM sync.Mutex
	once   sync.Once
}

// Events dials the realtime endpoint with the session's access token. A
// handshake rejected with 401 refreshes the token and dials once more. The
// returned stream's channel closes when ctx ends or the connection drops.
func (c *Client) Events(ctx context.Context) (*EventStream, error) {
	token := c.session.AccessToken()
	if token == "" && c.session.RefreshToken() == "" {
		return nil, ErrNotLoggedIn
	}

	conn, err := c.dialEvents(ctx, token)
	if KindOf(err) == KindUnauthorized {
		if rerr := c.refresh(ctx, token); rerr != nil {
			log.Printf("api: refresh after rejected websocket handshake failed: %v", rerr)
			c.session.Expire()
			return nil, ErrSessionExpired
		}
		conn, err = c.dialEvents(ctx, c.session.AccessToken())
		if KindOf(err) == KindUnauthorized {
			c.session.Expire()
			return nil, ErrSessionExpired
		}
	}
	if err != nil {
		return nil, err
	}

	s := &EventStream{conn: conn, events: make(chan Event, eventBuffer)}
	go s.readLoop(ctx)
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return s, nil
}

func (c *Client) dialEvents(ctx context.Context, token string) (*websocket.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket url %q: %w", c.wsURL, err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, newStatusError(resp.StatusCode, nil)
		}
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	return conn, nil
}

// C yields events until the stream ends.
func (s *EventStream) C() <-chan Event { return s.events }

// SendTyping relays a typing indicator to the other participant.
func (s *EventStream) SendTyping(conversationID uuid.UUID, typing bool) error {
	payload, err := json.Marshal(models.TypingEvent{ConversationID: conversationID, IsTyping: typing})
	if err != nil {
		return err
	}
	frame := models.WebSocketMessage{Type: models.EventTyping, Payload: payload}

	s.writeM.Lock()
	defer s.writeM.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(frame)
}

func (s *EventStream) Close() error {
	var err error
	s.once.Do(func() {
		s.writeM.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeM.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *EventStream) readLoop(ctx context.Context) {
	defer close(s.events)
	for {
		var frame models.WebSocketMessage
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				log.Printf("api: event stream closed: %v", err)
			}
			return
		}
		ev, err := decodeEvent(frame)
		if err != nil {
			log.Printf("api: dropping %s event: %v", frame.Type, err)
			continue
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func decodeEvent(frame models.WebSocketMessage) (Event, error) {
	ev := Event{Type: frame.Type}
	var target any
	switch frame.Type {
	case models.EventNewMessage:
		ev.NewMessage = &models.NewMessageEvent{}
		target = ev.NewMessage
	case models.EventMessagesRead:
		ev.MessagesRead = &models.MessagesReadEvent{}
		target = ev.MessagesRead
	case models.EventTyping:
		ev.Typing = &models.TypingEvent{}
		target = ev.Typing
	case models.EventError:
		ev.Error = &models.ErrorEvent{}
		target = ev.Error
	default:
		return ev, fmt.Errorf("unknown event type %q", frame.Type)
	}
	if err := json.Unmarshal(frame.Payload, target); err != nil {
		return ev, err
	}
	return ev, nil
}

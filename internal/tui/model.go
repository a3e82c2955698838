// Package tui is the interactive terminal chat: a conversation sidebar with
// unread badges, the open thread grouped by day, and a compose line.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"soulconnect-chat/internal/api"
	"soulconnect-chat/internal/chatview"
	"soulconnect-chat/internal/models"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

const (
	sidebarWidth = 30

	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

type screen int

const (
	screenLogin screen = iota
	screenChat
)

type pane int

const (
	paneSidebar pane = iota
	paneInput
)

type (
	loginResultMsg struct{ err error }
	startedMsg     struct{ err error }
	threadMsg      struct {
		conversationID uuid.UUID
		err            error
	}
	sentMsg struct {
		conversationID uuid.UUID
		err            error
	}
	streamOpenedMsg struct {
		stream *api.EventStream
		err    error
	}
	eventMsg        struct{ ev api.Event }
	streamClosedMsg struct{}
	reconnectMsg    struct{ window *chatview.Window }
	liveAppliedMsg  struct{ err error }
	noticeMsg       struct{ text string }
	expiredMsg      struct{}
)

// Model is the bubbletea model.
type Model struct {
	ctx     context.Context
	client  *api.Client
	window  *chatview.Window
	matchID *uuid.UUID

	screen   screen
	focus    pane
	cursor   int
	width    int
	height   int
	status   string
	starting bool
	sending  bool

	email      textinput.Model
	password   textinput.Model
	loginField int
	loggingIn  bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	stream         *api.EventStream
	reconnectDelay time.Duration
	typingSent     bool
	peerTyping     bool
}

// New builds the model. When the session already holds a user the chat
// opens directly, otherwise the login form is shown first.
func New(ctx context.Context, client *api.Client, matchID *uuid.UUID) Model {
	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.CharLimit = 5000

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		client:   client,
		matchID:  matchID,
		email:    email,
		password: password,
		input:    input,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
	if client.Session().LoggedIn() && client.Session().User() != nil {
		m.enterChat()
	}
	return m
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, client *api.Client, matchID *uuid.UUID) error {
	p := tea.NewProgram(New(ctx, client, matchID), tea.WithAltScreen(), tea.WithContext(ctx))
	client.SetNoticeHook(func(e *api.Error) { p.Send(noticeMsg{text: e.Message}) })
	client.Session().OnExpired(func() { p.Send(expiredMsg{}) })
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) enterChat() {
	m.screen = screenChat
	m.focus = paneInput
	m.starting = true
	m.window = chatview.NewWindow(m.client, m.client.Session().ProfileID())
	m.input.Focus()
}

func (m Model) Init() tea.Cmd {
	if m.screen == screenChat {
		return tea.Batch(m.spinner.Tick, m.startCmd())
	}
	return textinput.Blink
}

func (m Model) startCmd() tea.Cmd {
	w, ctx, matchID := m.window, m.ctx, m.matchID
	return func() tea.Msg {
		return startedMsg{err: w.Start(ctx, matchID)}
	}
}

func (m Model) openStreamCmd() tea.Cmd {
	client, ctx := m.client, m.ctx
	return func() tea.Msg {
		stream, err := client.Events(ctx)
		return streamOpenedMsg{stream: stream, err: err}
	}
}

// reconnectCmd schedules a redial with exponential backoff. The tick is tied to
// the current window so it is ignored after a logout or re-login.
func (m *Model) reconnectCmd() tea.Cmd {
	d := m.reconnectDelay
	if d < reconnectMin {
		d = reconnectMin
	}
	m.reconnectDelay = min(2*d, reconnectMax)
	w := m.window
	return tea.Tick(d, func(time.Time) tea.Msg { return reconnectMsg{window: w} })
}

func (m Model) resyncCmd() tea.Cmd {
	w, ctx := m.window, m.ctx
	return func() tea.Msg {
		return liveAppliedMsg{err: w.Resync(ctx)}
	}
}

func waitForEvent(stream *api.EventStream) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-stream.C()
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func (m Model) loadThreadCmd(id uuid.UUID) tea.Cmd {
	w, ctx := m.window, m.ctx
	return func() tea.Msg {
		return threadMsg{conversationID: id, err: w.Select(ctx, id)}
	}
}

func (m Model) sendCmd(id uuid.UUID, content string) tea.Cmd {
	w, ctx := m.window, m.ctx
	return func() tea.Msg {
		_, err := w.Sender.Send(ctx, id, content)
		return sentMsg{conversationID: id, err: err}
	}
}

func (m Model) loginCmd(email, password string) tea.Cmd {
	client, ctx := m.client, m.ctx
	return func() tea.Msg {
		_, err := client.Login(ctx, email, password)
		return loginResultMsg{err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case noticeMsg:
		m.status = msg.text
		return m, nil

	case expiredMsg:
		m.closeStream()
		m.screen = screenLogin
		m.window = nil
		m.status = "Your session expired. Please log in again."
		m.password.SetValue("")
		m.email.Focus()
		m.loginField = 0
		return m, textinput.Blink

	case spinner.TickMsg:
		if !m.starting && !m.threadLoading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.screen == screenLogin {
		return m.updateLogin(msg)
	}
	return m.updateChat(msg)
}

func (m Model) updateLogin(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loginResultMsg:
		m.loggingIn = false
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.status = ""
		m.enterChat()
		m.resize()
		return m, tea.Batch(m.spinner.Tick, m.startCmd())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Focus):
			m.loginField = 1 - m.loginField
			if m.loginField == 0 {
				m.password.Blur()
				return m, m.email.Focus()
			}
			m.email.Blur()
			return m, m.password.Focus()
		case key.Matches(msg, keys.Enter):
			if m.loggingIn {
				return m, nil
			}
			email, password := strings.TrimSpace(m.email.Value()), m.password.Value()
			if email == "" || password == "" {
				m.status = "Email and password are required."
				return m, nil
			}
			m.loggingIn = true
			m.status = ""
			return m, m.loginCmd(email, password)
		}
	}

	var cmd tea.Cmd
	if m.loginField == 0 {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) updateChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startedMsg:
		m.starting = false
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		m.syncCursor()
		m.restoreDraft()
		m.refreshThread(true)
		return m, m.openStreamCmd()

	case threadMsg:
		if msg.err != nil && !chatview.IsSuperseded(msg.err) {
			m.status = "Could not load messages: " + msg.err.Error()
		}
		m.refreshThread(true)
		return m, nil

	case sentMsg:
		m.sending = false
		m.input.Focus()
		switch {
		case msg.err == nil:
			if m.window.Conversations.ActiveID() == msg.conversationID {
				m.input.SetValue("")
			}
			m.stopTyping()
		case errors.Is(msg.err, chatview.ErrEmptyMessage), errors.Is(msg.err, chatview.ErrSendInFlight):
		default:
			m.status = "Message not sent: " + msg.err.Error()
		}
		m.refreshThread(true)
		return m, nil

	case streamOpenedMsg:
		if msg.err != nil {
			if errors.Is(msg.err, api.ErrSessionExpired) || m.ctx.Err() != nil {
				return m, nil
			}
			m.status = "Live updates unavailable: " + msg.err.Error()
			return m, m.reconnectCmd()
		}
		m.stream = msg.stream
		cmds := []tea.Cmd{waitForEvent(m.stream)}
		if m.reconnectDelay > 0 {
			m.reconnectDelay = 0
			m.status = ""
			cmds = append(cmds, m.resyncCmd())
		}
		return m, tea.Batch(cmds...)

	case streamClosedMsg:
		m.stream = nil
		if m.ctx.Err() != nil {
			return m, nil
		}
		m.status = "Live updates disconnected, reconnecting..."
		return m, m.reconnectCmd()

	case reconnectMsg:
		if msg.window != m.window || m.stream != nil {
			return m, nil
		}
		return m, m.openStreamCmd()

	case eventMsg:
		cmd := m.handleEvent(msg.ev)
		if m.stream == nil {
			return m, cmd
		}
		return m, tea.Batch(cmd, waitForEvent(m.stream))

	case liveAppliedMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		m.syncCursor()
		m.refreshThread(true)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.closeStream()
		return m, tea.Quit
	case key.Matches(msg, keys.Dismiss):
		m.status = ""
		return m, nil
	case key.Matches(msg, keys.Focus):
		if m.focus == paneSidebar {
			m.focus = paneInput
			return m, m.input.Focus()
		}
		m.focus = paneSidebar
		m.input.Blur()
		return m, nil
	case key.Matches(msg, keys.Reload):
		m.starting = true
		return m, tea.Batch(m.spinner.Tick, m.startCmd())
	}

	if m.focus == paneSidebar {
		convs := m.window.Conversations.Conversations()
		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(convs)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Enter):
			if m.cursor < len(convs) {
				m.saveDraft()
				id := convs[m.cursor].ID
				m.window.Conversations.SelectConversation(id)
				m.restoreDraft()
				m.peerTyping = false
				m.focus = paneInput
				m.input.Focus()
				return m, tea.Batch(m.spinner.Tick, m.loadThreadCmd(id))
			}
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	active := m.window.Conversations.ActiveID()
	if key.Matches(msg, keys.Enter) {
		if m.sending || active == uuid.Nil {
			return m, nil
		}
		content := m.input.Value()
		if strings.TrimSpace(content) == "" {
			return m, nil
		}
		m.sending = true
		m.input.Blur()
		return m, m.sendCmd(active, content)
	}
	if m.sending {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.saveDraft()
	m.startTyping(active)
	return m, cmd
}

func (m *Model) handleEvent(ev api.Event) tea.Cmd {
	w, ctx := m.window, m.ctx
	if w == nil {
		return nil
	}
	switch ev.Type {
	case models.EventNewMessage:
		if ev.NewMessage.ConversationID == w.Conversations.ActiveID() {
			m.peerTyping = false
		}
		payload := *ev.NewMessage
		return func() tea.Msg {
			return liveAppliedMsg{err: w.ReceiveMessage(ctx, payload)}
		}
	case models.EventMessagesRead:
		w.ApplyRead(*ev.MessagesRead)
		m.refreshThread(false)
	case models.EventTyping:
		if ev.Typing.ConversationID == w.Conversations.ActiveID() {
			m.peerTyping = ev.Typing.IsTyping
		}
	case models.EventError:
		m.status = ev.Error.Message
	}
	return nil
}

func (m *Model) startTyping(active uuid.UUID) {
	if m.stream == nil || active == uuid.Nil {
		return
	}
	typing := strings.TrimSpace(m.input.Value()) != ""
	if typing == m.typingSent {
		return
	}
	if err := m.stream.SendTyping(active, typing); err == nil {
		m.typingSent = typing
	}
}

func (m *Model) stopTyping() {
	if m.typingSent && m.stream != nil && m.window != nil {
		_ = m.stream.SendTyping(m.window.Conversations.ActiveID(), false)
	}
	m.typingSent = false
}

func (m *Model) closeStream() {
	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
}

func (m *Model) saveDraft() {
	if m.window == nil {
		return
	}
	if active := m.window.Conversations.ActiveID(); active != uuid.Nil {
		m.window.Sender.SetDraft(active, m.input.Value())
	}
}

func (m *Model) restoreDraft() {
	if m.window == nil {
		return
	}
	m.input.SetValue(m.window.Sender.Draft(m.window.Conversations.ActiveID()))
	m.input.CursorEnd()
}

// syncCursor keeps the sidebar cursor on the active conversation.
func (m *Model) syncCursor() {
	active := m.window.Conversations.ActiveID()
	for i, c := range m.window.Conversations.Conversations() {
		if c.ID == active {
			m.cursor = i
			return
		}
	}
}

func (m *Model) threadLoading() bool {
	return m.window != nil && m.window.Thread.Snapshot().State == chatview.LoadLoading
}

func (m *Model) resize() {
	chatWidth := m.width - sidebarWidth - 4
	if chatWidth < 20 {
		chatWidth = 20
	}
	height := m.height - 8
	if height < 3 {
		height = 3
	}
	m.viewport.Width = chatWidth - 2
	m.viewport.Height = height
	m.input.Width = chatWidth - 6
	m.refreshThread(false)
}

func (m *Model) refreshThread(toBottom bool) {
	if m.window == nil {
		return
	}
	thread := m.window.Thread.Snapshot()
	m.viewport.SetContent(renderThread(thread, m.window.Me(), m.viewport.Width, m.spinner.View()))
	if toBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) sendingLabel() string {
	if m.sending {
		return fmt.Sprintf("%s sending...", m.spinner.View())
	}
	return ""
}

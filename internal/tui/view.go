package tui

import (
	"fmt"
	"strings"
	"time"

	"soulconnect-chat/internal/chatview"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}
	if m.screen == screenLogin {
		return m.loginView()
	}
	return m.chatView()
}

func (m Model) loginView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("SoulConnect Chat"))
	b.WriteString("\n\n")
	b.WriteString(m.email.View())
	b.WriteString("\n")
	b.WriteString(m.password.View())
	b.WriteString("\n\n")
	if m.loggingIn {
		b.WriteString(m.spinner.View() + " signing in...")
	} else {
		b.WriteString(mutedStyle.Render("tab switch field • enter log in • ctrl+c quit"))
	}
	if m.status != "" {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(m.status))
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, boxStyle.Render(b.String()))
}

func (m Model) chatView() string {
	height := m.height - 4
	if height < 5 {
		height = 5
	}
	active := m.window.Conversations.ActiveID()
	sidebar := renderSidebar(m.window.Conversations.Conversations(), active, m.cursor, m.starting)
	sideBorder := mutedColor
	if m.focus == paneSidebar {
		sideBorder = activeBorder
	}
	left := sidebarStyle.
		BorderForeground(sideBorder).
		Width(sidebarWidth).
		Height(height).
		Render(sidebar)

	chatWidth := m.width - sidebarWidth - 4
	if chatWidth < 20 {
		chatWidth = 20
	}
	header := headerStyle.Width(chatWidth - 2).Render(m.headerText(active))
	body := m.viewport.View()
	if m.starting && active == uuid.Nil {
		body = m.spinner.View() + " Loading conversations..."
	}
	inputBorder := mutedColor
	if m.focus == paneInput {
		inputBorder = activeBorder
	}
	footer := footerStyle.BorderForeground(inputBorder).Width(chatWidth - 2).Render(m.footerText(active))
	right := chatWindowStyle.
		Width(chatWidth).
		Height(height).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, body, footer))

	main := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	bottom := mutedStyle.Render(keys.helpLine())
	if m.status != "" {
		bottom = statusStyle.Render(m.status) + "  " + mutedStyle.Render("esc to dismiss")
	}
	return lipgloss.JoinVertical(lipgloss.Left, main, bottom)
}

func (m Model) headerText(active uuid.UUID) string {
	conv, ok := m.window.Conversations.Conversation(active)
	if !ok {
		return mutedStyle.Render("No conversation selected")
	}
	name := conv.Participant.DisplayName()
	if conv.Participant.IsOnline {
		name += " " + onlineStyle.Render("● online")
	}
	if m.peerTyping {
		name += " " + mutedStyle.Render("typing...")
	}
	return name
}

func (m Model) footerText(active uuid.UUID) string {
	if active == uuid.Nil {
		return mutedStyle.Render("Pick a conversation to start chatting")
	}
	if m.sending {
		return m.sendingLabel()
	}
	return m.input.View()
}

// renderSidebar lists conversations with unread badges and an online dot.
func renderSidebar(convs []chatview.Conversation, active uuid.UUID, cursor int, loading bool) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Conversations"))
	b.WriteString("\n\n")
	if len(convs) == 0 {
		if loading {
			b.WriteString(mutedStyle.Render("Loading..."))
		} else {
			b.WriteString(mutedStyle.Render("No conversations yet.\nMatch with someone to start."))
		}
		return b.String()
	}
	for i, c := range convs {
		line := c.Participant.DisplayName()
		if c.Participant.IsOnline {
			line = onlineStyle.Render("●") + " " + line
		}
		if c.UnreadCount > 0 {
			line += " " + badgeStyle.Render(fmt.Sprintf("(%d)", c.UnreadCount))
		}
		if c.ID == active {
			line += " *"
		}
		preview := ""
		if c.LastMessage != nil {
			preview = truncate(previewText(*c.LastMessage), sidebarWidth-6)
		}
		style := unselectedItemStyle
		if i == cursor {
			style = selectedItemStyle
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
		if preview != "" {
			b.WriteString(unselectedItemStyle.Render(mutedStyle.Render(preview)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func previewText(msg chatview.Message) string {
	switch body := msg.Body().(type) {
	case chatview.ImageBody:
		return "[image]"
	case chatview.SystemBody:
		return body.Notice
	case chatview.TextBody:
		return strings.ReplaceAll(body.Text, "\n", " ")
	}
	return ""
}

// renderThread draws the open thread: a date separator per day, own
// messages on the right with read receipts, others on the left and system
// notices centered.
func renderThread(t chatview.Thread, me uuid.UUID, width int, spin string) string {
	switch t.State {
	case chatview.LoadIdle:
		return mutedStyle.Render("Select a conversation.")
	case chatview.LoadLoading:
		return spin + " Loading messages..."
	case chatview.LoadFailed:
		msg := "Could not load messages."
		if t.Err != nil {
			msg += " " + t.Err.Error()
		}
		return errorStyle.Render(msg) + "\n" + mutedStyle.Render("Press ctrl+r to retry.")
	}
	if len(t.Messages) == 0 {
		return mutedStyle.Render("No messages yet. Say hello!")
	}
	if width < 20 {
		width = 20
	}

	now := time.Now()
	var b strings.Builder
	for gi, group := range chatview.GroupByDate(t.Messages) {
		if gi > 0 {
			b.WriteString("\n")
		}
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, dateStyle.Render(dateLabel(group.Date, now))))
		b.WriteString("\n")
		for _, msg := range group.Messages {
			b.WriteString(renderMessage(msg, me, width))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMessage(msg chatview.Message, me uuid.UUID, width int) string {
	stamp := msg.CreatedAt.Local().Format("15:04")
	switch body := msg.Body().(type) {
	case chatview.SystemBody:
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, systemMessageStyle.Render(body.Notice))
	case chatview.ImageBody:
		return placeMessage(msg, me, width, "[image] "+body.URL, stamp)
	case chatview.TextBody:
		return placeMessage(msg, me, width, body.Text, stamp)
	}
	return ""
}

func placeMessage(msg chatview.Message, me uuid.UUID, width int, text, stamp string) string {
	bubbleWidth := width * 3 / 4
	if msg.SenderID == me {
		line := text + " " + mutedStyle.Render(stamp+" "+receipt(msg))
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, ownMessageStyle.MaxWidth(bubbleWidth).Render(line))
	}
	line := text + " " + mutedStyle.Render(stamp)
	return otherMessageStyle.MaxWidth(bubbleWidth).Render(line)
}

func receipt(msg chatview.Message) string {
	if msg.IsRead {
		return "✓✓"
	}
	return "✓"
}

// dateLabel names a day relative to now.
func dateLabel(day, now time.Time) string {
	y1, m1, d1 := day.Date()
	y2, m2, d2 := now.In(day.Location()).Date()
	today := time.Date(y2, m2, d2, 0, 0, 0, 0, day.Location())
	start := time.Date(y1, m1, d1, 0, 0, 0, 0, day.Location())
	switch {
	case start.Equal(today):
		return "Today"
	case start.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	}
	if y1 == y2 {
		return day.Format("Monday, January 2")
	}
	return day.Format("January 2, 2006")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

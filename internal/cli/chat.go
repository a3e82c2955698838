package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"soulconnect-chat/internal/chatview"
	"soulconnect-chat/internal/tui"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (a *app) conversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"convs", "ls"},
		Short:   "List conversations with unread counts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			store := chatview.NewConversationStore(a.client)
			if err := store.LoadConversations(cmd.Context()); err != nil {
				return fmt.Errorf("failed to list conversations: %w", err)
			}
			convs := store.Conversations()
			out := cmd.OutOrStdout()
			if len(convs) == 0 {
				fmt.Fprintln(out, "No conversations yet. Match with someone to start chatting.")
				return nil
			}

			rows := make([][]string, 0, len(convs))
			for _, c := range convs {
				last := "-"
				if c.LastMessage != nil {
					last = truncate(previewText(*c.LastMessage), 40)
				}
				unread := ""
				if c.UnreadCount > 0 {
					unread = strconv.Itoa(c.UnreadCount)
				}
				rows = append(rows, []string{
					c.ID.String(),
					c.Participant.DisplayName(),
					last,
					unread,
					yesNo(c.Participant.IsOnline),
				})
			}
			printTable(out, []string{"ID", "With", "Last Message", "Unread", "Online"}, rows)
			fmt.Fprintf(out, "\n%d conversations, %d unread messages\n", len(convs), store.TotalUnread())
			return nil
		},
	}
}

func (a *app) messagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "messages <conversation-id>",
		Short: "Print a conversation and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid conversation id %q", args[0])
			}

			me := a.sess.ProfileID()
			w := chatview.NewWindow(a.client, me)
			if err := w.Select(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to load messages: %w", err)
			}
			thread := w.Thread.Snapshot()
			out := cmd.OutOrStdout()
			if len(thread.Messages) == 0 {
				fmt.Fprintln(out, "No messages yet.")
				return nil
			}
			for _, group := range chatview.GroupByDate(thread.Messages) {
				fmt.Fprintln(out, dateRuleStyle.Render("── "+group.Date.Format("Mon, Jan 2 2006")+" ──"))
				for _, m := range group.Messages {
					fmt.Fprintln(out, formatLine(m, me))
				}
			}
			return nil
		},
	}
}

func (a *app) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <conversation-id> <text>...",
		Short: "Send a text message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid conversation id %q", args[0])
			}

			w := chatview.NewWindow(a.client, a.sess.ProfileID())
			msg, err := w.Sender.Send(cmd.Context(), id, strings.Join(args[1:], " "))
			if errors.Is(err, chatview.ErrEmptyMessage) {
				return errors.New("message is empty")
			}
			if err != nil {
				return fmt.Errorf("failed to send message: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent at %s\n", msg.CreatedAt.Local().Format(time.Kitchen))
			return nil
		},
	}
}

func (a *app) unreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Show the total unread message count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			n, err := a.client.UnreadTotal(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get unread count: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d unread\n", n)
			return nil
		},
	}
}

func (a *app) chatCmd() *cobra.Command {
	var match string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat window",
		Long:  `Open the interactive chat window. With --match the conversation for that match is opened first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var matchID *uuid.UUID
			if match != "" {
				id, err := uuid.Parse(match)
				if err != nil {
					return fmt.Errorf("invalid match id %q", match)
				}
				matchID = &id
			}
			return tui.Run(cmd.Context(), a.client, matchID)
		},
	}
	cmd.Flags().StringVarP(&match, "match", "m", "", "open the conversation for this match")
	return cmd
}

func previewText(m chatview.Message) string {
	switch body := m.Body().(type) {
	case chatview.ImageBody:
		return "[image]"
	case chatview.SystemBody:
		return body.Notice
	case chatview.TextBody:
		return body.Text
	}
	return ""
}

func formatLine(m chatview.Message, me uuid.UUID) string {
	stamp := m.CreatedAt.Local().Format("15:04")
	switch body := m.Body().(type) {
	case chatview.SystemBody:
		return systemLineStyle.Render(fmt.Sprintf("[%s] * %s", stamp, body.Notice))
	case chatview.ImageBody:
		return fmt.Sprintf("[%s] %s: [image] %s", stamp, senderLabel(m, me), body.URL)
	case chatview.TextBody:
		line := fmt.Sprintf("[%s] %s: %s", stamp, senderLabel(m, me), body.Text)
		if m.SenderID == me {
			line += " " + readMark(m.IsRead)
		}
		return line
	}
	return ""
}

func senderLabel(m chatview.Message, me uuid.UUID) string {
	if m.SenderID == me {
		return "You"
	}
	if m.SenderName != "" {
		return m.SenderName
	}
	return "Them"
}

func readMark(read bool) string {
	if read {
		return "✓✓"
	}
	return "✓"
}

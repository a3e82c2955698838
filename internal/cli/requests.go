package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (a *app) requestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requests",
		Short: "List chat requests waiting for your answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			reqs, err := a.client.ListChatRequests(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list chat requests: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(reqs) == 0 {
				fmt.Fprintln(out, "No pending chat requests.")
				return nil
			}

			rows := make([][]string, 0, len(reqs))
			for _, r := range reqs {
				from := "Unknown"
				if r.FromProfile != nil {
					from = displayName(r.FromProfile.FullName, "Unknown")
				}
				note := r.Message
				if note == "" {
					note = "-"
				}
				rows = append(rows, []string{
					r.ID.String(),
					from,
					truncate(note, 40),
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			printTable(out, []string{"Request ID", "From", "Message", "Sent"}, rows)
			return nil
		},
	}
}

func (a *app) requestCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "request <match-id>",
		Short: "Ask a match to unlock chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid match id %q", args[0])
			}
			sent, notice, err := a.client.SendChatRequest(cmd.Context(), id, message)
			if err != nil {
				return fmt.Errorf("chat request failed: %w", err)
			}
			out := cmd.OutOrStdout()
			if sent == nil {
				fmt.Fprintln(out, notice)
				return nil
			}
			fmt.Fprintf(out, "Chat request sent (%s).\n", sent.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "optional note sent with the request")
	return cmd
}

func (a *app) respondCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "respond <request-id> accept|decline",
		Short:     "Accept or decline a chat request",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"accept", "decline"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid request id %q", args[0])
			}
			var accept bool
			switch args[1] {
			case "accept":
				accept = true
			case "decline":
			default:
				return fmt.Errorf("unknown action %q, use accept or decline", args[1])
			}

			resp, err := a.client.RespondChatRequest(cmd.Context(), id, accept)
			if err != nil {
				return fmt.Errorf("respond failed: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Message)
			if resp.Conversation != nil {
				fmt.Fprintf(out, "Conversation %s is open.\n", resp.Conversation.ID)
			}
			return nil
		},
	}
}

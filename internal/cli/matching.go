package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (a *app) matchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matches",
		Short: "List your matches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			matches, err := a.client.ListMatches(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list matches: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "No matches yet.")
				return nil
			}

			rows := make([][]string, 0, len(matches))
			for _, m := range matches {
				name, city := "Unknown", "-"
				if p := m.OtherProfile; p != nil {
					name = displayName(p.FullName, "Unknown")
					if p.City != "" {
						city = p.City
					}
				}
				rows = append(rows, []string{
					m.ID.String(),
					name,
					city,
					m.MatchedAt.Local().Format("2006-01-02"),
					yesNo(m.ChatUnlocked),
				})
			}
			printTable(out, []string{"Match ID", "Name", "City", "Matched", "Chat"}, rows)
			return nil
		},
	}
}

func (a *app) likeCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "like <profile-id>",
		Short: "Like a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid profile id %q", args[0])
			}
			resp, err := a.client.Like(cmd.Context(), id, message)
			if err != nil {
				return fmt.Errorf("like failed: %w", err)
			}
			out := cmd.OutOrStdout()
			if resp.IsMatch && resp.Match != nil {
				fmt.Fprintf(out, "It's a match! Run `soulchat chat --match %s` to say hello.\n", resp.Match.ID)
				return nil
			}
			fmt.Fprintln(out, resp.Message)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "optional note sent with the like")
	return cmd
}

func (a *app) unmatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unmatch <match-id>",
		Short: "End a match and close its conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid match id %q", args[0])
			}
			if err := a.client.Unmatch(cmd.Context(), id); err != nil {
				return fmt.Errorf("unmatch failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Unmatched.")
			return nil
		},
	}
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cipherchat/internal/domain"
)

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <peer>",
		Short: "Print the local conversation history with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := appCtx.Profile()
			if err != nil {
				return err
			}
			peer := domain.Username(args[0])
			entries, err := appCtx.History.ListMessages(cmd.Context(), p.Username, peer, limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				dir := "<"
				switch {
				case e.Outgoing:
					dir = ">"
				case !e.Read:
					dir = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s: %s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04"), dir, e.Sender, e.Content)
			}
			_, err = appCtx.History.MarkRead(cmd.Context(), p.Username, peer)
			return err
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "newest entries to show (0 for all)")
	return cmd
}

func chatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := appCtx.Profile()
			if err != nil {
				return err
			}
			convs, err := appCtx.History.ListConversations(cmd.Context(), p.Username)
			if err != nil {
				return err
			}
			for _, c := range convs {
				unread := ""
				if c.Unread > 0 {
					unread = fmt.Sprintf(" (%d new)", c.Unread)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %4d%s  %s  %s\n",
					c.Peer, c.Count, unread, c.LastAt.Local().Format("2006-01-02 15:04"), c.LastMessage)
			}
			return nil
		},
	}
}

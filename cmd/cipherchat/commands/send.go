package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cipherchat/internal/domain"
)

// send <peer> <message>: encrypt and send a message to <peer>.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>...",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			acct, err := appCtx.Account(passphrase)
			if err != nil {
				return err
			}
			peer := domain.Username(args[0])
			msg := strings.Join(args[1:], " ")

			if err := appCtx.Messages.Send(cmd.Context(), acct, peer, []byte(msg)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
}

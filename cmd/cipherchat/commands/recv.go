package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cipherchat/internal/domain"
)

// recv: fetch and decrypt queued messages.
func recvCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "recv",
		Aliases: []string{"fetch"},
		Short:   "Fetch and decrypt your queued messages",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			acct, err := appCtx.Account(passphrase)
			if err != nil {
				return err
			}
			res, err := appCtx.Messages.Fetch(cmd.Context(), acct)
			printFetch(cmd.OutOrStdout(), res, "")
			return err
		},
	}
}

// printFetch writes decrypted messages and failures; only is an optional
// sender filter for messages.
func printFetch(w io.Writer, res domain.FetchResult, only domain.Username) {
	for _, m := range res.Messages {
		if only != "" && m.From != only {
			continue
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", m.Timestamp.Local().Format("15:04:05"), m.From, m.Plaintext)
	}
	for _, f := range res.Failures {
		state := "kept for retry"
		if f.Dropped {
			state = "dropped"
		}
		fmt.Fprintf(w, "! message %s from %s %s: %v\n", f.EnvelopeID, f.Sender, state, f.Err)
	}
}

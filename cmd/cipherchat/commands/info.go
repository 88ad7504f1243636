package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the local account on the configured relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := appCtx.Profile()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Username:  %s\n", p.Username)
			fmt.Fprintf(out, "Relay:     %s\n", p.ServerURL)
			fmt.Fprintf(out, "User ID:   %s\n", p.UserID)
			fmt.Fprintf(out, "Device ID: %s\n", p.DeviceID)
			if passphrase != "" {
				fp, err := appCtx.Identity.FingerprintIdentity(passphrase)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Fingerprint: %s\n", fp)
			}
			return nil
		},
	}
}

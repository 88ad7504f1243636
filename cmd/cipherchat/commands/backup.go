package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var backupPass string
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write an encrypted backup of your identity, pre-keys and accounts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			data, err := appCtx.Backup.Export(passphrase, backupPass)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], data, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&backupPass, "backup-passphrase", "", "seal the backup under this passphrase instead of -p")
	return cmd
}

func importCmd() *cobra.Command {
	var (
		backupPass string
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore a backup into this home, sealing it under -p",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fp, err := appCtx.Backup.Import(data, backupPass, passphrase, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity restored.\nFingerprint: %s\n", fp)
			return nil
		},
	}
	cmd.Flags().StringVar(&backupPass, "backup-passphrase", "", "passphrase the backup was sealed with (default -p)")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing identity")
	return cmd
}

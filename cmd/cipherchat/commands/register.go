package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cipherchat/internal/domain"
)

func registerCmd() *cobra.Command {
	var oneTime int
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Publish your pre-key bundle to the relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			username := domain.Username(args[0])
			if err := appCtx.CheckNewAccount(username); err != nil {
				return err
			}

			id, err := appCtx.Identity.LoadIdentity(passphrase)
			if err != nil {
				return err
			}

			// Generate a signed-prekey and a batch of OPKs.
			if _, _, err := appCtx.Prekeys.GenerateAndStorePreKeys(passphrase, oneTime); err != nil {
				return err
			}
			bundle, err := appCtx.Prekeys.LoadPreKeyBundle(passphrase)
			if err != nil {
				return err
			}

			acct := domain.LocalAccount{Username: username, Identity: id}
			reg, err := appCtx.Relay.Register(cmd.Context(), acct.Credentials(), bundle)
			if err != nil {
				return err
			}

			if err := appCtx.Accounts.SaveAccountProfile(domain.AccountProfile{
				ServerURL: appCtx.Config.RelayURL,
				Username:  username,
				UserID:    reg.UserID,
				DeviceID:  reg.DeviceID,
				CreatedAt: time.Now().UTC(),
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (user %s, device %s)\n", username, reg.UserID, reg.DeviceID)
			return nil
		},
	}
	cmd.Flags().IntVar(&oneTime, "one-time-keys", 20, "number of one-time pre-keys to publish")
	return cmd
}

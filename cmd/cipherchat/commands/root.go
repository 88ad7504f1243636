package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cipherchat/internal/app"
)

var (
	passphrase string
	appCtx     *app.Wire
)

var errNoPassphrase = errors.New("passphrase required (-p or CIPHERCHAT_PASSPHRASE)")

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	passphrase, appCtx = "", nil

	root := &cobra.Command{
		Use:           "cipherchat",
		Short:         "End-to-end encrypted chat CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
				return err
			}
			log, err := app.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			if passphrase == "" {
				passphrase = os.Getenv(app.EnvPrefix + "_PASSPHRASE")
			}
			appCtx, err = app.NewWire(cmd.Context(), cfg, log)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appCtx != nil {
				appCtx.Close()
				_ = appCtx.Log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.String("home", "", "state dir (default ~/.cipherchat)")
	pf.String("relay", "", "relay base URL (default http://127.0.0.1:8080)")
	pf.String("username", "", "local account to act as")
	pf.String("database-url", "", "store sessions in Postgres at this DSN")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("config", "", "config file (yaml, toml or json)")
	pf.StringVarP(&passphrase, "passphrase", "p", "", "passphrase to protect keys")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		registerCmd(),
		infoCmd(),
		sendCmd(),
		recvCmd(),
		historyCmd(),
		chatsCmd(),
		chatCmd(),
		exportCmd(),
		importCmd(),
	)
	return root
}

// Execute runs the CLI with os.Args.
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		if appCtx != nil {
			appCtx.Log.Debug("command failed", zap.Error(err))
		}
	}
	return err
}

func requirePassphrase() error {
	if passphrase == "" {
		return errNoPassphrase
	}
	return nil
}

package app_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"cipherchat/internal/app"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("home", "", "")
	fs.String("relay", "", "")
	fs.String("username", "", "")
	fs.String("database-url", "", "")
	fs.String("log-level", "", "")
	fs.String("config", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := app.LoadConfig(newFlags(t, "--home", t.TempDir()))
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8080", cfg.RelayURL)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Empty(t, cfg.DatabaseURL)
}

func TestLoadConfig_Layering(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cipherchat.yaml")
	require.NoError(t, os.WriteFile(file, []byte("relay: http://file:1\nusername: fromfile\nlog_level: info\n"), 0o600))
	t.Setenv("CIPHERCHAT_USERNAME", "fromenv")

	cfg, err := app.LoadConfig(newFlags(t,
		"--home", dir,
		"--config", file,
		"--relay", "https://flag:2",
	))
	require.NoError(t, err)
	require.Equal(t, "https://flag:2", cfg.RelayURL)
	require.Equal(t, "fromenv", cfg.Username)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, dir, cfg.Home)
}

func TestLoadConfig_RejectsBadRelay(t *testing.T) {
	_, err := app.LoadConfig(newFlags(t, "--home", t.TempDir(), "--relay", "ftp://x"))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	log, err := app.NewLogger("debug")
	require.NoError(t, err)
	require.NotNil(t, log)

	_, err = app.NewLogger("chatty")
	require.Error(t, err)
}

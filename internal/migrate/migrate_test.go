package migrate_test

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"cipherchat/migrations"
)

func TestMigrations_AreGooseAnnotated(t *testing.T) {
	files, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		b, err := fs.ReadFile(migrations.FS, f)
		require.NoError(t, err)
		require.True(t, strings.Contains(string(b), "-- +goose Up"), f)
		require.True(t, strings.Contains(string(b), "-- +goose Down"), f)
	}
}

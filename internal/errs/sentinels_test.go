package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"cipherchat/internal/errs"
)

func TestDropped(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "stale", err: errs.ErrStaleMessage, want: true},
		{name: "wrapped decrypt", err: fmt.Errorf("receive: %w", errs.ErrDecryptionFailed), want: true},
		{name: "corrupt", err: fmt.Errorf("alice:bob: %w", errs.ErrCorruptState), want: true},
		{name: "conflict", err: errs.ErrSessionConflict, want: true},
		{name: "transport", err: errs.ErrTransport, want: false},
		{name: "io", err: errors.New("disk full"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, errs.Dropped(tt.err))
		})
	}
}

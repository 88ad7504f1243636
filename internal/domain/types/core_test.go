package types_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"cipherchat/internal/domain/types"
	"cipherchat/internal/errs"
)

func TestUsernameValidate(t *testing.T) {
	tests := []struct {
		name string
		u    types.Username
		ok   bool
	}{
		{name: "plain", u: "alice", ok: true},
		{name: "dotted", u: "alice.smith-2", ok: true},
		{name: "unicode", u: "zoë", ok: true},
		{name: "max length", u: types.Username(strings.Repeat("a", types.MaxUsernameLength)), ok: true},
		{name: "empty", u: ""},
		{name: "too long", u: types.Username(strings.Repeat("a", types.MaxUsernameLength+1))},
		{name: "colon", u: "alice:bob"},
		{name: "space", u: "alice bob"},
		{name: "newline", u: "alice\n"},
		{name: "nul", u: "al\x00ice"},
		{name: "invalid utf8", u: "al\xffice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.u.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errs.ErrInvalidUsername)
		})
	}
}

func TestSessionKeyFor(t *testing.T) {
	require.Equal(t, types.SessionKey("alice:bob"), types.SessionKeyFor("alice", "bob"))
}

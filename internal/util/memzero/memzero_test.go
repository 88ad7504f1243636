package memzero_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cipherchat/internal/util/memzero"
)

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3}
	memzero.Zero(b)
	require.Equal(t, []byte{0, 0, 0}, b)
	memzero.Zero(nil)
}

func TestAll(t *testing.T) {
	a, b := []byte{1}, []byte{2, 3}
	memzero.All(a, nil, b)
	require.Equal(t, []byte{0}, a)
	require.Equal(t, []byte{0, 0}, b)
}

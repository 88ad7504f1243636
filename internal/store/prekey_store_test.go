package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cipherchat/internal/domain"
	"cipherchat/internal/store"
)

func TestPrekeyFileStore_OneTimeLifecycle(t *testing.T) {
	s := store.NewPrekeyFileStore(t.TempDir())

	require.NoError(t, s.SaveOneTimePreKeys([]domain.OneTimePreKeyPair{
		{ID: "opk-2", Priv: domain.X25519Private{2}, Pub: domain.X25519Public{20}},
		{ID: "opk-1", Priv: domain.X25519Private{1}, Pub: domain.X25519Public{10}},
	}))

	pubs, err := s.ListOneTimePreKeyPublics()
	require.NoError(t, err)
	require.Equal(t, []domain.OneTimePreKeyPublic{
		{ID: "opk-1", Pub: domain.X25519Public{10}},
		{ID: "opk-2", Pub: domain.X25519Public{20}},
	}, pubs)

	// Lookup does not remove.
	priv, _, ok, err := s.LoadOneTimePreKey("opk-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.X25519Private{1}, priv)

	_, _, ok, err = s.ConsumeOneTimePreKey("opk-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, _, ok, err = s.LoadOneTimePreKey("opk-1")
	require.NoError(t, err)
	require.False(t, ok)
	_, _, ok, err = s.ConsumeOneTimePreKey("opk-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPrekeyFileStore_SignedPreKey(t *testing.T) {
	s := store.NewPrekeyFileStore(t.TempDir())

	_, ok, err := s.CurrentSignedPreKeyID()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SaveSignedPreKey("spk-1", domain.X25519Private{1}, domain.X25519Public{2}, []byte("sig")))
	require.NoError(t, s.SetCurrentSignedPreKeyID("spk-1"))

	id, ok, err := s.CurrentSignedPreKeyID()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.SignedPreKeyID("spk-1"), id)

	priv, pub, sig, ok, err := s.LoadSignedPreKey(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.X25519Private{1}, priv)
	require.Equal(t, domain.X25519Public{2}, pub)
	require.Equal(t, []byte("sig"), sig)
}

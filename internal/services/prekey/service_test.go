package prekey_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
	"cipherchat/internal/protocol/x3dh"
	"cipherchat/internal/services/prekey"
	"cipherchat/internal/store"
)

type fixedIdentity struct{ id domain.Identity }

func (f fixedIdentity) SaveIdentity(string, domain.Identity) error { return nil }
func (f fixedIdentity) LoadIdentity(string) (domain.Identity, error) { return f.id, nil }

func TestBundle_VerifiesAndListsOneTimeKeys(t *testing.T) {
	id, err := crypto.NewIdentity()
	require.NoError(t, err)
	ps := store.NewPrekeyFileStore(t.TempDir())
	svc := prekey.New(fixedIdentity{id: id}, ps, nil)

	_, err = svc.LoadPreKeyBundle("pass")
	require.ErrorIs(t, err, prekey.ErrNoSignedPreKey)

	spk, opks, err := svc.GenerateAndStorePreKeys("pass", 3)
	require.NoError(t, err)
	require.Len(t, opks, 3)

	bundle, err := svc.LoadPreKeyBundle("pass")
	require.NoError(t, err)
	require.Equal(t, spk, bundle.SignedPreKey)
	require.Equal(t, id.XPub, bundle.IdentityKey)
	require.Len(t, bundle.OneTimePreKeys, 3)
	require.NoError(t, x3dh.VerifyBundle(bundle))
}

package relay_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
	"cipherchat/internal/relay"
	"cipherchat/internal/relay/memrelay"
)

func newAccount(t *testing.T, name domain.Username, opks int) (domain.Credentials, domain.PreKeyBundle) {
	t.Helper()
	id, err := crypto.NewIdentity()
	require.NoError(t, err)
	_, spk, err := crypto.GenerateX25519()
	require.NoError(t, err)
	bundle := domain.PreKeyBundle{
		IdentityKey:           id.XPub,
		SigningKey:            id.EdPub,
		SignedPreKeyID:        "spk-1",
		SignedPreKey:          spk,
		SignedPreKeySignature: crypto.SignEd25519(id.EdPriv, spk.Slice()),
	}
	for i := 0; i < opks; i++ {
		_, pub, err := crypto.GenerateX25519()
		require.NoError(t, err)
		bundle.OneTimePreKeys = append(bundle.OneTimePreKeys, domain.OneTimePreKeyPublic{
			ID:  domain.OneTimePreKeyID("opk-" + string(rune('a'+i))),
			Pub: pub,
		})
	}
	return domain.LocalAccount{Username: name, Identity: id}.Credentials(), bundle
}

func newRelay(t *testing.T) (*relay.HTTP, *memrelay.Server) {
	t.Helper()
	srv := memrelay.New(zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return relay.NewHTTP(ts.URL, zap.NewNop()), srv
}

func TestClient_RegisterSearchBundle(t *testing.T) {
	ctx := context.Background()
	c, _ := newRelay(t)

	bobCred, bobBundle := newAccount(t, "bob", 2)
	reg, err := c.Register(ctx, bobCred, bobBundle)
	require.NoError(t, err)
	require.NotZero(t, reg.UserID)

	_, err = c.Register(ctx, bobCred, bobBundle)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	users, err := c.SearchUsers(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, reg.UserID, users[0].ID)
	require.Equal(t, reg.DeviceID, users[0].Devices[0].ID)

	// Every fetch pops one one-time pre-key until the pool is empty.
	for _, want := range []domain.OneTimePreKeyID{"opk-a", "opk-b", ""} {
		bundles, err := c.FetchKeyBundle(ctx, reg.UserID)
		require.NoError(t, err)
		require.Len(t, bundles, 1)
		got := bundles[0].KeyBundle
		require.Equal(t, bobBundle.IdentityKey, got.IdentityKey)
		if want == "" {
			require.Empty(t, got.OneTimePreKeys)
			continue
		}
		require.Len(t, got.OneTimePreKeys, 1)
		require.Equal(t, want, got.OneTimePreKeys[0].ID)
	}

	_, err = c.FetchKeyBundle(ctx, 999)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestClient_SendFetchAck(t *testing.T) {
	ctx := context.Background()
	c, srv := newRelay(t)

	aliceCred, aliceBundle := newAccount(t, "alice", 0)
	bobCred, bobBundle := newAccount(t, "bob", 0)
	_, err := c.Register(ctx, aliceCred, aliceBundle)
	require.NoError(t, err)
	bobReg, err := c.Register(ctx, bobCred, bobBundle)
	require.NoError(t, err)

	for _, body := range []string{"one", "two"} {
		require.NoError(t, c.SendMessage(ctx, aliceCred, domain.OutboundEnvelope{
			RecipientDeviceID: bobReg.DeviceID,
			Ciphertext:        []byte(body),
			Header:            []byte("h"),
		}))
	}
	require.Equal(t, 2, srv.Pending("bob"))

	envs, err := c.FetchMessages(ctx, bobCred)
	require.NoError(t, err)
	require.Len(t, envs, 2)
	require.Equal(t, domain.Username("alice"), envs[0].Sender)
	require.Equal(t, []byte("one"), envs[0].Ciphertext)
	require.Equal(t, []byte("two"), envs[1].Ciphertext)

	require.NoError(t, c.AckMessages(ctx, bobCred, []string{envs[0].ID}))
	envs, err = c.FetchMessages(ctx, bobCred)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	require.Equal(t, []byte("two"), envs[0].Ciphertext)

	err = c.SendMessage(ctx, aliceCred, domain.OutboundEnvelope{RecipientDeviceID: 4242})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRegister_RejectsInvalidUsernames(t *testing.T) {
	c, _ := newRelay(t)
	cred, bundle := newAccount(t, "alice:bob", 0)
	_, err := c.Register(context.Background(), cred, bundle)
	require.ErrorIs(t, err, errs.ErrInvalidUsername)

	ts := httptest.NewServer(memrelay.New(zap.NewNop()).Handler())
	t.Cleanup(ts.Close)
	for _, name := range []string{"", "alice:bob", "al ice"} {
		body := `{"username":"` + name + `","key_bundle":{}}`
		resp, err := http.Post(ts.URL+"/account/register", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "%q", name)
	}
}

func TestClient_UnknownIdentityUnauthorized(t *testing.T) {
	c, _ := newRelay(t)
	stranger, _ := newAccount(t, "mallory", 0)

	_, err := c.FetchMessages(context.Background(), stranger)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestClient_TransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()
	c := relay.NewHTTP(ts.URL, nil)

	_, err := c.SearchUsers(context.Background(), "bob")
	require.ErrorIs(t, err, errs.ErrTransport)
}

func TestToken_ReplayRejected(t *testing.T) {
	srv := memrelay.New(nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	ctx := context.Background()

	cred, bundle := newAccount(t, "alice", 0)
	_, err := relay.NewHTTP(ts.URL, nil).Register(ctx, cred, bundle)
	require.NoError(t, err)

	token, err := relay.SignToken(cred, time.Now())
	require.NoError(t, err)
	pub, err := cred.PublicKey.MarshalText()
	require.NoError(t, err)
	fetch := func() int {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/message/fetch", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(relay.HeaderIdentity, string(pub))
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	require.Equal(t, http.StatusOK, fetch())
	require.Equal(t, http.StatusUnauthorized, fetch())
}

func TestVerifyToken(t *testing.T) {
	cred, _ := newAccount(t, "alice", 0)
	now := time.Now()
	token, err := relay.SignToken(cred, now)
	require.NoError(t, err)

	claims, err := relay.VerifyToken(token, cred.PublicKey, now)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Subject)
	require.NotEmpty(t, claims.ID)

	_, err = relay.VerifyToken(token, cred.PublicKey, now.Add(2*relay.TokenTTL))
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	other, _ := newAccount(t, "bob", 0)
	_, err = relay.VerifyToken(token, other.PublicKey, now)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

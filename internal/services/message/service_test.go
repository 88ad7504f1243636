package message_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
	"cipherchat/internal/protocol/ratchet"
	"cipherchat/internal/protocol/wire"
	"cipherchat/internal/relay"
	"cipherchat/internal/relay/memrelay"
	"cipherchat/internal/services/message"
	"cipherchat/internal/services/peer"
	"cipherchat/internal/services/prekey"
	"cipherchat/internal/services/session"
	"cipherchat/internal/store"
)

type memIdentity struct{ id domain.Identity }

func (m memIdentity) SaveIdentity(string, domain.Identity) error { return nil }
func (m memIdentity) LoadIdentity(string) (domain.Identity, error) { return m.id, nil }

type client struct {
	acct     domain.LocalAccount
	svc      *message.Service
	sessions *store.SessionFileStore
	prekeys  *store.PrekeyFileStore
	history  *store.HistoryFileStore
}

type harness struct {
	t     *testing.T
	srv   *memrelay.Server
	ts    *httptest.Server
	relay *relay.HTTP
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := memrelay.New(zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{t: t, srv: srv, ts: ts, relay: relay.NewHTTP(ts.URL, zap.NewNop())}
}

// open builds a client for id without registering it.
func (h *harness) open(name domain.Username, id domain.Identity) *client {
	h.t.Helper()
	dir := h.t.TempDir()
	c := &client{
		acct:     domain.LocalAccount{Username: name, Identity: id},
		sessions: store.NewSessionFileStore(dir),
		prekeys:  store.NewPrekeyFileStore(dir),
		history:  store.NewHistoryFileStore(dir),
	}
	peers := peer.New(h.relay, store.NewPeerFileStore(dir), nil)
	sessions := session.New(c.sessions, c.prekeys, h.relay, nil)
	c.svc = message.New(peers, sessions, c.sessions, h.relay, c.history, nil)
	return c
}

func (h *harness) register(name domain.Username) *client {
	h.t.Helper()
	id, err := crypto.NewIdentity()
	require.NoError(h.t, err)
	c := h.open(name, id)

	pk := prekey.New(memIdentity{id: id}, c.prekeys, nil)
	_, _, err = pk.GenerateAndStorePreKeys("", 3)
	require.NoError(h.t, err)
	bundle, err := pk.LoadPreKeyBundle("")
	require.NoError(h.t, err)
	_, err = h.relay.Register(context.Background(), c.acct.Credentials(), bundle)
	require.NoError(h.t, err)
	return c
}

// queued returns the raw envelopes waiting for c without acknowledging them.
func (h *harness) queued(c *client) []domain.InboundEnvelope {
	h.t.Helper()
	envs, err := h.relay.FetchMessages(context.Background(), c.acct.Credentials())
	require.NoError(h.t, err)
	return envs
}

// drainOneTimeKeys fetches c's bundle until the relay has no one-time
// pre-keys left to hand out.
func (h *harness) drainOneTimeKeys(c *client) {
	h.t.Helper()
	ctx := context.Background()
	users, err := h.relay.SearchUsers(ctx, c.acct.Username)
	require.NoError(h.t, err)
	require.Len(h.t, users, 1)
	for {
		bundles, err := h.relay.FetchKeyBundle(ctx, users[0].ID)
		require.NoError(h.t, err)
		require.Len(h.t, bundles, 1)
		if len(bundles[0].KeyBundle.OneTimePreKeys) == 0 {
			return
		}
	}
}

// roundTrip has b answer a once and a answer back, stepping both ratchets.
func roundTrip(t *testing.T, a, b *client, tag string) {
	t.Helper()
	b.send(t, a, "b"+tag)
	require.Equal(t, []string{"b" + tag}, texts(a.fetch(t).Messages))
	a.send(t, b, "a"+tag)
	require.Equal(t, []string{"a" + tag}, texts(b.fetch(t).Messages))
}

func (c *client) send(t *testing.T, to *client, text string) {
	t.Helper()
	require.NoError(t, c.svc.Send(context.Background(), c.acct, to.acct.Username, []byte(text)))
}

func (c *client) fetch(t *testing.T) domain.FetchResult {
	t.Helper()
	res, err := c.svc.Fetch(context.Background(), c.acct)
	require.NoError(t, err)
	return res
}

func (c *client) session(t *testing.T, peer *client) domain.SessionRecord {
	t.Helper()
	rec, err := c.sessions.LoadSession(context.Background(), c.acct.Username, peer.acct.Username)
	require.NoError(t, err)
	return rec
}

func texts(msgs []domain.DecryptedMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, string(m.Plaintext))
	}
	return out
}

func TestAliceBob_EndToEnd(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.register("alice"), h.register("bob")

	before, err := bob.prekeys.ListOneTimePreKeyPublics()
	require.NoError(t, err)

	alice.send(t, bob, "hi")
	require.Equal(t, domain.RoleInitiator, alice.session(t, bob).Role)
	require.Nil(t, alice.session(t, bob).PendingHandshake)

	res := bob.fetch(t)
	require.Equal(t, []string{"hi"}, texts(res.Messages))
	require.Empty(t, res.Failures)
	require.Equal(t, 1, res.Acked)
	require.Zero(t, h.srv.Pending("bob"))

	rec := bob.session(t, alice)
	require.Equal(t, domain.RoleResponder, rec.Role)
	require.True(t, rec.Confirmed)
	require.Equal(t, alice.acct.Identity.XPub, rec.PeerIdentityKey)

	after, err := bob.prekeys.ListOneTimePreKeyPublics()
	require.NoError(t, err)
	require.Len(t, after, len(before)-1)

	bob.send(t, alice, "hello")
	res = alice.fetch(t)
	require.Equal(t, []string{"hello"}, texts(res.Messages))
	require.True(t, alice.session(t, bob).Confirmed)

	res = alice.fetch(t)
	require.Empty(t, res.Messages)
	require.Zero(t, res.Acked)

	hist, err := alice.history.ListMessages(context.Background(), "alice", "bob", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.True(t, hist[0].Outgoing)
	require.Equal(t, "hello", hist[1].Content)
}

func TestReceive_OutOfOrderAndDuplicate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice, bob := h.register("alice"), h.register("bob")

	alice.send(t, bob, "setup")
	bob.fetch(t)

	for i := 0; i < 3; i++ {
		alice.send(t, bob, fmt.Sprintf("m%d", i))
	}
	envs := h.queued(bob)
	require.Len(t, envs, 3)

	for _, i := range []int{2, 0, 1} {
		msg, err := bob.svc.Receive(ctx, bob.acct, envs[i])
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("m%d", i), string(msg.Plaintext))
	}
	require.Empty(t, bob.session(t, alice).State.SkippedKeys)

	before := bob.session(t, alice)
	for _, env := range envs {
		_, err := bob.svc.Receive(ctx, bob.acct, env)
		require.ErrorIs(t, err, errs.ErrStaleMessage)
	}
	require.Equal(t, before, bob.session(t, alice))

	res := bob.fetch(t)
	require.Empty(t, res.Messages)
	require.Equal(t, 3, res.Stale)
	require.Zero(t, h.srv.Pending("bob"))
}

func TestReceive_LostMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice, bob := h.register("alice"), h.register("bob")

	alice.send(t, bob, "setup")
	bob.fetch(t)
	for i := 0; i < 3; i++ {
		alice.send(t, bob, fmt.Sprintf("m%d", i))
	}
	envs := h.queued(bob)

	for _, i := range []int{0, 2} {
		msg, err := bob.svc.Receive(ctx, bob.acct, envs[i])
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("m%d", i), string(msg.Plaintext))
	}

	_, lost, err := wire.DecodeHeader(envs[1].Header)
	require.NoError(t, err)
	st := bob.session(t, alice).State
	require.True(t, ratchet.HasSkipped(st, lost.DiffieHellmanPublicKey, lost.MessageIndex))
	require.Len(t, st.SkippedKeys, 1)
}

func TestReceive_TamperedCiphertextLeavesState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice, bob := h.register("alice"), h.register("bob")

	alice.send(t, bob, "setup")
	bob.fetch(t)
	alice.send(t, bob, "secret")
	env := h.queued(bob)[0]

	before := bob.session(t, alice)
	forged := env
	forged.Ciphertext = bytes.Clone(env.Ciphertext)
	forged.Ciphertext[0] ^= 0xff
	_, err := bob.svc.Receive(ctx, bob.acct, forged)
	require.ErrorIs(t, err, errs.ErrDecryptionFailed)
	require.Equal(t, before, bob.session(t, alice))

	msg, err := bob.svc.Receive(ctx, bob.acct, env)
	require.NoError(t, err)
	require.Equal(t, "secret", string(msg.Plaintext))
}

func TestReceive_MissingHandshakeIsDropped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice, bob := h.register("alice"), h.register("bob")

	alice.send(t, bob, "first")
	alice.send(t, bob, "second")
	envs := h.queued(bob)
	require.Len(t, envs, 2)

	_, err := bob.svc.Receive(ctx, bob.acct, envs[1])
	require.ErrorIs(t, err, errs.ErrMissingHandshake)

	_, err = bob.svc.Receive(ctx, bob.acct, domain.InboundEnvelope{ID: "x", Sender: "alice", Header: []byte("short")})
	require.ErrorIs(t, err, errs.ErrInvalidEnvelope)

	res := bob.fetch(t)
	require.Equal(t, []string{"first", "second"}, texts(res.Messages))
}

func TestFetch_DropsProtocolViolationsAndKeepsGoing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice, bob, carol := h.register("alice"), h.register("bob"), h.register("carol")

	users, err := h.relay.SearchUsers(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, users, 1)

	alice.send(t, bob, "one")
	require.NoError(t, h.relay.SendMessage(ctx, carol.acct.Credentials(), domain.OutboundEnvelope{
		RecipientDeviceID: users[0].Devices[0].ID,
		Ciphertext:        []byte("junk"),
		Header:            []byte("junk"),
	}))
	carol.send(t, bob, "from carol")
	alice.send(t, bob, "two")

	res := bob.fetch(t)
	require.Equal(t, []string{"one", "from carol", "two"}, texts(res.Messages))
	require.Len(t, res.Failures, 1)
	require.True(t, res.Failures[0].Dropped)
	require.Equal(t, domain.Username("carol"), res.Failures[0].Sender)
	require.ErrorIs(t, res.Failures[0].Err, errs.ErrInvalidEnvelope)
	require.Equal(t, 4, res.Acked)
	require.Zero(t, h.srv.Pending("bob"))
}

func TestSend_ConcurrentFirstMessagesShareOneSession(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.register("alice"), h.register("bob")

	const n = 8
	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errCh <- alice.svc.Send(context.Background(), alice.acct, "bob", []byte(fmt.Sprintf("m%d", i)))
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	withHandshake := 0
	for _, env := range h.queued(bob) {
		_, hdr, err := wire.DecodeHeader(env.Header)
		require.NoError(t, err)
		if hdr.Handshake != nil {
			withHandshake++
		}
	}
	require.Equal(t, 1, withHandshake)

	res := bob.fetch(t)
	require.Len(t, res.Messages, n)
	require.Empty(t, res.Failures)
}

func TestSimultaneousInitiation_LowerIdentityWins(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.register("alice"), h.register("bob")

	alice.send(t, bob, "from alice")
	bob.send(t, alice, "from bob")

	winner, loser := alice, bob
	if bytes.Compare(bob.acct.Identity.XPub.Slice(), alice.acct.Identity.XPub.Slice()) < 0 {
		winner, loser = bob, alice
	}
	losing := h.queued(winner)
	require.Len(t, losing, 1)

	res := winner.fetch(t)
	require.Empty(t, res.Messages)
	require.Len(t, res.Failures, 1)
	require.ErrorIs(t, res.Failures[0].Err, errs.ErrSessionConflict)
	require.True(t, res.Failures[0].Dropped)

	res = loser.fetch(t)
	require.Equal(t, []string{"from " + winner.acct.Username.String()}, texts(res.Messages))
	require.Equal(t, domain.RoleResponder, loser.session(t, winner).Role)

	loser.send(t, winner, "ack")
	res = winner.fetch(t)
	require.Equal(t, []string{"ack"}, texts(res.Messages))

	winner.send(t, loser, "again")
	res = loser.fetch(t)
	require.Equal(t, []string{"again"}, texts(res.Messages))
	require.Equal(t, domain.RoleInitiator, winner.session(t, loser).Role)

	// The refused handshake stays refused once the session is confirmed.
	before := winner.session(t, loser)
	_, err := winner.svc.Receive(context.Background(), winner.acct, losing[0])
	require.ErrorIs(t, err, errs.ErrStaleMessage)
	require.Equal(t, before, winner.session(t, loser))
}

func TestPeerReset_ReplacesConfirmedSession(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.register("alice"), h.register("bob")

	alice.send(t, bob, "hi")
	bob.fetch(t)
	bob.send(t, alice, "hello")
	alice.fetch(t)

	// Alice loses her local sessions but keeps her identity.
	fresh := h.open("alice", alice.acct.Identity)
	fresh.send(t, bob, "i'm back")
	reset := h.queued(bob)
	require.Len(t, reset, 1)

	res := bob.fetch(t)
	require.Equal(t, []string{"i'm back"}, texts(res.Messages))

	bob.send(t, fresh, "welcome")
	res = fresh.fetch(t)
	require.Equal(t, []string{"welcome"}, texts(res.Messages))

	_, err := bob.svc.Receive(context.Background(), bob.acct, reset[0])
	require.ErrorIs(t, err, errs.ErrStaleMessage)
	roundTrip(t, fresh, bob, "1")
}

func TestHandshake_IdentityMismatchIsRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice, bob, eve := h.register("alice"), h.register("bob"), h.register("eve")

	alice.send(t, bob, "hi")
	bob.fetch(t)

	eve.send(t, bob, "it's alice, honest")
	env := h.queued(bob)[0]
	env.Sender = "alice"

	before := bob.session(t, alice)
	_, err := bob.svc.Receive(ctx, bob.acct, env)
	require.ErrorIs(t, err, errs.ErrIdentityMismatch)
	require.Equal(t, before, bob.session(t, alice))
}

func TestSend_TransportFailureKeepsHandshakePending(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.register("alice"), h.register("bob")

	// Resolve and fetch a bundle while the relay is up, then take it down.
	peers := peer.New(h.relay, store.NewPeerFileStore(t.TempDir()), nil)
	dev, err := peers.Resolve(context.Background(), "bob")
	require.NoError(t, err)

	down := relay.NewHTTP("http://127.0.0.1:1", zap.NewNop())
	sessions := session.New(alice.sessions, alice.prekeys, h.relay, nil)
	offline := message.New(staticPeers{dev: dev}, sessions, alice.sessions, down, alice.history, nil)

	err = offline.Send(context.Background(), alice.acct, "bob", []byte("lost"))
	require.ErrorIs(t, err, errs.ErrSendFailed)
	require.ErrorIs(t, err, errs.ErrTransport)

	rec := alice.session(t, bob)
	require.NotNil(t, rec.PendingHandshake)
	require.Equal(t, uint32(1), rec.State.SendMessageIndex)

	alice.send(t, bob, "retry")
	require.Nil(t, alice.session(t, bob).PendingHandshake)

	res := bob.fetch(t)
	require.Equal(t, []string{"retry"}, texts(res.Messages))
}

type staticPeers struct{ dev domain.PeerDevice }

func (s staticPeers) Resolve(context.Context, domain.Username) (domain.PeerDevice, error) {
	return s.dev, nil
}

func (s staticPeers) Cached(context.Context, domain.Username) (domain.PeerDevice, error) {
	return s.dev, nil
}

func TestEstablish_WithoutOneTimePreKey(t *testing.T) {
	h := newHarness(t)
	alice, bob := h.register("alice"), h.register("bob")
	h.drainOneTimeKeys(bob)

	before, err := bob.prekeys.ListOneTimePreKeyPublics()
	require.NoError(t, err)

	alice.send(t, bob, "hi")
	envs := h.queued(bob)
	require.Len(t, envs, 1)
	_, hdr, err := wire.DecodeHeader(envs[0].Header)
	require.NoError(t, err)
	require.NotNil(t, hdr.Handshake)
	require.Empty(t, hdr.Handshake.OneTimePreKeyID)

	res := bob.fetch(t)
	require.Equal(t, []string{"hi"}, texts(res.Messages))
	require.Empty(t, res.Failures)

	after, err := bob.prekeys.ListOneTimePreKeyPublics()
	require.NoError(t, err)
	require.Equal(t, before, after)

	roundTrip(t, alice, bob, "1")
}

func TestReceive_ReplayedFirstEnvelopeAfterRatchetIsStale(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice, bob := h.register("alice"), h.register("bob")
	h.drainOneTimeKeys(bob)

	alice.send(t, bob, "hi")
	first := h.queued(bob)[0]
	require.Equal(t, []string{"hi"}, texts(bob.fetch(t).Messages))

	for _, rounds := range []int{1, 2} {
		roundTrip(t, alice, bob, fmt.Sprint(rounds))

		before := bob.session(t, alice)
		_, err := bob.svc.Receive(ctx, bob.acct, first)
		require.ErrorIs(t, err, errs.ErrStaleMessage, "after %d round trips", rounds)
		require.Equal(t, before, bob.session(t, alice))
	}

	alice.send(t, bob, "a4")
	res := bob.fetch(t)
	require.Equal(t, []string{"a4"}, texts(res.Messages))
	require.Empty(t, res.Failures)
}

func TestReceive_ReplayedHandshakeSurvivesSessionReplacement(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice, bob := h.register("alice"), h.register("bob")
	h.drainOneTimeKeys(bob)

	alice.send(t, bob, "hi")
	first := h.queued(bob)[0]
	bob.fetch(t)
	roundTrip(t, alice, bob, "1")

	fresh := h.open("alice", alice.acct.Identity)
	fresh.send(t, bob, "again")
	require.Equal(t, []string{"again"}, texts(bob.fetch(t).Messages))
	roundTrip(t, fresh, bob, "2")

	rec := bob.session(t, alice)
	require.Len(t, rec.HandshakeKeys, 2)
	_, err := bob.svc.Receive(ctx, bob.acct, first)
	require.ErrorIs(t, err, errs.ErrStaleMessage)
	require.Equal(t, rec, bob.session(t, alice))
}

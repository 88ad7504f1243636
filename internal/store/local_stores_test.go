package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
	"cipherchat/internal/store"
)

func TestPeerFileStore_Overwrites(t *testing.T) {
	ctx := context.Background()
	s := store.NewPeerFileStore(t.TempDir())

	_, err := s.LoadPeerDevice(ctx, "bob")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, s.SavePeerDevice(ctx, domain.PeerDevice{Username: "bob", UserID: 1, DeviceID: 10}))
	require.NoError(t, s.SavePeerDevice(ctx, domain.PeerDevice{Username: "bob", UserID: 1, DeviceID: 11}))

	got, err := s.LoadPeerDevice(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.DeviceID(11), got.DeviceID)
}

func TestHistoryFileStore(t *testing.T) {
	ctx := context.Background()
	s := store.NewHistoryFileStore(t.TempDir())
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, e := range []domain.HistoryEntry{
		{Owner: "alice", Peer: "bob", Sender: "alice", Recipient: "bob", Content: "hi", Outgoing: true, Timestamp: t0},
		{Owner: "alice", Peer: "bob", Sender: "bob", Recipient: "alice", Content: "hey", Timestamp: t0.Add(time.Minute)},
		{Owner: "alice", Peer: "carol", Sender: "carol", Recipient: "alice", Content: "yo", Timestamp: t0.Add(2 * time.Minute)},
		{Owner: "dave", Peer: "bob", Sender: "dave", Recipient: "bob", Content: "other owner", Timestamp: t0},
	} {
		require.NoError(t, s.AppendMessage(ctx, e), "entry %d", i)
	}

	msgs, err := s.ListMessages(ctx, "alice", "bob", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "hi", msgs[0].Content)

	msgs, err = s.ListMessages(ctx, "alice", "bob", 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "hey", msgs[0].Content)

	convs, err := s.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	require.Equal(t, domain.Username("carol"), convs[0].Peer)
	require.Equal(t, 2, convs[1].Count)
	require.Equal(t, 1, convs[1].Unread)

	n, err := s.MarkRead(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = s.MarkRead(ctx, "alice", "bob")
	require.NoError(t, err)
	require.Zero(t, n)

	convs, err = s.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, convs[1].Unread)
	require.Equal(t, 1, convs[0].Unread)
}

func TestAccountFileStore(t *testing.T) {
	s := store.NewAccountFileStore(t.TempDir())
	p := domain.AccountProfile{
		ServerURL: "http://relay",
		Username:  "alice",
		UserID:    4,
		DeviceID:  7,
		CreatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveAccountProfile(p))

	got, ok, err := s.LoadAccountProfile("http://relay", "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, p, got)

	_, ok, err = s.LoadAccountProfile("http://other", "alice")
	require.NoError(t, err)
	require.False(t, ok)

	all, err := s.ListAccountProfiles()
	require.NoError(t, err)
	require.Len(t, all, 1)

	older := p
	older.ServerURL = "http://other"
	older.CreatedAt = p.CreatedAt.Add(-time.Hour)
	require.NoError(t, s.SaveAccountProfile(older))

	p.DeviceID = 8
	require.NoError(t, s.SaveAccountProfile(p))

	all, err = s.ListAccountProfiles()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "http://other", all[0].ServerURL)
	require.Equal(t, domain.DeviceID(8), all[1].DeviceID)
}

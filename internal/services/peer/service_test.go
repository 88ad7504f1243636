package peer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
	"cipherchat/internal/services/peer"
	"cipherchat/internal/store"
)

type searchOnly struct {
	domain.RelayClient
	users []domain.DirectoryUser
}

func (s *searchOnly) SearchUsers(context.Context, domain.Username) ([]domain.DirectoryUser, error) {
	return s.users, nil
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	relay := &searchOnly{users: []domain.DirectoryUser{
		{ID: 7, Username: "bobby", Devices: []domain.DirectoryDevice{{ID: 1}}},
		{ID: 8, Username: "bob", Devices: []domain.DirectoryDevice{{ID: 21}, {ID: 22}}},
		{ID: 9, Username: "nodev"},
	}}
	cache := store.NewPeerFileStore(t.TempDir())
	svc := peer.New(relay, cache, nil)

	dev, err := svc.Resolve(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.UserID(8), dev.UserID)
	require.Equal(t, domain.DeviceID(21), dev.DeviceID)

	cached, err := svc.Cached(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, dev.DeviceID, cached.DeviceID)

	_, err = svc.Resolve(ctx, "bo")
	require.ErrorIs(t, err, errs.ErrPeerNotFound)

	_, err = svc.Resolve(ctx, "nodev")
	require.ErrorIs(t, err, errs.ErrNoDevicesForPeer)

	_, err = svc.Resolve(ctx, "bob:x")
	require.ErrorIs(t, err, errs.ErrInvalidUsername)

	_, err = svc.Cached(ctx, "nodev")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestResolve_OverwritesCache(t *testing.T) {
	ctx := context.Background()
	relay := &searchOnly{users: []domain.DirectoryUser{
		{ID: 8, Username: "bob", Devices: []domain.DirectoryDevice{{ID: 21}}},
	}}
	svc := peer.New(relay, store.NewPeerFileStore(t.TempDir()), nil)

	_, err := svc.Resolve(ctx, "bob")
	require.NoError(t, err)

	relay.users[0].Devices = []domain.DirectoryDevice{{ID: 30}}
	_, err = svc.Resolve(ctx, "bob")
	require.NoError(t, err)

	cached, err := svc.Cached(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, domain.DeviceID(30), cached.DeviceID)
}

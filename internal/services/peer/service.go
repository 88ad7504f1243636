package peer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
)

// Service implements domain.PeerDirectory.
//
// Only the first advertised device of a user is addressed.
type Service struct {
	relay domain.RelayClient
	cache domain.PeerDeviceStore
	log   *zap.Logger
	now   func() time.Time
}

// New returns a directory over the relay search API and a local cache.
func New(relay domain.RelayClient, cache domain.PeerDeviceStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{relay: relay, cache: cache, log: log, now: time.Now}
}

// Resolve looks username up on the relay and overwrites the cached entry.
func (s *Service) Resolve(ctx context.Context, username domain.Username) (domain.PeerDevice, error) {
	if err := username.Validate(); err != nil {
		return domain.PeerDevice{}, err
	}
	users, err := s.relay.SearchUsers(ctx, username)
	if err != nil {
		return domain.PeerDevice{}, fmt.Errorf("search %s: %w", username, err)
	}

	var match *domain.DirectoryUser
	for i := range users {
		if users[i].Username == username {
			match = &users[i]
			break
		}
	}
	if match == nil {
		return domain.PeerDevice{}, fmt.Errorf("%s: %w", username, errs.ErrPeerNotFound)
	}
	if len(match.Devices) == 0 {
		return domain.PeerDevice{}, fmt.Errorf("%s: %w", username, errs.ErrNoDevicesForPeer)
	}

	dev := domain.PeerDevice{
		Username:  username,
		UserID:    match.ID,
		DeviceID:  match.Devices[0].ID,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.cache.SavePeerDevice(ctx, dev); err != nil {
		return domain.PeerDevice{}, fmt.Errorf("cache peer %s: %w", username, err)
	}
	s.log.Debug("peer resolved",
		zap.String("peer", username.String()),
		zap.Uint64("user_id", uint64(dev.UserID)),
		zap.Uint64("device_id", uint64(dev.DeviceID)),
	)
	return dev, nil
}

// Cached returns the last resolved device for username.
func (s *Service) Cached(ctx context.Context, username domain.Username) (domain.PeerDevice, error) {
	return s.cache.LoadPeerDevice(ctx, username)
}

var _ domain.PeerDirectory = (*Service)(nil)

package store

import (
	"context"
	"path/filepath"
	"sync"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
)

const peersFile = "peers.json"

// PeerFileStore caches resolved peer devices on disk.
type PeerFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewPeerFileStore returns a PeerFileStore rooted at dir.
func NewPeerFileStore(dir string) *PeerFileStore {
	return &PeerFileStore{dir: dir}
}

// SavePeerDevice replaces the cached entry for device.Username.
func (s *PeerFileStore) SavePeerDevice(ctx context.Context, device domain.PeerDevice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, peersFile)
	peers := map[domain.Username]domain.PeerDevice{}
	if err := readJSON(path, &peers); err != nil {
		return err
	}
	peers[device.Username] = device
	return writeJSON(path, peers, 0o600)
}

// LoadPeerDevice returns the cached entry or errs.ErrNotFound.
func (s *PeerFileStore) LoadPeerDevice(
	ctx context.Context,
	username domain.Username,
) (domain.PeerDevice, error) {
	if err := ctx.Err(); err != nil {
		return domain.PeerDevice{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	peers := map[domain.Username]domain.PeerDevice{}
	if err := readJSON(filepath.Join(s.dir, peersFile), &peers); err != nil {
		return domain.PeerDevice{}, err
	}
	dev, ok := peers[username]
	if !ok {
		return domain.PeerDevice{}, errs.ErrNotFound
	}
	return dev, nil
}

// Compile-time assertion that PeerFileStore implements domain.PeerDeviceStore.
var _ domain.PeerDeviceStore = (*PeerFileStore)(nil)

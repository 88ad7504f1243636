package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
)

// PeerRepo implements domain.PeerDeviceStore on the peer_devices table.
type PeerRepo struct{ db *DB }

// NewPeerRepo constructs a peer device repository.
func NewPeerRepo(db *DB) *PeerRepo { return &PeerRepo{db: db} }

// SavePeerDevice replaces the cached routing of device.Username.
func (r *PeerRepo) SavePeerDevice(ctx context.Context, device domain.PeerDevice) error {
	const q = `
INSERT INTO peer_devices (username, user_id, device_id, last_updated)
VALUES ($1, $2, $3, $4)
ON CONFLICT (username) DO UPDATE
SET user_id = EXCLUDED.user_id, device_id = EXCLUDED.device_id, last_updated = EXCLUDED.last_updated`
	_, err := r.db.Pool.Exec(ctx, q,
		device.Username.String(), int64(device.UserID), int64(device.DeviceID), device.UpdatedAt.UTC())
	return err
}

// LoadPeerDevice selects the cached routing of username.
func (r *PeerRepo) LoadPeerDevice(ctx context.Context, username domain.Username) (domain.PeerDevice, error) {
	const q = `
SELECT user_id, device_id, last_updated
FROM peer_devices WHERE username=$1`
	var (
		userID, deviceID int64
		updated          time.Time
	)
	if err := r.db.Pool.QueryRow(ctx, q, username.String()).Scan(&userID, &deviceID, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PeerDevice{}, errs.ErrNotFound
		}
		return domain.PeerDevice{}, err
	}
	return domain.PeerDevice{
		Username:  username,
		UserID:    domain.UserID(userID),
		DeviceID:  domain.DeviceID(deviceID),
		UpdatedAt: updated,
	}, nil
}

var _ domain.PeerDeviceStore = (*PeerRepo)(nil)

package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
	"cipherchat/internal/store"
)

// SessionRepo implements domain.SessionDirectory on the ratchet_sessions table.
type SessionRepo struct {
	db  *DB
	now func() time.Time
}

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db, now: time.Now} }

// LoadSession selects the blob for (owner, peer) and decodes it.
func (r *SessionRepo) LoadSession(
	ctx context.Context,
	owner domain.Username,
	peer domain.Username,
) (domain.SessionRecord, error) {
	const q = `
SELECT state_blob
FROM ratchet_sessions WHERE session_key=$1`
	key := domain.SessionKeyFor(owner, peer)
	var blob []byte
	if err := r.db.Pool.QueryRow(ctx, q, key.String()).Scan(&blob); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SessionRecord{}, errs.ErrNotFound
		}
		return domain.SessionRecord{}, fmt.Errorf("load session %s: %w", key, err)
	}
	return store.DecodeSession(key, blob)
}

// StoreSession upserts the row of rec; the last writer wins.
func (r *SessionRepo) StoreSession(ctx context.Context, rec domain.SessionRecord) error {
	const q = `
INSERT INTO ratchet_sessions (session_key, state_blob, last_updated)
VALUES ($1, $2, $3)
ON CONFLICT (session_key) DO UPDATE
SET state_blob = EXCLUDED.state_blob, last_updated = EXCLUDED.last_updated`
	blob, err := store.EncodeSession(rec)
	if err != nil {
		return err
	}
	if _, err := r.db.Pool.Exec(ctx, q, rec.Key().String(), blob, r.now().UTC()); err != nil {
		return fmt.Errorf("store session %s: %w", rec.Key(), err)
	}
	return nil
}

// LockSession holds a transaction-scoped advisory lock on the session key
// until unlock rolls the transaction back.
func (r *SessionRepo) LockSession(ctx context.Context, key domain.SessionKey) (func(), error) {
	const q = `SELECT pg_advisory_xact_lock(hashtext($1))`
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock session %s: %w", key, err)
	}
	if _, err := tx.Exec(ctx, q, key.String()); err != nil {
		_ = tx.Rollback(context.Background())
		return nil, fmt.Errorf("lock session %s: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() { _ = tx.Rollback(context.Background()) })
	}, nil
}

var _ domain.SessionDirectory = (*SessionRepo)(nil)

package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
)

const sessionsDir = "sessions"

// sessionRow mirrors the (session_key, state_blob, last_updated) schema of the
// SQL backend.
type sessionRow struct {
	SessionKey  domain.SessionKey `json:"session_key"`
	State       json.RawMessage   `json:"state"`
	LastUpdated time.Time         `json:"last_updated"`
}

// SessionFileStore persists one file per session under <dir>/sessions.
type SessionFileStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewSessionFileStore returns a SessionFileStore rooted at dir.
func NewSessionFileStore(dir string) *SessionFileStore {
	return &SessionFileStore{dir: dir, now: time.Now}
}

// LoadSession reads the session for (owner, peer).
func (s *SessionFileStore) LoadSession(
	ctx context.Context,
	owner domain.Username,
	peer domain.Username,
) (domain.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.SessionRecord{}, err
	}
	key := domain.SessionKeyFor(owner, peer)

	s.mu.Lock()
	b, err := readFile(s.path(key))
	s.mu.Unlock()
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("load session %s: %w", key, err)
	}
	if b == nil {
		return domain.SessionRecord{}, errs.ErrNotFound
	}

	var row sessionRow
	if err := json.Unmarshal(b, &row); err != nil {
		return domain.SessionRecord{}, corrupt(key, err.Error())
	}
	if row.SessionKey != key {
		return domain.SessionRecord{}, corrupt(key, "row belongs to "+row.SessionKey.String())
	}
	return DecodeSession(key, row.State)
}

// StoreSession overwrites the session file of rec.
func (s *SessionFileStore) StoreSession(ctx context.Context, rec domain.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := rec.Key()
	blob, err := EncodeSession(rec)
	if err != nil {
		return err
	}
	row := sessionRow{SessionKey: key, State: blob, LastUpdated: s.now().UTC()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeJSON(s.path(key), row, 0o600); err != nil {
		return fmt.Errorf("store session %s: %w", key, err)
	}
	return nil
}

// path hashes the key so usernames never reach the filesystem.
func (s *SessionFileStore) path(key domain.SessionKey) string {
	return filepath.Join(s.dir, sessionsDir, fileStem(key)+".json")
}

// lockPath is the flock target of key. Lock files are never removed.
func (s *SessionFileStore) lockPath(key domain.SessionKey) string {
	return filepath.Join(s.dir, sessionsDir, fileStem(key)+".lock")
}

func fileStem(key domain.SessionKey) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Compile-time assertion that SessionFileStore implements domain.SessionDirectory.
var _ domain.SessionDirectory = (*SessionFileStore)(nil)

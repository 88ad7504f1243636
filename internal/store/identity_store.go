package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
	"cipherchat/internal/util/memzero"
)

const idFilename = "identity.json.enc"

// IdentityFileStore keeps the local identity sealed under the account
// passphrase. The plaintext encoding is wiped after every seal and open.
type IdentityFileStore struct {
	path   string
	mu     sync.Mutex
	params scryptParams
}

func NewIdentityFileStore(dir string) *IdentityFileStore {
	return &IdentityFileStore{path: filepath.Join(dir, idFilename), params: defaultScryptParams()}
}

func (s *IdentityFileStore) SaveIdentity(passphrase string, id domain.Identity) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)

	ct, err := sealSecret(passphrase, raw, s.params)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFile(s.path, ct, 0o600)
}

// LoadIdentity opens the keystore. A missing keystore is errs.ErrNotFound;
// a wrong passphrase fails in openSecret.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.Identity, error) {
	s.mu.Lock()
	b, err := readFile(s.path)
	s.mu.Unlock()
	switch {
	case err != nil:
		return domain.Identity{}, err
	case b == nil:
		return domain.Identity{}, fmt.Errorf("identity: %w", errs.ErrNotFound)
	}

	pt, err := openSecret(passphrase, b)
	if err != nil {
		return domain.Identity{}, err
	}
	defer memzero.Zero(pt)

	var id domain.Identity
	if err := json.Unmarshal(pt, &id); err != nil {
		return domain.Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	return id, nil
}

var _ domain.IdentityStore = (*IdentityFileStore)(nil)

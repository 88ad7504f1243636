package store

import (
	"path/filepath"
	"slices"
	"sync"

	"cipherchat/internal/domain"
)

const accountsFile = "accounts.json"

// AccountFileStore persists the profiles registered on each relay. A profile
// is identified by (ServerURL, Username).
type AccountFileStore struct {
	path string
	mu   sync.Mutex
}

func NewAccountFileStore(dir string) *AccountFileStore {
	return &AccountFileStore{path: filepath.Join(dir, accountsFile)}
}

// readProfiles must be called with s.mu held.
func (s *AccountFileStore) readProfiles() ([]domain.AccountProfile, error) {
	var out []domain.AccountProfile
	if err := readJSON(s.path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sameAccount(serverURL string, username domain.Username) func(domain.AccountProfile) bool {
	return func(p domain.AccountProfile) bool {
		return p.ServerURL == serverURL && p.Username == username
	}
}

// SaveAccountProfile inserts profile or replaces the entry for the same relay
// and username. Profiles stay ordered by CreatedAt.
func (s *AccountFileStore) SaveAccountProfile(profile domain.AccountProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.readProfiles()
	if err != nil {
		return err
	}
	profiles = slices.DeleteFunc(profiles, sameAccount(profile.ServerURL, profile.Username))
	profiles = append(profiles, profile)
	slices.SortStableFunc(profiles, func(a, b domain.AccountProfile) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return writeJSON(s.path, profiles, 0o600)
}

func (s *AccountFileStore) LoadAccountProfile(
	serverURL string,
	username domain.Username,
) (domain.AccountProfile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.readProfiles()
	if err != nil {
		return domain.AccountProfile{}, false, err
	}
	i := slices.IndexFunc(profiles, sameAccount(serverURL, username))
	if i < 0 {
		return domain.AccountProfile{}, false, nil
	}
	return profiles[i], true, nil
}

// ListAccountProfiles returns every stored profile, oldest first.
func (s *AccountFileStore) ListAccountProfiles() ([]domain.AccountProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readProfiles()
}

var _ domain.AccountStore = (*AccountFileStore)(nil)

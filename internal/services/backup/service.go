package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
	"cipherchat/internal/services/identity"
	"cipherchat/internal/util/memzero"
)

const (
	fileKind    = "cipherchat-backup"
	fileVersion = 1
)

var (
	// ErrIdentityExists is returned when an import would replace an identity.
	ErrIdentityExists = errors.New("an identity already exists in this home")

	// ErrBadBackup is returned for a file that is not a readable backup.
	ErrBadBackup = errors.New("not a cipherchat backup")
)

// file is the outer, unsealed document. Fingerprint lets a user check a
// backup without its passphrase.
type file struct {
	V           int                `json:"v"`
	Kind        string             `json:"kind"`
	Fingerprint domain.Fingerprint `json:"fingerprint"`
	ExportedAt  time.Time          `json:"exported_at"`
	Sealed      json.RawMessage    `json:"sealed"`
}

type signedPreKey struct {
	ID   domain.SignedPreKeyID `json:"id"`
	Priv domain.X25519Private  `json:"priv"`
	Pub  domain.X25519Public   `json:"pub"`
	Sig  []byte                `json:"sig"`
}

type contents struct {
	Identity     domain.Identity            `json:"identity"`
	SignedPreKey *signedPreKey              `json:"signed_pre_key,omitempty"`
	OneTime      []domain.OneTimePreKeyPair `json:"one_time_pre_keys,omitempty"`
	Accounts     []domain.AccountProfile    `json:"accounts,omitempty"`
}

// Service moves key material in and out of a home directory.
type Service struct {
	identities domain.IdentityStore
	prekeys    domain.PreKeyStore
	accounts   domain.AccountStore
	sealer     domain.SecretSealer
	log        *zap.Logger
	now        func() time.Time
}

func New(
	identities domain.IdentityStore,
	prekeys domain.PreKeyStore,
	accounts domain.AccountStore,
	sealer domain.SecretSealer,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		identities: identities,
		prekeys:    prekeys,
		accounts:   accounts,
		sealer:     sealer,
		log:        log,
		now:        time.Now,
	}
}

// Export unlocks the identity with passphrase and returns a backup sealed
// under backupPassphrase, or under passphrase when backupPassphrase is empty.
func (s *Service) Export(passphrase, backupPassphrase string) ([]byte, error) {
	if backupPassphrase == "" {
		backupPassphrase = passphrase
	}
	id, err := s.identities.LoadIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("unlock identity: %w", err)
	}

	c := contents{Identity: id}
	if spkID, ok, err := s.prekeys.CurrentSignedPreKeyID(); err != nil {
		return nil, err
	} else if ok {
		priv, pub, sig, found, err := s.prekeys.LoadSignedPreKey(spkID)
		if err != nil {
			return nil, err
		}
		if found {
			c.SignedPreKey = &signedPreKey{ID: spkID, Priv: priv, Pub: pub, Sig: sig}
		}
	}

	pubs, err := s.prekeys.ListOneTimePreKeyPublics()
	if err != nil {
		return nil, err
	}
	for _, p := range pubs {
		priv, pub, ok, err := s.prekeys.LoadOneTimePreKey(p.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			c.OneTime = append(c.OneTime, domain.OneTimePreKeyPair{ID: p.ID, Priv: priv, Pub: pub})
		}
	}

	if c.Accounts, err = s.accounts.ListAccountProfiles(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(raw)

	sealed, err := s.sealer.Seal(backupPassphrase, raw)
	if err != nil {
		return nil, err
	}
	fp := crypto.IdentityFingerprint(id)
	out, err := json.MarshalIndent(file{
		V:           fileVersion,
		Kind:        fileKind,
		Fingerprint: fp,
		ExportedAt:  s.now().UTC(),
		Sealed:      sealed,
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	s.log.Info("backup exported",
		zap.String("fingerprint", fp.String()),
		zap.Int("one_time_pre_keys", len(c.OneTime)),
		zap.Int("accounts", len(c.Accounts)))
	return out, nil
}

// Peek returns the fingerprint recorded in a backup without opening it.
func Peek(data []byte) (domain.Fingerprint, error) {
	f, err := decodeFile(data)
	if err != nil {
		return "", err
	}
	return f.Fingerprint, nil
}

// Import opens data with backupPassphrase and stores its contents with the
// identity sealed under passphrase. An existing identity is replaced only
// when overwrite is set.
func (s *Service) Import(data []byte, backupPassphrase, passphrase string, overwrite bool) (domain.Fingerprint, error) {
	if backupPassphrase == "" {
		backupPassphrase = passphrase
	}
	f, err := decodeFile(data)
	if err != nil {
		return "", err
	}
	if err := identity.CheckPassphrase(passphrase); err != nil {
		return "", err
	}

	if !overwrite {
		_, err := s.identities.LoadIdentity(passphrase)
		switch {
		case err == nil:
			return "", ErrIdentityExists
		case !errors.Is(err, errs.ErrNotFound):
			// Present but sealed under another passphrase.
			return "", fmt.Errorf("%w: %v", ErrIdentityExists, err)
		}
	}

	raw, err := s.sealer.Open(backupPassphrase, f.Sealed)
	if err != nil {
		return "", err
	}
	defer memzero.Zero(raw)

	var c contents
	if err := json.Unmarshal(raw, &c); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadBackup, err)
	}
	fp := crypto.IdentityFingerprint(c.Identity)
	if fp != f.Fingerprint {
		return "", fmt.Errorf("%w: fingerprint does not match contents", ErrBadBackup)
	}

	if err := s.identities.SaveIdentity(passphrase, c.Identity); err != nil {
		return "", fmt.Errorf("save identity: %w", err)
	}
	if spk := c.SignedPreKey; spk != nil {
		if err := s.prekeys.SaveSignedPreKey(spk.ID, spk.Priv, spk.Pub, spk.Sig); err != nil {
			return "", err
		}
		if err := s.prekeys.SetCurrentSignedPreKeyID(spk.ID); err != nil {
			return "", err
		}
	}
	if len(c.OneTime) > 0 {
		if err := s.prekeys.SaveOneTimePreKeys(c.OneTime); err != nil {
			return "", err
		}
	}
	for _, p := range c.Accounts {
		if err := s.accounts.SaveAccountProfile(p); err != nil {
			return "", err
		}
	}

	s.log.Info("backup imported",
		zap.String("fingerprint", fp.String()),
		zap.Int("one_time_pre_keys", len(c.OneTime)),
		zap.Int("accounts", len(c.Accounts)))
	return fp, nil
}

func decodeFile(data []byte) (file, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return file{}, fmt.Errorf("%w: %v", ErrBadBackup, err)
	}
	switch {
	case f.Kind != fileKind:
		return file{}, ErrBadBackup
	case f.V != fileVersion:
		return file{}, fmt.Errorf("%w: unsupported version %d", ErrBadBackup, f.V)
	case len(f.Sealed) == 0:
		return file{}, fmt.Errorf("%w: empty", ErrBadBackup)
	}
	return f, nil
}

var _ domain.BackupService = (*Service)(nil)

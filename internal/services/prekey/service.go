package prekey

import (
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
)

// ErrNoSignedPreKey is returned when no current signed pre-key is stored.
var ErrNoSignedPreKey = errors.New("no signed pre-key available")

// Service manages prekey pairs and builds the public bundle.
type Service struct {
	ids domain.IdentityStore
	ps  domain.PreKeyStore
	log *zap.Logger
}

// New returns a pre-key service over the identity and pre-key stores.
func New(ids domain.IdentityStore, ps domain.PreKeyStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{ids: ids, ps: ps, log: log}
}

// GenerateAndStorePreKeys creates a signed-prekey pair and n one-time pairs.
// It also marks the new signed-prekey as current.
func (s *Service) GenerateAndStorePreKeys(
	passphrase string,
	n int,
) (domain.X25519Public, []domain.X25519Public, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.X25519Public{}, nil, err
	}

	// Signed prekey
	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.X25519Public{}, nil, err
	}
	spkID, err := newID("spk")
	if err != nil {
		return domain.X25519Public{}, nil, err
	}
	sig := crypto.SignEd25519(id.EdPriv, spkPub.Slice())
	if err := s.ps.SaveSignedPreKey(domain.SignedPreKeyID(spkID), spkPriv, spkPub, sig); err != nil {
		return domain.X25519Public{}, nil, err
	}
	if err := s.ps.SetCurrentSignedPreKeyID(domain.SignedPreKeyID(spkID)); err != nil {
		return domain.X25519Public{}, nil, err
	}

	// One-time prekeys
	pairs := make([]domain.OneTimePreKeyPair, 0, n)
	publics := make([]domain.X25519Public, 0, n)
	for i := 0; i < n; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return domain.X25519Public{}, nil, err
		}
		opkID, err := newID("opk")
		if err != nil {
			return domain.X25519Public{}, nil, err
		}
		pairs = append(pairs, domain.OneTimePreKeyPair{ID: domain.OneTimePreKeyID(opkID), Priv: priv, Pub: pub})
		publics = append(publics, pub)
	}
	if err := s.ps.SaveOneTimePreKeys(pairs); err != nil {
		return domain.X25519Public{}, nil, err
	}
	s.log.Info("pre-keys generated",
		zap.String("signed_pre_key_id", spkID),
		zap.Int("one_time_pre_keys", n),
	)
	return spkPub, publics, nil
}

// LoadPreKeyBundle builds the public bundle from the current signed-prekey and
// the remaining one-time pre-keys.
func (s *Service) LoadPreKeyBundle(passphrase string) (domain.PreKeyBundle, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}

	spkID, ok, err := s.ps.CurrentSignedPreKeyID()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !ok {
		return domain.PreKeyBundle{}, ErrNoSignedPreKey
	}
	_, spkPub, sig, found, err := s.ps.LoadSignedPreKey(spkID)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if !found {
		return domain.PreKeyBundle{}, fmt.Errorf("signed pre-key %s: %w", spkID, ErrNoSignedPreKey)
	}

	oneTime, err := s.ps.ListOneTimePreKeyPublics()
	if err != nil {
		return domain.PreKeyBundle{}, err
	}

	return domain.PreKeyBundle{
		IdentityKey:           id.XPub,
		SigningKey:            id.EdPub,
		SignedPreKeyID:        spkID,
		SignedPreKey:          spkPub,
		SignedPreKeySignature: sig,
		OneTimePreKeys:        oneTime,
	}, nil
}

func newID(prefix string) (string, error) {
	u, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return prefix + "-" + u.String(), nil
}

// Compile-time assertion that Service implements domain.PreKeyService.
var _ domain.PreKeyService = (*Service)(nil)

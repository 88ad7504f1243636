package identity

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
)

const minPassphraseLength = 12

// ErrWeakPassphrase is returned when a new passphrase fails the strength policy.
var ErrWeakPassphrase = errors.New("passphrase is too weak")

// Service owns the local identity: an X25519 pair for key agreement and an
// Ed25519 pair that signs pre-keys and relay tokens.
type Service struct {
	store domain.IdentityStore
	log   *zap.Logger
}

func New(s domain.IdentityStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: s, log: log}
}

// GenerateIdentity creates a fresh identity, stores it sealed under
// passphrase and returns it with its fingerprint.
func (s *Service) GenerateIdentity(passphrase string) (domain.Identity, domain.Fingerprint, error) {
	if err := CheckPassphrase(passphrase); err != nil {
		return domain.Identity{}, "", err
	}

	id, err := crypto.NewIdentity()
	if err != nil {
		return domain.Identity{}, "", err
	}
	if err := s.store.SaveIdentity(passphrase, id); err != nil {
		return domain.Identity{}, "", fmt.Errorf("save identity: %w", err)
	}

	fp := crypto.IdentityFingerprint(id)
	s.log.Info("identity generated", zap.String("fingerprint", fp.String()))
	return id, fp, nil
}

func (s *Service) LoadIdentity(passphrase string) (domain.Identity, error) {
	return s.store.LoadIdentity(passphrase)
}

func (s *Service) FingerprintIdentity(passphrase string) (domain.Fingerprint, error) {
	id, err := s.store.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return crypto.IdentityFingerprint(id), nil
}

// CheckPassphrase requires minPassphraseLength characters drawn from upper
// case, lower case, digits and symbols. The error names what is missing.
func CheckPassphrase(p string) error {
	var upper, lower, digit, symbol bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			symbol = true
		}
	}

	var missing []string
	if n := len([]rune(p)); n < minPassphraseLength {
		missing = append(missing, fmt.Sprintf("%d more characters", minPassphraseLength-n))
	}
	for _, c := range []struct {
		ok   bool
		name string
	}{{upper, "an upper-case letter"}, {lower, "a lower-case letter"}, {digit, "a digit"}, {symbol, "a symbol"}} {
		if !c.ok {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: needs %s", ErrWeakPassphrase, strings.Join(missing, ", "))
	}
	return nil
}

var _ domain.IdentityService = (*Service)(nil)

package types

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"cipherchat/internal/errs"
)

// MaxUsernameLength bounds a username in bytes.
const MaxUsernameLength = 64

// Username represents a relay-registered identity.
type Username string

// String returns the string form of the username.
func (u Username) String() string { return string(u) }

// Validate rejects empty and over-long names and any name containing ':',
// whitespace or control characters. ':' separates owner and peer in a
// SessionKey.
func (u Username) Validate() error {
	switch {
	case u == "":
		return fmt.Errorf("%w: empty", errs.ErrInvalidUsername)
	case len(u) > MaxUsernameLength:
		return fmt.Errorf("%w: longer than %d bytes", errs.ErrInvalidUsername, MaxUsernameLength)
	case strings.ContainsRune(string(u), ':'):
		return fmt.Errorf("%w: %q contains ':'", errs.ErrInvalidUsername, string(u))
	case strings.IndexFunc(string(u), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r) || r == unicode.ReplacementChar
	}) >= 0:
		return fmt.Errorf("%w: %q contains whitespace or control characters", errs.ErrInvalidUsername, string(u))
	}
	return nil
}

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// SignedPreKeyID uniquely identifies a signed pre-key.
type SignedPreKeyID string

// String returns the string form of the identifier.
func (id SignedPreKeyID) String() string { return string(id) }

// OneTimePreKeyID uniquely identifies a one-time pre-key.
type OneTimePreKeyID string

// String returns the string form of the identifier.
func (id OneTimePreKeyID) String() string { return string(id) }

// UserID is the relay's numeric account identifier.
type UserID uint64

// String returns the decimal form of the identifier.
func (id UserID) String() string { return strconv.FormatUint(uint64(id), 10) }

// DeviceID is the relay's numeric device identifier.
type DeviceID uint64

// String returns the decimal form of the identifier.
func (id DeviceID) String() string { return strconv.FormatUint(uint64(id), 10) }

// SessionKey is the storage key of a session: owner ":" peer.
type SessionKey string

// String returns the string form of the key.
func (k SessionKey) String() string { return string(k) }

// SessionKeyFor builds the storage key for the (owner, peer) pair so that two
// local accounts never collide on the same peer.
func SessionKeyFor(owner, peer Username) SessionKey {
	return SessionKey(owner.String() + ":" + peer.String())
}

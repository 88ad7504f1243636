package interfaces

import (
	"context"

	domaintypes "cipherchat/internal/domain/types"
)

// AccountStore persists per-relay account profiles.
type AccountStore interface {
	SaveAccountProfile(profile domaintypes.AccountProfile) error
	// LoadAccountProfile reports ok=false when no profile exists.
	LoadAccountProfile(
		serverURL string,
		username domaintypes.Username,
	) (profile domaintypes.AccountProfile, ok bool, err error)
	ListAccountProfiles() ([]domaintypes.AccountProfile, error)
}

// IdentityStore persists your long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// PreKeyStore manages signed and one-time pre-keys on disk.
type PreKeyStore interface {
	// Signed pre-key
	SaveSignedPreKey(
		id domaintypes.SignedPreKeyID,
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		sig []byte,
	) error
	LoadSignedPreKey(
		id domaintypes.SignedPreKeyID,
	) (
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		sig []byte,
		ok bool,
		err error,
	)

	// One-time pre-keys
	SaveOneTimePreKeys(pairs []domaintypes.OneTimePreKeyPair) error
	LoadOneTimePreKey(id domaintypes.OneTimePreKeyID) (
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		ok bool,
		err error,
	)
	ConsumeOneTimePreKey(id domaintypes.OneTimePreKeyID) (
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		ok bool,
		err error,
	)
	ListOneTimePreKeyPublics() ([]domaintypes.OneTimePreKeyPublic, error)

	// Current signed pre-key selection
	SetCurrentSignedPreKeyID(id domaintypes.SignedPreKeyID) error
	CurrentSignedPreKeyID() (domaintypes.SignedPreKeyID, bool, error)
}

// SessionDirectory persists one ratchet session per (owner, peer).
//
// LoadSession returns errs.ErrNotFound when no session exists and
// errs.ErrCorruptState when the stored blob cannot be decoded.
type SessionDirectory interface {
	LoadSession(
		ctx context.Context,
		owner domaintypes.Username,
		peer domaintypes.Username,
	) (domaintypes.SessionRecord, error)
	StoreSession(ctx context.Context, record domaintypes.SessionRecord) error
	SessionLocker
}

// SessionLocker serialises load, transform and store of one session across
// every process that shares the backend. unlock is safe to call more than once.
type SessionLocker interface {
	LockSession(ctx context.Context, key domaintypes.SessionKey) (unlock func(), err error)
}

// PeerDeviceStore caches the username to device routing of peers.
type PeerDeviceStore interface {
	SavePeerDevice(ctx context.Context, device domaintypes.PeerDevice) error
	LoadPeerDevice(
		ctx context.Context,
		username domaintypes.Username,
	) (domaintypes.PeerDevice, error)
}

// HistoryStore keeps the local plaintext conversation log.
type HistoryStore interface {
	AppendMessage(ctx context.Context, entry domaintypes.HistoryEntry) error
	ListMessages(
		ctx context.Context,
		owner domaintypes.Username,
		peer domaintypes.Username,
		limit int,
	) ([]domaintypes.HistoryEntry, error)
	ListConversations(
		ctx context.Context,
		owner domaintypes.Username,
	) ([]domaintypes.Conversation, error)
	// MarkRead marks every incoming entry with peer as read and returns how
	// many changed.
	MarkRead(ctx context.Context, owner, peer domaintypes.Username) (int, error)
}

// SecretSealer seals arbitrary secrets under a passphrase.
type SecretSealer interface {
	Seal(passphrase string, plaintext []byte) ([]byte, error)
	Open(passphrase string, sealed []byte) ([]byte, error)
}

package interfaces

import (
	"context"

	domaintypes "cipherchat/internal/domain/types"
)

// IdentityService creates, retrieves, and inspects your identity keys.
type IdentityService interface {
	GenerateIdentity(passphrase string) (
		domaintypes.Identity,
		domaintypes.Fingerprint,
		error,
	)
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
	FingerprintIdentity(passphrase string) (domaintypes.Fingerprint, error)
}

// PreKeyService generates and assembles your pre-key bundles.
type PreKeyService interface {
	GenerateAndStorePreKeys(passphrase string, count int) (
		domaintypes.X25519Public,
		[]domaintypes.X25519Public,
		error,
	)
	LoadPreKeyBundle(passphrase string) (domaintypes.PreKeyBundle, error)
}

// PeerDirectory maps a peer username to its routable device.
type PeerDirectory interface {
	Resolve(ctx context.Context, username domaintypes.Username) (domaintypes.PeerDevice, error)
	Cached(ctx context.Context, username domaintypes.Username) (domaintypes.PeerDevice, error)
}

// SessionService establishes sessions on either side of a conversation.
//
// Callers hold the (owner, peer) lock around every call.
type SessionService interface {
	// Outbound returns the stored session, or a new initiator session together
	// with the handshake to embed in the first envelope. New sessions are not
	// persisted.
	Outbound(
		ctx context.Context,
		account domaintypes.LocalAccount,
		peer domaintypes.PeerDevice,
	) (domaintypes.SessionRecord, *domaintypes.HandshakeInit, error)
	// Inbound returns the stored session, or a new responder session when the
	// header carries a handshake. created reports the latter.
	Inbound(
		ctx context.Context,
		account domaintypes.LocalAccount,
		sender domaintypes.Username,
		header domaintypes.RatchetHeader,
	) (record domaintypes.SessionRecord, created bool, err error)
	// Respond always runs the responder path for the header's handshake.
	Respond(
		ctx context.Context,
		account domaintypes.LocalAccount,
		sender domaintypes.Username,
		header domaintypes.RatchetHeader,
	) (domaintypes.SessionRecord, error)
	// Finalize consumes the one-time pre-key named by an accepted handshake.
	Finalize(ctx context.Context, handshake *domaintypes.HandshakeInit) error
}

// MessageService encrypts, sends, fetches and decrypts messages.
type MessageService interface {
	Send(
		ctx context.Context,
		account domaintypes.LocalAccount,
		to domaintypes.Username,
		plaintext []byte,
	) error
	Receive(
		ctx context.Context,
		account domaintypes.LocalAccount,
		envelope domaintypes.InboundEnvelope,
	) (domaintypes.DecryptedMessage, error)
	Fetch(
		ctx context.Context,
		account domaintypes.LocalAccount,
	) (domaintypes.FetchResult, error)
}

// BackupService exports and restores the local key material.
type BackupService interface {
	Export(passphrase, backupPassphrase string) ([]byte, error)
	Import(
		data []byte,
		backupPassphrase string,
		passphrase string,
		overwrite bool,
	) (domaintypes.Fingerprint, error)
}

// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Storage and directory sentinels.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidUsername indicates a username the relay and local stores cannot key on.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrCorruptState indicates a persisted session could not be decoded.
	ErrCorruptState = errors.New("corrupt session state")

	// ErrPeerNotFound indicates the relay has no user with the exact username.
	ErrPeerNotFound = errors.New("peer not found")

	// ErrNoDevicesForPeer indicates the peer exists but advertises no devices.
	ErrNoDevicesForPeer = errors.New("peer has no devices")
)

// Protocol sentinels.
var (
	// ErrMissingHandshake indicates an envelope from an unknown sender without
	// handshake metadata.
	ErrMissingHandshake = errors.New("no session and no handshake")

	// ErrInvalidEnvelope indicates a malformed header or an unacceptable gap.
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// ErrInvalidBundle indicates a key bundle failed signature verification.
	ErrInvalidBundle = errors.New("invalid key bundle")

	// ErrDecryptionFailed indicates the AEAD rejected the ciphertext.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrStaleMessage indicates a duplicate or already-consumed counter.
	ErrStaleMessage = errors.New("stale message")

	// ErrSessionConflict indicates a losing handshake from a simultaneous
	// establishment.
	ErrSessionConflict = errors.New("session conflict")

	// ErrIdentityMismatch indicates a handshake whose sender identity differs
	// from the one bound to the existing session.
	ErrIdentityMismatch = errors.New("peer identity mismatch")
)

// Transport sentinels.
var (
	// ErrTransport indicates the relay could not be reached or answered badly.
	ErrTransport = errors.New("transport failure")

	// ErrSendFailed indicates an envelope was encrypted but could not be
	// delivered to the relay.
	ErrSendFailed = errors.New("send failed")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")
)

// Dropped reports whether an inbound processing error is permanent, meaning
// the envelope should be acknowledged and never retried.
func Dropped(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrStaleMessage),
		errors.Is(err, ErrInvalidEnvelope),
		errors.Is(err, ErrInvalidBundle),
		errors.Is(err, ErrMissingHandshake),
		errors.Is(err, ErrDecryptionFailed),
		errors.Is(err, ErrSessionConflict),
		errors.Is(err, ErrIdentityMismatch),
		errors.Is(err, ErrCorruptState):
		return true
	default:
		return false
	}
}

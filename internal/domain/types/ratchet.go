package types

import "time"

// RatchetHeader is sent alongside every ciphertext.
type RatchetHeader struct {
	DiffieHellmanPublicKey X25519Public   `json:"dh_pub"`
	MessageIndex           uint32         `json:"n"`
	PreviousChainLength    uint32         `json:"pn"`
	Handshake              *HandshakeInit `json:"x3dh_init,omitempty"`
}

// SkippedKey is a message key derived for a counter that has not arrived yet.
type SkippedKey struct {
	RemoteKey    X25519Public `json:"remote_key"`
	MessageIndex uint32       `json:"n"`
	MessageKey   []byte       `json:"mk"`
}

// RatchetState contains all fields the Double Ratchet needs to track.
//
// SkippedKeys is ordered oldest first.
type RatchetState struct {
	RootKey                         []byte        `json:"root_key"`
	DiffieHellmanPrivate            X25519Private `json:"dh_priv"`
	DiffieHellmanPublic             X25519Public  `json:"dh_pub"`
	PeerDiffieHellmanPublic         X25519Public  `json:"peer_dh_pub"`
	PreviousPeerDiffieHellmanPublic X25519Public  `json:"prev_peer_dh_pub"`
	SendChainKey                    []byte        `json:"send_ck,omitempty"`
	ReceiveChainKey                 []byte        `json:"recv_ck,omitempty"`
	SendMessageIndex                uint32        `json:"ns"`
	ReceiveMessageIndex             uint32        `json:"nr"`
	PreviousChainLength             uint32        `json:"pn"`
	AssociatedData                  SharedData    `json:"ad"`
	SkippedKeys                     []SkippedKey  `json:"skipped_keys"`
	// RetiredPeerKeys holds remote ratchet keys older than the previous one,
	// oldest first. Headers under them are never decrypted again.
	RetiredPeerKeys []X25519Public `json:"retired_peer_keys,omitempty"`
}

// SessionRole records which side of the handshake created a session.
type SessionRole string

const (
	RoleInitiator SessionRole = "initiator"
	RoleResponder SessionRole = "responder"
)

// SessionRecord is the single authoritative session for (Owner, Peer).
type SessionRecord struct {
	Owner           Username     `json:"owner"`
	Peer            Username     `json:"peer"`
	PeerIdentityKey X25519Public `json:"peer_identity_key"`
	Role            SessionRole  `json:"role"`
	// Confirmed is set once a message from the peer decrypted under this session.
	Confirmed bool `json:"confirmed"`
	// PendingHandshake is kept on a new initiator session until an envelope
	// carrying it has reached the relay.
	PendingHandshake *HandshakeInit `json:"pending_handshake,omitempty"`
	// HandshakeKeys lists the initiator ratchet keys of every handshake this
	// conversation has accepted or refused, oldest first. It survives a
	// session replacement so a replayed handshake cannot reset the session.
	HandshakeKeys []X25519Public `json:"handshake_keys,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	State         RatchetState   `json:"state"`
}

// Key returns the storage key of the record.
func (r SessionRecord) Key() SessionKey { return SessionKeyFor(r.Owner, r.Peer) }

package types

import "time"

// AccountProfile identifies a local account on a specific relay server.
type AccountProfile struct {
	ServerURL string    `json:"server_url"`
	Username  Username  `json:"username"`
	UserID    UserID    `json:"user_id"`
	DeviceID  DeviceID  `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LocalAccount is the explicit owner context threaded through every session
// and pipeline call.
type LocalAccount struct {
	Username Username
	Identity Identity
}

// Credentials returns the signing material used to authenticate to the relay.
func (a LocalAccount) Credentials() Credentials {
	return Credentials{
		Username:   a.Username,
		SigningKey: a.Identity.EdPriv,
		PublicKey:  a.Identity.EdPub,
	}
}

// Credentials authenticate relay calls on behalf of a local account.
type Credentials struct {
	Username   Username
	SigningKey Ed25519Private
	PublicKey  Ed25519Public
}

// PeerDevice is the cached routing mapping for a peer username.
type PeerDevice struct {
	Username  Username  `json:"username"`
	UserID    UserID    `json:"user_id"`
	DeviceID  DeviceID  `json:"device_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DirectoryUser is one result of a relay username search.
type DirectoryUser struct {
	ID       UserID            `json:"id"`
	Username Username          `json:"username"`
	Devices  []DirectoryDevice `json:"devices"`
}

// DirectoryDevice is a device advertised by a DirectoryUser.
type DirectoryDevice struct {
	ID DeviceID `json:"id"`
}

// Registration is returned by the relay when an account is registered.
type Registration struct {
	UserID   UserID   `json:"user_id"`
	DeviceID DeviceID `json:"device_id"`
}

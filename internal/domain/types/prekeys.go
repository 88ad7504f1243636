package types

// OneTimePreKeyPair is the full (private+public) one-time pre-key stored locally.
type OneTimePreKeyPair struct {
	ID   OneTimePreKeyID `json:"id"`
	Priv X25519Private   `json:"priv"`
	Pub  X25519Public    `json:"pub"`
}

// OneTimePreKeyPublic is only the public half (sent in bundles).
type OneTimePreKeyPublic struct {
	ID  OneTimePreKeyID `json:"id"`
	Pub X25519Public    `json:"pub"`
}

// PreKeyBundle is the set of public keys you register with the relay.
// Keys and the signature are base64 on the wire.
type PreKeyBundle struct {
	IdentityKey           X25519Public          `json:"identity_key"`
	SigningKey            Ed25519Public         `json:"signing_key"`
	SignedPreKeyID        SignedPreKeyID        `json:"signed_pre_key_id"`
	SignedPreKey          X25519Public          `json:"signed_pre_key"`
	SignedPreKeySignature []byte                `json:"signed_pre_key_signature"`
	OneTimePreKeys        []OneTimePreKeyPublic `json:"one_time_pre_keys,omitempty"`
}

// DeviceBundle is one entry of a fetch-key-bundle response. The relay hands
// out at most one one-time pre-key per fetch.
type DeviceBundle struct {
	DeviceID  DeviceID     `json:"device_id"`
	KeyBundle PreKeyBundle `json:"key_bundle"`
}

// HandshakeInit carries the X3DH parameters embedded in the first envelope of
// a session, letting the responder derive the root key without a round trip.
type HandshakeInit struct {
	SenderIdentity  X25519Public    `json:"sender_identity"`
	SignedPreKeyID  SignedPreKeyID  `json:"signed_pre_key_id,omitempty"`
	OneTimePreKeyID OneTimePreKeyID `json:"one_time_pre_key,omitempty"`
}

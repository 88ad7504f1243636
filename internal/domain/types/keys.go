package types

import (
	"encoding/base64"
	"fmt"
)

// Identity is the long-term key material of a local account: X25519 for
// key agreement and Ed25519 for signing pre-keys and relay tokens.
type Identity struct {
	XPub   X25519Public   `json:"xpub"`
	XPriv  X25519Private  `json:"xpriv"`
	EdPub  Ed25519Public  `json:"edpub"`
	EdPriv Ed25519Private `json:"edpriv"`
}

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is unset.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// MarshalText encodes the key as standard base64.
func (p X25519Public) MarshalText() ([]byte, error) { return marshalKey(p[:]) }

// UnmarshalText decodes a base64 key and enforces its length.
func (p *X25519Public) UnmarshalText(b []byte) error {
	return unmarshalKey("x25519 public", p[:], b)
}

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// MarshalText encodes the key as standard base64.
func (k X25519Private) MarshalText() ([]byte, error) { return marshalKey(k[:]) }

// UnmarshalText decodes a base64 key and enforces its length.
func (k *X25519Private) UnmarshalText(b []byte) error {
	return unmarshalKey("x25519 private", k[:], b)
}

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// MarshalText encodes the key as standard base64.
func (p Ed25519Public) MarshalText() ([]byte, error) { return marshalKey(p[:]) }

// UnmarshalText decodes a base64 key and enforces its length.
func (p *Ed25519Public) UnmarshalText(b []byte) error {
	return unmarshalKey("ed25519 public", p[:], b)
}

// Ed25519Private is an Ed25519 signing private key.
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// MarshalText encodes the key as standard base64.
func (k Ed25519Private) MarshalText() ([]byte, error) { return marshalKey(k[:]) }

// UnmarshalText decodes a base64 key and enforces its length.
func (k *Ed25519Private) UnmarshalText(b []byte) error {
	return unmarshalKey("ed25519 private", k[:], b)
}

// SharedData is the fixed-size associated data bound to every ciphertext of a
// session.
type SharedData [32]byte

// MarshalText encodes the bytes as standard base64.
func (d SharedData) MarshalText() ([]byte, error) { return marshalKey(d[:]) }

// UnmarshalText decodes base64 and enforces the length.
func (d *SharedData) UnmarshalText(b []byte) error {
	return unmarshalKey("associated data", d[:], b)
}

func marshalKey(k []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(k)))
	base64.StdEncoding.Encode(out, k)
	return out, nil
}

func unmarshalKey(kind string, dst, src []byte) error {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(src)))
	n, err := base64.StdEncoding.Decode(raw, src)
	if err != nil {
		return fmt.Errorf("%s key: %w", kind, err)
	}
	if n != len(dst) {
		return fmt.Errorf("%s key: want %d bytes, got %d", kind, len(dst), n)
	}
	copy(dst, raw[:n])
	return nil
}

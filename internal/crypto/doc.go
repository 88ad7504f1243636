// Package crypto exposes the minimal primitives used by cipherchat.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie-Hellman (GenerateX25519,
//     PublicX25519, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519) and identity creation (NewIdentity)
//   - Short public-key fingerprints for display/logging (Fingerprint,
//     IdentityFingerprint)
//
// All functions return fixed-size array types defined in internal/domain to
// avoid accidental reallocations. Secrets are wiped with internal/util/memzero.
package crypto

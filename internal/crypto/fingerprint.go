package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"cipherchat/internal/domain"
)

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:10])
}

// IdentityFingerprint renders the identity fingerprint in groups of four for
// out-of-band comparison.
func IdentityFingerprint(id domain.Identity) domain.Fingerprint {
	raw := Fingerprint(append(id.XPub.Slice(), id.EdPub.Slice()...))
	var b strings.Builder
	for i := 0; i < len(raw); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(raw[i : i+4])
	}
	return domain.Fingerprint(b.String())
}

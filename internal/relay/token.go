package relay

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
)

// TokenTTL is how long a signed request token stays valid.
const TokenTTL = 60 * time.Second

// HeaderIdentity carries the base64 Ed25519 signing key of the caller.
const HeaderIdentity = "identity"

// SignToken issues a single-use EdDSA token for cred. The jti is a fresh
// random challenge the relay refuses to accept twice.
func SignToken(cred domain.Credentials, now time.Time) (string, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	claims := jwt.RegisteredClaims{
		Subject:   cred.Username.String(),
		ID:        jti.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).
		SignedString(ed25519.PrivateKey(cred.SigningKey[:]))
}

// VerifyToken checks signature and expiry of raw against pub.
func VerifyToken(raw string, pub domain.Ed25519Public, now time.Time) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return ed25519.PublicKey(pub[:]), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token: %v: %w", err, errs.ErrUnauthorized)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("token without jti or subject: %w", errs.ErrUnauthorized)
	}
	return claims, nil
}

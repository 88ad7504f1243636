package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"cipherchat/internal/domain"
	"cipherchat/internal/util/memzero"
)

// keystoreFormatVersion is the newest encrypted blob format written to disk.
const keystoreFormatVersion = 1

// ErrWrongPassphrase is returned when the passphrase is incorrect or the
// ciphertext has been modified.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted keystore")

// scryptParams are the key derivation tunables recorded in every blob.
type scryptParams struct {
	N int `json:"scrypt_N"`
	R int `json:"scrypt_r"`
	P int `json:"scrypt_p"`
}

func defaultScryptParams() scryptParams { return scryptParams{N: 1 << 15, R: 8, P: 1} }

// keystoreBlob is the on-disk JSON structure holding the ciphertext and KDF parameters.
type keystoreBlob struct {
	V    int    `json:"v"`
	Salt []byte `json:"salt"`
	scryptParams
	Cipher []byte `json:"cipher"`
}

// sealSecret derives a key from passphrase and seals raw into a JSON blob.
// The salt is also the AEAD additional data.
func sealSecret(passphrase string, raw []byte, params scryptParams) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	aead, err := keystoreAEAD(passphrase, salt[:], params)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte // zero nonce; the salt makes every key unique
	ct := aead.Seal(nil, nonce[:], raw, salt[:])

	return json.Marshal(keystoreBlob{
		V:            keystoreFormatVersion,
		Salt:         salt[:],
		scryptParams: params,
		Cipher:       ct,
	})
}

// openSecret opens the JSON blob using a key derived from passphrase.
func openSecret(passphrase string, b []byte) ([]byte, error) {
	var bl keystoreBlob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	if bl.V < 1 || bl.V > keystoreFormatVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", bl.V)
	}
	aead, err := keystoreAEAD(passphrase, bl.Salt, bl.scryptParams)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

func keystoreAEAD(passphrase string, salt []byte, p scryptParams) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, p.N, p.R, p.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	return chacha20poly1305.New(key)
}

// Sealer seals arbitrary secrets in the keystore blob format.
type Sealer struct {
	params scryptParams
}

func NewSealer() Sealer { return Sealer{params: defaultScryptParams()} }

func (s Sealer) Seal(passphrase string, plaintext []byte) ([]byte, error) {
	return sealSecret(passphrase, plaintext, s.params)
}

func (Sealer) Open(passphrase string, sealed []byte) ([]byte, error) {
	return openSecret(passphrase, sealed)
}

var _ domain.SecretSealer = Sealer{}

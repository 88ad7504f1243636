package x3dh

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
	"cipherchat/internal/util/memzero"
)

const (
	rootKeySize = 32
	hkdfInfo    = "cipherchat-x3dh"
	adLabel     = "cipherchat-ad"
)

// Agreement is the initiator's result of a key agreement.
//
// The ephemeral pair doubles as the initiator's first ratchet key, so the
// responder learns EK from the first ratchet header.
type Agreement struct {
	RootKey         []byte
	SignedPreKeyID  domain.SignedPreKeyID
	OneTimePreKeyID domain.OneTimePreKeyID
	EphemeralPriv   domain.X25519Private
	EphemeralPub    domain.X25519Public
	AssociatedData  domain.SharedData
}

// VerifyBundle checks the signed pre-key signature of bundle.
func VerifyBundle(bundle domain.PreKeyBundle) error {
	if !crypto.VerifyEd25519(bundle.SigningKey, bundle.SignedPreKey.Slice(), bundle.SignedPreKeySignature) {
		return fmt.Errorf("signed pre-key %s: %w", bundle.SignedPreKeyID, errs.ErrInvalidBundle)
	}
	return nil
}

// InitiatorRoot verifies bundle and derives the root key for the initiator.
// The first advertised one-time pre-key is used when present.
func InitiatorRoot(id domain.Identity, bundle domain.PreKeyBundle) (Agreement, error) {
	if err := VerifyBundle(bundle); err != nil {
		return Agreement{}, err
	}
	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return Agreement{}, err
	}

	var (
		peerOPK *domain.X25519Public
		opkID   domain.OneTimePreKeyID
	)
	if len(bundle.OneTimePreKeys) > 0 {
		opk := bundle.OneTimePreKeys[0]
		peerOPK, opkID = &opk.Pub, opk.ID
	}

	transcript := make([]byte, 0, 32*4)
	for _, pair := range []struct {
		priv domain.X25519Private
		pub  domain.X25519Public
	}{
		{id.XPriv, bundle.SignedPreKey}, // DH(IKA, SPKB)
		{ephPriv, bundle.IdentityKey},   // DH(EKA, IKB)
		{ephPriv, bundle.SignedPreKey},  // DH(EKA, SPKB)
	} {
		if transcript, err = appendDH(transcript, pair.priv, pair.pub); err != nil {
			return Agreement{}, err
		}
	}
	if peerOPK != nil {
		if transcript, err = appendDH(transcript, ephPriv, *peerOPK); err != nil { // DH(EKA, OPKB)
			return Agreement{}, err
		}
	}

	root, err := deriveRoot(transcript)
	memzero.Zero(transcript)
	if err != nil {
		return Agreement{}, err
	}
	return Agreement{
		RootKey:         root,
		SignedPreKeyID:  bundle.SignedPreKeyID,
		OneTimePreKeyID: opkID,
		EphemeralPriv:   ephPriv,
		EphemeralPub:    ephPub,
		AssociatedData:  AssociatedData(id.XPub, bundle.IdentityKey),
	}, nil
}

// ResponderRoot recomputes the initiator's root key from our identity, the
// signed pre-key and optional one-time pre-key named by the handshake.
func ResponderRoot(
	id domain.Identity,
	spkPriv domain.X25519Private,
	opkPriv *domain.X25519Private,
	senderIdentity domain.X25519Public,
	senderEphemeral domain.X25519Public,
) ([]byte, error) {
	transcript := make([]byte, 0, 32*4)
	var err error
	for _, pair := range []struct {
		priv domain.X25519Private
		pub  domain.X25519Public
	}{
		{spkPriv, senderIdentity},   // DH(SPKB, IKA)
		{id.XPriv, senderEphemeral}, // DH(IKB, EKA)
		{spkPriv, senderEphemeral},  // DH(SPKB, EKA)
	} {
		if transcript, err = appendDH(transcript, pair.priv, pair.pub); err != nil {
			return nil, err
		}
	}
	if opkPriv != nil {
		if transcript, err = appendDH(transcript, *opkPriv, senderEphemeral); err != nil { // DH(OPKB, EKA)
			return nil, err
		}
	}
	root, err := deriveRoot(transcript)
	memzero.Zero(transcript)
	return root, err
}

// AssociatedData binds both identity keys, initiator first.
func AssociatedData(initiator, responder domain.X25519Public) domain.SharedData {
	h := sha256.New()
	h.Write([]byte(adLabel))
	h.Write(initiator.Slice())
	h.Write(responder.Slice())
	var out domain.SharedData
	copy(out[:], h.Sum(nil))
	return out
}

func appendDH(dst []byte, priv domain.X25519Private, pub domain.X25519Public) ([]byte, error) {
	shared, err := crypto.DH(priv, pub)
	if err != nil {
		return dst, fmt.Errorf("x3dh dh: %w", err)
	}
	dst = append(dst, shared[:]...)
	memzero.Zero(shared[:])
	return dst, nil
}

func deriveRoot(transcript []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, transcript, make([]byte, sha256.Size), []byte(hkdfInfo))
	root := make([]byte, rootKeySize)
	if _, err := io.ReadFull(r, root); err != nil {
		return nil, err
	}
	return root, nil
}

package ratchet

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
	"cipherchat/internal/util/memzero"
)

const (
	aeadKeySize = 32
	nonceSize   = chacha20poly1305.NonceSize

	// MaxSkip bounds how many message keys a single envelope may force us to
	// derive on one chain.
	MaxSkip = 1000

	// MaxRetiredKeys caps RetiredPeerKeys. The oldest key is forgotten first.
	MaxRetiredKeys = 256
)

var (
	// ErrNoSendingChain is returned by Encrypt on a responder state that has
	// not yet received the initiator's first message.
	ErrNoSendingChain = errors.New("ratchet has no sending chain")

	errChainUninitialised = errors.New("ratchet chain key is uninitialised")
)

// InitSender seeds the sending chain of the initiator. ourPriv/ourPub is the
// X3DH ephemeral pair and peerPub is the responder's signed pre-key.
func InitSender(
	root []byte,
	ourPriv domain.X25519Private,
	ourPub domain.X25519Public,
	peerPub domain.X25519Public,
	ad domain.SharedData,
) (domain.RatchetState, error) {
	dh, err := crypto.DH(ourPriv, peerPub)
	if err != nil {
		return domain.RatchetState{}, err
	}
	newRK, sendCK := kdfRK(root, dh[:])
	memzero.Zero(dh[:])

	return domain.RatchetState{
		RootKey:                 newRK,
		DiffieHellmanPrivate:    ourPriv,
		DiffieHellmanPublic:     ourPub,
		PeerDiffieHellmanPublic: peerPub,
		SendChainKey:            sendCK,
		AssociatedData:          ad,
	}, nil
}

// InitReceiver builds the responder state. It has no chains and no remote
// ratchet key until the first message arrives.
func InitReceiver(
	root []byte,
	spkPriv domain.X25519Private,
	spkPub domain.X25519Public,
	ad domain.SharedData,
) domain.RatchetState {
	return domain.RatchetState{
		RootKey:              append([]byte(nil), root...),
		DiffieHellmanPrivate: spkPriv,
		DiffieHellmanPublic:  spkPub,
		AssociatedData:       ad,
	}
}

// Encrypt produces a header and ciphertext and advances the sending chain.
func Encrypt(st *domain.RatchetState, plaintext []byte) (domain.RatchetHeader, []byte, error) {
	if len(st.SendChainKey) == 0 {
		return domain.RatchetHeader{}, nil, ErrNoSendingChain
	}
	mk, err := kdfCKSend(st)
	if err != nil {
		return domain.RatchetHeader{}, nil, err
	}
	h := domain.RatchetHeader{
		DiffieHellmanPublicKey: st.DiffieHellmanPublic,
		MessageIndex:           st.SendMessageIndex,
		PreviousChainLength:    st.PreviousChainLength,
	}

	ct, err := seal(mk, h, st.AssociatedData, plaintext)
	memzero.Zero(mk)
	if err != nil {
		return domain.RatchetHeader{}, nil, err
	}
	st.SendMessageIndex++
	return h, ct, nil
}

// Decrypt opens a message that is not in the skipped-key cache. It steps the
// DH ratchet on a new remote key, caches keys for any gap and opens counter
// header.MessageIndex. st is replaced only when the message opens.
func Decrypt(
	st *domain.RatchetState,
	ad domain.SharedData,
	header domain.RatchetHeader,
	ciphertext []byte,
) ([]byte, error) {
	work := Clone(*st)

	if header.DiffieHellmanPublicKey != work.PeerDiffieHellmanPublic {
		if len(work.ReceiveChainKey) > 0 {
			if err := skipUntil(&work, header.PreviousChainLength); err != nil {
				return nil, err
			}
		}
		if err := dhRatchet(&work, header.DiffieHellmanPublicKey); err != nil {
			return nil, err
		}
	}

	if len(work.ReceiveChainKey) == 0 {
		return nil, fmt.Errorf("no receiving chain for ratchet key: %w", errs.ErrInvalidEnvelope)
	}
	if header.MessageIndex < work.ReceiveMessageIndex {
		return nil, fmt.Errorf("counter %d below %d: %w",
			header.MessageIndex, work.ReceiveMessageIndex, errs.ErrStaleMessage)
	}
	if err := skipUntil(&work, header.MessageIndex); err != nil {
		return nil, err
	}

	mk, err := kdfCKRecv(&work)
	if err != nil {
		return nil, err
	}
	pt, err := open(mk, header, ad, ciphertext)
	memzero.Zero(mk)
	if err != nil {
		return nil, err
	}
	work.ReceiveMessageIndex++
	*st = work
	return pt, nil
}

// DecryptSkipped opens a message with its cached key. The key leaves the
// cache only when the message opens.
func DecryptSkipped(
	st *domain.RatchetState,
	ad domain.SharedData,
	header domain.RatchetHeader,
	ciphertext []byte,
) ([]byte, error) {
	i := findSkipped(st.SkippedKeys, header.DiffieHellmanPublicKey, header.MessageIndex)
	if i < 0 {
		return nil, ErrSkippedKeyNotFound
	}
	pt, err := open(st.SkippedKeys[i].MessageKey, header, ad, ciphertext)
	if err != nil {
		return nil, err
	}
	st.SkippedKeys = removeSkipped(st.SkippedKeys, i)
	return pt, nil
}

// Clone returns a deep copy of st.
func Clone(st domain.RatchetState) domain.RatchetState {
	out := st
	out.RootKey = cloneBytes(st.RootKey)
	out.SendChainKey = cloneBytes(st.SendChainKey)
	out.ReceiveChainKey = cloneBytes(st.ReceiveChainKey)
	out.RetiredPeerKeys = slices.Clone(st.RetiredPeerKeys)
	if st.SkippedKeys != nil {
		out.SkippedKeys = make([]domain.SkippedKey, len(st.SkippedKeys))
		for i, sk := range st.SkippedKeys {
			sk.MessageKey = cloneBytes(sk.MessageKey)
			out.SkippedKeys[i] = sk
		}
	}
	return out
}

// dhRatchet moves to a new remote ratchet key: derive the receiving chain,
// rotate our ratchet key pair and derive the next sending chain.
func dhRatchet(st *domain.RatchetState, remote domain.X25519Public) error {
	dh, err := crypto.DH(st.DiffieHellmanPrivate, remote)
	if err != nil {
		return fmt.Errorf("ratchet key: %w", errs.ErrInvalidEnvelope)
	}
	rk2, recvCK := kdfRK(st.RootKey, dh[:])
	memzero.Zero(dh[:])

	newPriv, newPub, err := crypto.GenerateX25519()
	if err != nil {
		return err
	}
	dh2, err := crypto.DH(newPriv, remote)
	if err != nil {
		return fmt.Errorf("ratchet key: %w", errs.ErrInvalidEnvelope)
	}
	rk3, sendCK := kdfRK(rk2, dh2[:])
	memzero.Zero(dh2[:])

	st.PreviousChainLength = st.SendMessageIndex
	st.SendMessageIndex, st.ReceiveMessageIndex = 0, 0
	st.RootKey = rk3
	st.DiffieHellmanPrivate, st.DiffieHellmanPublic = newPriv, newPub
	retire(st, st.PreviousPeerDiffieHellmanPublic)
	st.PreviousPeerDiffieHellmanPublic = st.PeerDiffieHellmanPublic
	st.PeerDiffieHellmanPublic = remote
	st.SendChainKey, st.ReceiveChainKey = sendCK, recvCK
	return nil
}

// IsRetired reports whether remote is a retired ratchet key of st.
func IsRetired(st domain.RatchetState, remote domain.X25519Public) bool {
	return slices.Contains(st.RetiredPeerKeys, remote)
}

// Supersede retires every remote key of old in st. It is used when st
// replaces old as the session with the same peer.
func Supersede(st *domain.RatchetState, old domain.RatchetState) {
	keys := append(slices.Clone(old.RetiredPeerKeys),
		old.PreviousPeerDiffieHellmanPublic, old.PeerDiffieHellmanPublic)
	for _, k := range keys {
		retire(st, k)
	}
}

func retire(st *domain.RatchetState, remote domain.X25519Public) {
	if remote.IsZero() || remote == st.PeerDiffieHellmanPublic || IsRetired(*st, remote) {
		return
	}
	st.RetiredPeerKeys = append(st.RetiredPeerKeys, remote)
	if over := len(st.RetiredPeerKeys) - MaxRetiredKeys; over > 0 {
		st.RetiredPeerKeys = slices.Delete(st.RetiredPeerKeys, 0, over)
	}
}

// --- helpers ---

func seal(mk []byte, header domain.RatchetHeader, ad domain.SharedData, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonceFor(header), plaintext, additionalData(ad, header)), nil
}

func open(mk []byte, header domain.RatchetHeader, ad domain.SharedData, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonceFor(header), ciphertext, additionalData(ad, header))
	if err != nil {
		return nil, errs.ErrDecryptionFailed
	}
	return pt, nil
}

func nonceFor(h domain.RatchetHeader) []byte {
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], h.MessageIndex)
	return nonce
}

func additionalData(ad domain.SharedData, h domain.RatchetHeader) []byte {
	out := make([]byte, 0, len(ad)+len(h.DiffieHellmanPublicKey)+8)
	out = append(out, ad[:]...)
	return append(out, headerBytes(h)...)
}

func headerBytes(h domain.RatchetHeader) []byte {
	out := make([]byte, 0, len(h.DiffieHellmanPublicKey)+8)
	out = append(out, h.DiffieHellmanPublicKey[:]...)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h.PreviousChainLength)
	out = append(out, b[:]...)
	binary.BigEndian.PutUint32(b[:], h.MessageIndex)
	out = append(out, b[:]...)
	return out
}

// HKDF-based KDFs with labels.
func kdfRK(rk, dh []byte) (newRK, ck []byte) {
	r := hkdf.New(sha256.New, dh, rk, []byte("DR|rk"))
	newRK = make([]byte, 32)
	ck = make([]byte, 32)
	_, _ = io.ReadFull(r, newRK)
	_, _ = io.ReadFull(r, ck)
	return
}

func kdfCK(ck []byte) (nextCK, mk []byte) {
	r := hkdf.New(sha256.New, ck, nil, []byte("DR|ck"))
	nextCK = make([]byte, 32)
	mk = make([]byte, 32)
	_, _ = io.ReadFull(r, nextCK)
	_, _ = io.ReadFull(r, mk)
	return
}

func kdfCKSend(st *domain.RatchetState) ([]byte, error) {
	if len(st.SendChainKey) == 0 {
		return nil, errChainUninitialised
	}
	nextCK, mk := kdfCK(st.SendChainKey)
	st.SendChainKey = nextCK
	return mk, nil
}

func kdfCKRecv(st *domain.RatchetState) ([]byte, error) {
	if len(st.ReceiveChainKey) == 0 {
		return nil, errChainUninitialised
	}
	nextCK, mk := kdfCK(st.ReceiveChainKey)
	st.ReceiveChainKey = nextCK
	return mk, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

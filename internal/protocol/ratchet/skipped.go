package ratchet

import (
	"errors"
	"fmt"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
	"cipherchat/internal/util/memzero"
)

// MaxSkippedKeys caps the skipped-key cache of one session. The oldest entry
// is evicted first.
const MaxSkippedKeys = 1000

// ErrSkippedKeyNotFound is returned by DecryptSkipped when no key is cached
// for the header's (ratchet key, counter).
var ErrSkippedKeyNotFound = errors.New("skipped message key not found")

// HasSkipped reports whether a key is cached for (remote, n).
func HasSkipped(st domain.RatchetState, remote domain.X25519Public, n uint32) bool {
	return findSkipped(st.SkippedKeys, remote, n) >= 0
}

// skipUntil derives and caches receiving-chain keys for counters [Nr, until).
func skipUntil(st *domain.RatchetState, until uint32) error {
	if until <= st.ReceiveMessageIndex {
		return nil
	}
	if until-st.ReceiveMessageIndex > MaxSkip {
		return fmt.Errorf("gap of %d messages: %w", until-st.ReceiveMessageIndex, errs.ErrInvalidEnvelope)
	}
	for st.ReceiveMessageIndex < until {
		mk, err := kdfCKRecv(st)
		if err != nil {
			return err
		}
		st.SkippedKeys = addSkipped(st.SkippedKeys, domain.SkippedKey{
			RemoteKey:    st.PeerDiffieHellmanPublic,
			MessageIndex: st.ReceiveMessageIndex,
			MessageKey:   mk,
		})
		st.ReceiveMessageIndex++
	}
	return nil
}

func findSkipped(keys []domain.SkippedKey, remote domain.X25519Public, n uint32) int {
	for i := range keys {
		if keys[i].MessageIndex == n && keys[i].RemoteKey == remote {
			return i
		}
	}
	return -1
}

// addSkipped appends sk and evicts from the front past MaxSkippedKeys.
func addSkipped(keys []domain.SkippedKey, sk domain.SkippedKey) []domain.SkippedKey {
	keys = append(keys, sk)
	if over := len(keys) - MaxSkippedKeys; over > 0 {
		evicted := make([][]byte, 0, over)
		for _, k := range keys[:over] {
			evicted = append(evicted, k.MessageKey)
		}
		memzero.All(evicted...)
		keys = append([]domain.SkippedKey(nil), keys[over:]...)
	}
	return keys
}

func removeSkipped(keys []domain.SkippedKey, i int) []domain.SkippedKey {
	memzero.Zero(keys[i].MessageKey)
	out := make([]domain.SkippedKey, 0, len(keys)-1)
	out = append(out, keys[:i]...)
	return append(out, keys[i+1:]...)
}

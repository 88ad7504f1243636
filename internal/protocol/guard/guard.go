// Package guard classifies inbound ratchet headers against a session before
// any key derivation happens.
package guard

import (
	"slices"

	"cipherchat/internal/domain"
	"cipherchat/internal/protocol/ratchet"
)

// Verdict is the classification of an inbound header.
type Verdict int

const (
	// Fresh headers take the normal decrypt path.
	Fresh Verdict = iota
	// SkipHit headers have a cached message key.
	SkipHit
	// Stale headers name a counter that was already consumed or whose key is
	// gone. They are dropped without touching the session.
	Stale
)

// String returns a log-friendly name.
func (v Verdict) String() string {
	switch v {
	case Fresh:
		return "fresh"
	case SkipHit:
		return "skip-hit"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// MaxHandshakeKeys caps SessionRecord.HandshakeKeys.
const MaxHandshakeKeys = 64

// Classify inspects st without mutating it. A cached key wins over the
// counter comparison so that late messages from an earlier chain still open.
func Classify(st domain.RatchetState, h domain.RatchetHeader) Verdict {
	remote := h.DiffieHellmanPublicKey
	if ratchet.HasSkipped(st, remote, h.MessageIndex) {
		return SkipHit
	}
	return classifyUncached(st, h)
}

// ClassifySession is Classify plus the handshake history of rec: a handshake
// the conversation has already seen is Stale unless it is still on the
// current remote chain, where the counter decides.
func ClassifySession(rec domain.SessionRecord, h domain.RatchetHeader) Verdict {
	remote := h.DiffieHellmanPublicKey
	if ratchet.HasSkipped(rec.State, remote, h.MessageIndex) {
		return SkipHit
	}
	if h.Handshake != nil && remote != rec.State.PeerDiffieHellmanPublic &&
		slices.Contains(rec.HandshakeKeys, remote) {
		return Stale
	}
	return classifyUncached(rec.State, h)
}

// RememberHandshake records the initiator ratchet key of a handshake on rec.
func RememberHandshake(rec *domain.SessionRecord, key domain.X25519Public) {
	if key.IsZero() || slices.Contains(rec.HandshakeKeys, key) {
		return
	}
	rec.HandshakeKeys = append(rec.HandshakeKeys, key)
	if over := len(rec.HandshakeKeys) - MaxHandshakeKeys; over > 0 {
		rec.HandshakeKeys = slices.Delete(rec.HandshakeKeys, 0, over)
	}
}

func classifyUncached(st domain.RatchetState, h domain.RatchetHeader) Verdict {
	remote := h.DiffieHellmanPublicKey
	switch {
	case !st.PeerDiffieHellmanPublic.IsZero() && remote == st.PeerDiffieHellmanPublic:
		if h.MessageIndex < st.ReceiveMessageIndex {
			return Stale
		}
		return Fresh
	case !st.PreviousPeerDiffieHellmanPublic.IsZero() && remote == st.PreviousPeerDiffieHellmanPublic:
		return Stale
	case ratchet.IsRetired(st, remote):
		return Stale
	default:
		return Fresh
	}
}

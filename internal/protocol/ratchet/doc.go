// Package ratchet implements the Double Ratchet algorithm following Signal's design.
//
// The algorithm maintains a root key and two message chains (send and receive).
// Each message advances a KDF chain so that keys are forward secure. When a party
// changes its DH ratchet public key, both sides derive new chain keys from a new
// root derived via DH.
//
// The initiator starts with a sending chain (InitSender); the responder starts
// with none (InitReceiver) and gains both chains on the first DH ratchet step.
// Keys for counters that arrive out of order are kept in a bounded, ordered
// cache (MaxSkippedKeys) and a single message may open a gap of at most MaxSkip.
//
// Decrypt works on a copy and replaces the caller's state only when the AEAD
// opens, so a forged or corrupted message never advances a session.
//
// Concurrency: RatchetState is NOT safe for concurrent use. Callers must
// serialise access per conversation.
package ratchet

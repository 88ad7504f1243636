// Package x3dh derives the root key and associated data that seed a ratchet
// session.
//
// The initiator verifies the responder's signed pre-key, generates an
// ephemeral X25519 pair and mixes IKa·SPKb, EKa·IKb, EKa·SPKb and, when a
// one-time pre-key was handed out, EKa·OPKb through HKDF. The ephemeral pair
// is reused as the initiator's first ratchet key, so the responder reads EKa
// from the first ratchet header instead of a separate field.
//
// The responder recomputes the same transcript from its own private halves.
// Looking up a one-time pre-key does not consume it; callers delete it once the
// new session is stored.
//
// A bad signed pre-key signature yields errs.ErrInvalidBundle.
package x3dh

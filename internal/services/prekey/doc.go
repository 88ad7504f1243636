// Package prekey manages signed prekeys and one-time prekeys for X3DH bootstrap.
//
// It rotates the current SPK and assembles the public bundle registered with
// the relay. One-time pre-keys are consumed by the session service once a
// handshake that used them has produced a stored session.
package prekey

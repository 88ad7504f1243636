// Package session establishes X3DH sessions on either side of a conversation.
//
// The initiator path fetches and verifies the peer's bundle. The responder
// path answers the handshake embedded in a session's first envelope, so no
// extra round trip is needed.
package session

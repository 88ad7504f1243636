// Package relay is the client side of the relay's HTTP/JSON API.
//
// The relay stores and forwards opaque envelopes; it never sees plaintext.
// Authenticated calls carry a short-lived EdDSA token signed with the
// account's identity signing key (SignToken) and the signing public key in
// the "identity" header. Network failures and 5xx answers wrap
// errs.ErrTransport.
//
// The in-memory relay used by cmd/relay and the tests lives in
// internal/relay/memrelay.
package relay

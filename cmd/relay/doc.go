// Package main runs the in-memory HTTP relay used by cipherchat during
// development and tests. It stores published pre-key bundles and queues
// encrypted envelopes for recipient devices until they acknowledge them.
//
// HTTP API
//
//	POST /account/register
//	    Store a username and its PreKeyBundle. Returns user and device ids.
//
//	GET /account/search?username=
//	    Return users whose name contains the query, with their devices.
//
//	GET /account/key-bundle?user_id=
//	    Return one bundle per device. Each call hands out and removes at most
//	    one one-time pre-key.
//
//	POST /message/send { "messages": [...] }
//	    Enqueue envelopes for recipient devices. Authenticated.
//
//	POST /message/fetch
//	    Return every queued envelope for the caller's device. Authenticated.
//
//	POST /message/ack { "ids": [...] }
//	    Drop the named envelopes from the caller's queue. Authenticated.
//
// Authenticated calls carry the caller's Ed25519 public key in the identity
// header and a short-lived EdDSA bearer token signed by it. A token id is
// accepted once.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - A structured access log records method, path, status, bytes, duration
//     and remote address for each request.
//   - The relay never sees plaintext or private keys.
package main

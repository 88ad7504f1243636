// Package message sends and receives encrypted messages.
//
// It owns the per-conversation pipeline: establishment on first contact,
// duplicate classification, decrypt on a working copy, persistence and the
// local history log.
package message

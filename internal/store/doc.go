// Package store provides file-based persistence for cipherchat's local data.
//
// It contains concrete implementations of the domain storage interfaces,
// serialising data as JSON on disk. All methods are concurrency-safe via
// internal locking and every write goes through a temp file and rename.
// Files live under the configured home directory.
//
// The package includes stores for:
//   - Identity keys, sealed with scrypt and ChaCha20-Poly1305 (IdentityFileStore)
//   - Prekeys (PrekeyFileStore)
//   - Ratchet sessions, one file per (owner, peer) (SessionFileStore)
//   - Resolved peer devices (PeerFileStore)
//   - Relay account profiles (AccountFileStore)
//   - Decrypted message history (HistoryFileStore)
//
// EncodeSession and DecodeSession define the versioned session blob shared
// with the Postgres backend in internal/store/postgres.
package store

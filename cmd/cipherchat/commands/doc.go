// Package commands defines the cipherchat CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init           Create the local identity
//   - fingerprint    Print the identity fingerprint
//   - register       Publish your pre-key bundle to a relay
//   - info           Show the local account profile
//   - send           Encrypt and send a message
//   - recv           Fetch and decrypt queued messages
//   - history        Print the local history with a peer
//   - chats          List conversations
//   - chat           Interactive send/receive loop with a peer
//
// # Implementation
//
// The root command layers flags, CIPHERCHAT_* variables and an optional config
// file, then builds the dependency graph (stores, services, relay client)
// before any subcommand runs.
package commands

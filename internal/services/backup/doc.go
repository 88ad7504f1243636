// Package backup exports the local identity, pre-keys and account profiles
// as one passphrase-sealed file and restores them into another home.
//
// Sessions and history are not part of a backup. A restored device starts
// new sessions with its peers.
package backup

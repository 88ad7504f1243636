// Package app wires application dependencies for the CLI.
//
// It layers configuration from flags, CIPHERCHAT_* variables and an optional
// config file, then builds the concrete stores, relay client and high-level
// services, exposing them via the Wire struct for commands to use.
package app

// Package identity creates and unlocks the local long-term identity.
//
// New identities must pass the passphrase policy. The keys are sealed by the
// domain.IdentityStore and shown to users as a grouped fingerprint.
package identity

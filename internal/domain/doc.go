// Package domain is the vocabulary shared by every layer: keys, sessions,
// envelopes and the store/service contracts. It re-exports the types and
// interfaces subpackages so callers import a single package.
package domain

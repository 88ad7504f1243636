// Package peer resolves peer usernames to routable devices through the relay
// directory and caches the result locally.
package peer

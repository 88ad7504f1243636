package types

import "time"

// OutboundEnvelope is what the client posts to the relay. Header is the raw
// associated data followed by the JSON ratchet header.
type OutboundEnvelope struct {
	RecipientDeviceID DeviceID `json:"recipient_device_id"`
	Ciphertext        []byte   `json:"ciphertext"`
	Header            []byte   `json:"header"`
}

// InboundEnvelope is what the relay hands back on fetch.
type InboundEnvelope struct {
	ID         string    `json:"id"`
	Sender     Username  `json:"sender"`
	Ciphertext []byte    `json:"ciphertext"`
	Header     []byte    `json:"header"`
	Timestamp  time.Time `json:"timestamp"`
}

// DecryptedMessage is what MessageService.Receive returns.
type DecryptedMessage struct {
	ID        string    `json:"id"`
	From      Username  `json:"from"`
	To        Username  `json:"to"`
	Plaintext []byte    `json:"plaintext"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryEntry is one line of the local conversation history.
type HistoryEntry struct {
	Owner     Username `json:"owner"`
	Peer      Username `json:"peer"`
	Sender    Username `json:"sender"`
	Recipient Username `json:"recipient"`
	Content   string   `json:"content"`
	Outgoing  bool     `json:"outgoing"`
	// Read is set on outgoing entries and once history has been shown.
	Read      bool      `json:"is_read"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation summarises the history with one peer.
type Conversation struct {
	Peer        Username  `json:"peer"`
	LastMessage string    `json:"last_message"`
	LastAt      time.Time `json:"last_at"`
	Count       int       `json:"count"`
	// Unread counts incoming entries not yet shown.
	Unread int `json:"unread"`
}

// FetchFailure records an envelope that could not be processed.
type FetchFailure struct {
	EnvelopeID string
	Sender     Username
	Err        error
	// Dropped is set when the envelope was acknowledged and will not return.
	Dropped bool
}

// FetchResult is the outcome of one fetch batch.
type FetchResult struct {
	Messages []DecryptedMessage
	Failures []FetchFailure
	// Stale counts duplicates that were acknowledged and silently dropped.
	Stale int
	Acked int
}

package domain

import (
	interfaces "cipherchat/internal/domain/interfaces"
	types "cipherchat/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Username            = types.Username
	Fingerprint         = types.Fingerprint
	SignedPreKeyID      = types.SignedPreKeyID
	OneTimePreKeyID     = types.OneTimePreKeyID
	UserID              = types.UserID
	DeviceID            = types.DeviceID
	SessionKey          = types.SessionKey
	Identity            = types.Identity
	LocalAccount        = types.LocalAccount
	Credentials         = types.Credentials
	AccountProfile      = types.AccountProfile
	Registration        = types.Registration
	PeerDevice          = types.PeerDevice
	DirectoryUser       = types.DirectoryUser
	DirectoryDevice     = types.DirectoryDevice
	OneTimePreKeyPair   = types.OneTimePreKeyPair
	OneTimePreKeyPublic = types.OneTimePreKeyPublic
	PreKeyBundle        = types.PreKeyBundle
	DeviceBundle        = types.DeviceBundle
	HandshakeInit       = types.HandshakeInit
	RatchetHeader       = types.RatchetHeader
	RatchetState        = types.RatchetState
	SkippedKey          = types.SkippedKey
	SessionRole         = types.SessionRole
	SessionRecord       = types.SessionRecord
	OutboundEnvelope    = types.OutboundEnvelope
	InboundEnvelope     = types.InboundEnvelope
	DecryptedMessage    = types.DecryptedMessage
	HistoryEntry        = types.HistoryEntry
	Conversation        = types.Conversation
	FetchFailure        = types.FetchFailure
	FetchResult         = types.FetchResult
	X25519Public        = types.X25519Public
	X25519Private       = types.X25519Private
	Ed25519Public       = types.Ed25519Public
	Ed25519Private      = types.Ed25519Private
	SharedData          = types.SharedData
)

const (
	RoleInitiator = types.RoleInitiator
	RoleResponder = types.RoleResponder
)

// SessionKeyFor builds the storage key for (owner, peer).
func SessionKeyFor(owner, peer Username) SessionKey { return types.SessionKeyFor(owner, peer) }

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService  = interfaces.IdentityService
	PreKeyService    = interfaces.PreKeyService
	PeerDirectory    = interfaces.PeerDirectory
	SessionService   = interfaces.SessionService
	MessageService   = interfaces.MessageService
	BackupService    = interfaces.BackupService
	RelayClient      = interfaces.RelayClient
	IdentityStore    = interfaces.IdentityStore
	PreKeyStore      = interfaces.PreKeyStore
	SessionDirectory = interfaces.SessionDirectory
	SessionLocker    = interfaces.SessionLocker
	PeerDeviceStore  = interfaces.PeerDeviceStore
	HistoryStore     = interfaces.HistoryStore
	AccountStore     = interfaces.AccountStore
	SecretSealer     = interfaces.SecretSealer
)

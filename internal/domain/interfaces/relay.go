package interfaces

import (
	"context"

	domaintypes "cipherchat/internal/domain/types"
)

// RelayClient is how we talk to the central relay server, all with context.
//
// Calls that act on behalf of an account are authenticated with its
// Credentials. Transport failures wrap errs.ErrTransport.
type RelayClient interface {
	Register(
		ctx context.Context,
		cred domaintypes.Credentials,
		bundle domaintypes.PreKeyBundle,
	) (domaintypes.Registration, error)
	SearchUsers(
		ctx context.Context,
		query domaintypes.Username,
	) ([]domaintypes.DirectoryUser, error)
	FetchKeyBundle(
		ctx context.Context,
		userID domaintypes.UserID,
	) ([]domaintypes.DeviceBundle, error)

	SendMessage(
		ctx context.Context,
		cred domaintypes.Credentials,
		envelope domaintypes.OutboundEnvelope,
	) error
	FetchMessages(
		ctx context.Context,
		cred domaintypes.Credentials,
	) ([]domaintypes.InboundEnvelope, error)
	AckMessages(ctx context.Context, cred domaintypes.Credentials, ids []string) error
}

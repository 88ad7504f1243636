package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
	"cipherchat/internal/protocol/ratchet"
	"cipherchat/internal/protocol/x3dh"
)

// Service decides between the initiator and responder paths and builds the
// initial ratchet state for a conversation.
//
// This service handles:
//   - Returning the stored session for (owner, peer) when one exists.
//   - Fetching and verifying the peer's key bundle for a new outbound session.
//   - Recomputing the root key from an inbound handshake.
//   - Consuming the one-time pre-key once a handshake has been accepted.
//
// New sessions are returned to the caller unsaved. The message pipeline
// persists them after the first encrypt or decrypt succeeds.
type Service struct {
	sessions domain.SessionDirectory
	prekeys  domain.PreKeyStore
	relay    domain.RelayClient
	log      *zap.Logger
	now      func() time.Time
}

// New constructs a session service.
func New(
	sessions domain.SessionDirectory,
	prekeys domain.PreKeyStore,
	relay domain.RelayClient,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		sessions: sessions,
		prekeys:  prekeys,
		relay:    relay,
		log:      log,
		now:      time.Now,
	}
}

// Outbound returns the stored session with peer, or runs X3DH as the
// initiator against the peer's published bundle.
//
// Steps for a new session:
//  1. Fetch the peer's bundles by user id and pick the one for peer.DeviceID.
//  2. Verify the signed pre-key and derive the root key.
//  3. Seed the sending chain from the X3DH ephemeral and the peer's SPK.
//  4. Return the handshake that lets the peer derive the same root.
func (s *Service) Outbound(
	ctx context.Context,
	account domain.LocalAccount,
	peer domain.PeerDevice,
) (domain.SessionRecord, *domain.HandshakeInit, error) {
	rec, err := s.sessions.LoadSession(ctx, account.Username, peer.Username)
	if err == nil {
		return rec, nil, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return domain.SessionRecord{}, nil, err
	}

	bundles, err := s.relay.FetchKeyBundle(ctx, peer.UserID)
	if err != nil {
		return domain.SessionRecord{}, nil, fmt.Errorf("fetch key bundle for %s: %w", peer.Username, err)
	}
	if len(bundles) == 0 {
		return domain.SessionRecord{}, nil, fmt.Errorf("%s: %w", peer.Username, errs.ErrNoDevicesForPeer)
	}
	bundle := bundles[0].KeyBundle
	for _, b := range bundles {
		if b.DeviceID == peer.DeviceID {
			bundle = b.KeyBundle
			break
		}
	}

	ag, err := x3dh.InitiatorRoot(account.Identity, bundle)
	if err != nil {
		return domain.SessionRecord{}, nil, fmt.Errorf("x3dh with %s: %w", peer.Username, err)
	}
	st, err := ratchet.InitSender(ag.RootKey, ag.EphemeralPriv, ag.EphemeralPub, bundle.SignedPreKey, ag.AssociatedData)
	if err != nil {
		return domain.SessionRecord{}, nil, err
	}

	now := s.now().UTC()
	rec = domain.SessionRecord{
		Owner:           account.Username,
		Peer:            peer.Username,
		PeerIdentityKey: bundle.IdentityKey,
		Role:            domain.RoleInitiator,
		CreatedAt:       now,
		UpdatedAt:       now,
		State:           st,
	}
	hs := &domain.HandshakeInit{
		SenderIdentity:  account.Identity.XPub,
		SignedPreKeyID:  ag.SignedPreKeyID,
		OneTimePreKeyID: ag.OneTimePreKeyID,
	}
	s.log.Info("session initiated",
		zap.String("owner", account.Username.String()),
		zap.String("peer", peer.Username.String()),
		zap.Bool("one_time_pre_key", ag.OneTimePreKeyID != ""),
	)
	return rec, hs, nil
}

// Inbound returns the stored session with sender, or a new responder session
// built from the handshake in header.
func (s *Service) Inbound(
	ctx context.Context,
	account domain.LocalAccount,
	sender domain.Username,
	header domain.RatchetHeader,
) (domain.SessionRecord, bool, error) {
	rec, err := s.sessions.LoadSession(ctx, account.Username, sender)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return domain.SessionRecord{}, false, err
	}

	rec, err = s.Respond(ctx, account, sender, header)
	if err != nil {
		return domain.SessionRecord{}, false, err
	}
	return rec, true, nil
}

// Respond runs the responder path for the handshake carried by header. The
// one-time pre-key it names is looked up but left in the store.
func (s *Service) Respond(
	ctx context.Context,
	account domain.LocalAccount,
	sender domain.Username,
	header domain.RatchetHeader,
) (domain.SessionRecord, error) {
	hs := header.Handshake
	if hs == nil {
		return domain.SessionRecord{}, fmt.Errorf("from %s: %w", sender, errs.ErrMissingHandshake)
	}
	if err := ctx.Err(); err != nil {
		return domain.SessionRecord{}, err
	}

	spkPriv, spkPub, _, ok, err := s.prekeys.LoadSignedPreKey(hs.SignedPreKeyID)
	if err != nil {
		return domain.SessionRecord{}, err
	}
	if !ok {
		return domain.SessionRecord{}, fmt.Errorf("unknown signed pre-key %s: %w", hs.SignedPreKeyID, errs.ErrInvalidEnvelope)
	}

	var opkPriv *domain.X25519Private
	if hs.OneTimePreKeyID != "" {
		priv, _, ok, err := s.prekeys.LoadOneTimePreKey(hs.OneTimePreKeyID)
		if err != nil {
			return domain.SessionRecord{}, err
		}
		if !ok {
			return domain.SessionRecord{}, fmt.Errorf("unknown one-time pre-key %s: %w", hs.OneTimePreKeyID, errs.ErrInvalidEnvelope)
		}
		opkPriv = &priv
	}

	root, err := x3dh.ResponderRoot(account.Identity, spkPriv, opkPriv, hs.SenderIdentity, header.DiffieHellmanPublicKey)
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("x3dh from %s: %w", sender, err)
	}
	ad := x3dh.AssociatedData(hs.SenderIdentity, account.Identity.XPub)

	now := s.now().UTC()
	return domain.SessionRecord{
		Owner:           account.Username,
		Peer:            sender,
		PeerIdentityKey: hs.SenderIdentity,
		Role:            domain.RoleResponder,
		HandshakeKeys:   []domain.X25519Public{header.DiffieHellmanPublicKey},
		CreatedAt:       now,
		UpdatedAt:       now,
		State:           ratchet.InitReceiver(root, spkPriv, spkPub, ad),
	}, nil
}

// Finalize consumes the one-time pre-key named by an accepted handshake. A key
// that is already gone is not an error.
func (s *Service) Finalize(ctx context.Context, handshake *domain.HandshakeInit) error {
	if handshake == nil || handshake.OneTimePreKeyID == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, ok, err := s.prekeys.ConsumeOneTimePreKey(handshake.OneTimePreKeyID)
	if err != nil {
		return fmt.Errorf("consume one-time pre-key %s: %w", handshake.OneTimePreKeyID, err)
	}
	if ok {
		s.log.Debug("one-time pre-key consumed", zap.String("id", handshake.OneTimePreKeyID.String()))
	}
	return nil
}

// Compile-time assertion that Service implements domain.SessionService.
var _ domain.SessionService = (*Service)(nil)

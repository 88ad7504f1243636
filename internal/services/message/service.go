package message

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
	"cipherchat/internal/protocol/guard"
	"cipherchat/internal/protocol/ratchet"
	"cipherchat/internal/protocol/wire"
	"cipherchat/internal/util/keylock"
)

// Service sends and receives messages over the relay using Double Ratchet.
//
// High-level flow:
//   - Send: resolve the peer, establish a session if none exists, encrypt,
//     persist the advanced state, then post via the relay. Only the first
//     envelope of a session carries the handshake.
//   - Receive: decode the header, classify it against the stored session,
//     decrypt on a working copy and persist only what opened.
//   - Fetch: Receive every queued envelope, then ack the processed ones and
//     those that can never be processed.
//
// All work on one (owner, peer) session is serialised by a keyed lock and
// the session backend's cross-process lock.
type Service struct {
	peers    domain.PeerDirectory
	sessions domain.SessionService
	store    domain.SessionDirectory
	relay    domain.RelayClient
	history  domain.HistoryStore
	locks    *keylock.Locker
	log      *zap.Logger
	now      func() time.Time
}

// New constructs a message service.
func New(
	peers domain.PeerDirectory,
	sessions domain.SessionService,
	store domain.SessionDirectory,
	relay domain.RelayClient,
	history domain.HistoryStore,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		peers:    peers,
		sessions: sessions,
		store:    store,
		relay:    relay,
		history:  history,
		locks:    keylock.New(),
		log:      log,
		now:      time.Now,
	}
}

// Send encrypts plaintext for to and posts it to the relay.
//
// The advanced ratchet state is stored before transmit. A transmit failure
// returns errs.ErrSendFailed and the next Send uses the following counter.
// Until an envelope carrying the handshake of a new session reaches the
// relay, every envelope carries it, and the lock is held through transmit
// so a concurrent Send cannot overtake it.
func (s *Service) Send(
	ctx context.Context,
	account domain.LocalAccount,
	to domain.Username,
	plaintext []byte,
) error {
	dev, err := s.peers.Resolve(ctx, to)
	if err != nil {
		return err
	}

	unlock, err := s.lock(ctx, domain.SessionKeyFor(account.Username, to))
	if err != nil {
		return err
	}
	defer unlock()

	rec, hs, err := s.sessions.Outbound(ctx, account, dev)
	if err != nil {
		return err
	}
	if hs != nil {
		rec.PendingHandshake = hs
	}
	hs = rec.PendingHandshake

	header, ct, err := ratchet.Encrypt(&rec.State, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt for %s: %w", to, err)
	}
	header.Handshake = hs

	raw, err := wire.EncodeHeader(rec.State.AssociatedData, header)
	if err != nil {
		return err
	}

	rec.UpdatedAt = s.now().UTC()
	if err := s.store.StoreSession(ctx, rec); err != nil {
		return fmt.Errorf("store session %s: %w", rec.Key(), err)
	}

	if hs == nil {
		unlock()
	}

	env := domain.OutboundEnvelope{
		RecipientDeviceID: dev.DeviceID,
		Ciphertext:        ct,
		Header:            raw,
	}
	if err := s.relay.SendMessage(ctx, account.Credentials(), env); err != nil {
		s.log.Warn("send failed",
			zap.String("peer", to.String()),
			zap.Uint32("n", header.MessageIndex),
			zap.Error(err),
		)
		return fmt.Errorf("%w: to %s: %w", errs.ErrSendFailed, to, err)
	}

	if hs != nil {
		rec.PendingHandshake = nil
		if err := s.store.StoreSession(ctx, rec); err != nil {
			return fmt.Errorf("store session %s: %w", rec.Key(), err)
		}
	}
	unlock()

	s.log.Debug("message sent",
		zap.String("peer", to.String()),
		zap.Uint32("n", header.MessageIndex),
		zap.Bool("handshake", hs != nil),
	)
	s.appendHistory(ctx, domain.HistoryEntry{
		Owner:     account.Username,
		Peer:      to,
		Sender:    account.Username,
		Recipient: to,
		Content:   string(plaintext),
		Outgoing:  true,
		Read:      true,
		Timestamp: s.now().UTC(),
	})
	return nil
}

// Receive decrypts a single envelope from the relay.
//
// A duplicate returns errs.ErrStaleMessage and a failed decrypt returns
// errs.ErrDecryptionFailed. Neither touches the stored session.
func (s *Service) Receive(
	ctx context.Context,
	account domain.LocalAccount,
	env domain.InboundEnvelope,
) (domain.DecryptedMessage, error) {
	ad, header, err := wire.DecodeHeader(env.Header)
	if err != nil {
		return domain.DecryptedMessage{}, fmt.Errorf("envelope %s from %s: %w", env.ID, env.Sender, err)
	}

	unlock, err := s.lock(ctx, domain.SessionKeyFor(account.Username, env.Sender))
	if err != nil {
		return domain.DecryptedMessage{}, err
	}
	defer unlock()

	rec, created, err := s.sessions.Inbound(ctx, account, env.Sender, header)
	if err != nil {
		return domain.DecryptedMessage{}, err
	}

	var (
		plaintext []byte
		accepted  *domain.HandshakeInit
	)
	switch {
	case created:
		plaintext, err = decrypt(&rec.State, ad, header, env.Ciphertext)
		accepted = header.Handshake

	default:
		switch guard.ClassifySession(rec, header) {
		case guard.Stale:
			return domain.DecryptedMessage{}, fmt.Errorf("envelope %s from %s n=%d: %w",
				env.ID, env.Sender, header.MessageIndex, errs.ErrStaleMessage)
		case guard.SkipHit:
			plaintext, err = decryptSkipped(&rec.State, ad, header, env.Ciphertext)
		default:
			if header.Handshake != nil && header.DiffieHellmanPublicKey != rec.State.PeerDiffieHellmanPublic {
				rec, plaintext, err = s.resolveConflict(ctx, account, rec, ad, header, env.Ciphertext)
				accepted = header.Handshake
			} else {
				plaintext, err = decrypt(&rec.State, ad, header, env.Ciphertext)
			}
		}
	}
	if err != nil {
		return domain.DecryptedMessage{}, fmt.Errorf("envelope %s from %s: %w", env.ID, env.Sender, err)
	}

	rec.Confirmed = true
	rec.PendingHandshake = nil
	rec.UpdatedAt = s.now().UTC()
	if err := s.store.StoreSession(ctx, rec); err != nil {
		return domain.DecryptedMessage{}, fmt.Errorf("store session %s: %w", rec.Key(), err)
	}
	if err := s.sessions.Finalize(ctx, accepted); err != nil {
		s.log.Error("finalize handshake", zap.String("peer", env.Sender.String()), zap.Error(err))
	}

	msg := domain.DecryptedMessage{
		ID:        env.ID,
		From:      env.Sender,
		To:        account.Username,
		Plaintext: plaintext,
		Timestamp: env.Timestamp,
	}
	s.appendHistory(ctx, domain.HistoryEntry{
		Owner:     account.Username,
		Peer:      env.Sender,
		Sender:    env.Sender,
		Recipient: account.Username,
		Content:   string(plaintext),
		Timestamp: env.Timestamp,
	})
	return msg, nil
}

// Fetch receives every queued envelope. Errors on one envelope never abort
// the batch. Envelopes that failed for a retryable reason stay queued.
func (s *Service) Fetch(ctx context.Context, account domain.LocalAccount) (domain.FetchResult, error) {
	cred := account.Credentials()
	envs, err := s.relay.FetchMessages(ctx, cred)
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("fetch messages: %w", err)
	}

	var res domain.FetchResult
	ack := make([]string, 0, len(envs))
	for _, env := range envs {
		msg, err := s.Receive(ctx, account, env)
		switch {
		case err == nil:
			res.Messages = append(res.Messages, msg)
			ack = append(ack, env.ID)
		case errors.Is(err, errs.ErrStaleMessage):
			s.log.Debug("duplicate dropped", zap.String("id", env.ID), zap.String("peer", env.Sender.String()))
			res.Stale++
			ack = append(ack, env.ID)
		case errs.Dropped(err):
			s.log.Warn("envelope dropped", zap.String("id", env.ID), zap.String("peer", env.Sender.String()), zap.Error(err))
			res.Failures = append(res.Failures, domain.FetchFailure{EnvelopeID: env.ID, Sender: env.Sender, Err: err, Dropped: true})
			ack = append(ack, env.ID)
		default:
			s.log.Warn("envelope kept for retry", zap.String("id", env.ID), zap.String("peer", env.Sender.String()), zap.Error(err))
			res.Failures = append(res.Failures, domain.FetchFailure{EnvelopeID: env.ID, Sender: env.Sender, Err: err})
		}
	}

	if len(ack) > 0 {
		if err := s.relay.AckMessages(ctx, cred, ack); err != nil {
			return res, fmt.Errorf("ack %d messages: %w", len(ack), err)
		}
		res.Acked = len(ack)
	}
	return res, nil
}

// resolveConflict handles a handshake that arrives for an existing session
// under a ratchet key we have not seen.
//
// An unconfirmed initiator session means both sides initiated at once; the
// handshake from the lower identity key wins and the losing one is
// remembered so it cannot win later. Otherwise the peer has reset the
// session. A winning handshake replaces rec only if its message opens, and
// the replacement inherits the handshake and ratchet key history of rec.
func (s *Service) resolveConflict(
	ctx context.Context,
	account domain.LocalAccount,
	rec domain.SessionRecord,
	ad domain.SharedData,
	header domain.RatchetHeader,
	ciphertext []byte,
) (domain.SessionRecord, []byte, error) {
	hs, key := header.Handshake, header.DiffieHellmanPublicKey
	if hs.SenderIdentity != rec.PeerIdentityKey {
		return rec, nil, fmt.Errorf("handshake from %s: %w", rec.Peer, errs.ErrIdentityMismatch)
	}
	if slices.Contains(rec.HandshakeKeys, key) || ratchet.IsRetired(rec.State, key) {
		return rec, nil, fmt.Errorf("handshake from %s replayed: %w", rec.Peer, errs.ErrStaleMessage)
	}

	simultaneous := rec.Role == domain.RoleInitiator && !rec.Confirmed
	if simultaneous && bytes.Compare(account.Identity.XPub.Slice(), hs.SenderIdentity.Slice()) < 0 {
		guard.RememberHandshake(&rec, key)
		if err := s.store.StoreSession(ctx, rec); err != nil {
			return rec, nil, fmt.Errorf("store session %s: %w", rec.Key(), err)
		}
		return rec, nil, fmt.Errorf("handshake from %s lost tie-break: %w", rec.Peer, errs.ErrSessionConflict)
	}

	candidate, err := s.sessions.Respond(ctx, account, rec.Peer, header)
	if err != nil {
		return rec, nil, err
	}
	plaintext, err := decrypt(&candidate.State, ad, header, ciphertext)
	if err != nil {
		return rec, nil, err
	}
	candidate.HandshakeKeys = slices.Clone(rec.HandshakeKeys)
	guard.RememberHandshake(&candidate, key)
	ratchet.Supersede(&candidate.State, rec.State)
	s.log.Info("session replaced by peer handshake",
		zap.String("owner", account.Username.String()),
		zap.String("peer", rec.Peer.String()),
		zap.Bool("simultaneous", simultaneous),
	)
	return candidate, plaintext, nil
}

// lock serialises work on key within this process and across processes
// sharing the session backend.
func (s *Service) lock(ctx context.Context, key domain.SessionKey) (func(), error) {
	release := s.locks.Lock(key.String())
	unlockStore, err := s.store.LockSession(ctx, key)
	if err != nil {
		release()
		return nil, fmt.Errorf("lock session %s: %w", key, err)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			unlockStore()
			release()
		})
	}, nil
}

func (s *Service) appendHistory(ctx context.Context, entry domain.HistoryEntry) {
	if s.history == nil {
		return
	}
	if err := s.history.AppendMessage(ctx, entry); err != nil {
		s.log.Warn("append history", zap.String("peer", entry.Peer.String()), zap.Error(err))
	}
}

func decrypt(st *domain.RatchetState, ad domain.SharedData, h domain.RatchetHeader, ct []byte) ([]byte, error) {
	if ad != st.AssociatedData {
		return nil, fmt.Errorf("associated data mismatch: %w", errs.ErrInvalidEnvelope)
	}
	return ratchet.Decrypt(st, ad, h, ct)
}

func decryptSkipped(st *domain.RatchetState, ad domain.SharedData, h domain.RatchetHeader, ct []byte) ([]byte, error) {
	if ad != st.AssociatedData {
		return nil, fmt.Errorf("associated data mismatch: %w", errs.ErrInvalidEnvelope)
	}
	return ratchet.DecryptSkipped(st, ad, h, ct)
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)

package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"cipherchat/internal/domain"
	"cipherchat/internal/relay"
	backupsvc "cipherchat/internal/services/backup"
	identitysvc "cipherchat/internal/services/identity"
	messagesvc "cipherchat/internal/services/message"
	peersvc "cipherchat/internal/services/peer"
	prekeysvc "cipherchat/internal/services/prekey"
	sessionsvc "cipherchat/internal/services/session"
	"cipherchat/internal/store"
	"cipherchat/internal/store/postgres"
)

var (
	// ErrNoAccount is returned when no local account matches the configuration.
	ErrNoAccount = errors.New("no local account; run init and register first")

	// ErrHomeInUse is returned when a home that already holds an account is
	// asked to register another one.
	ErrHomeInUse = errors.New("home already holds another account; use a separate --home")
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Config   Config
	Log      *zap.Logger
	Identity domain.IdentityService
	Prekeys  domain.PreKeyService
	Accounts domain.AccountStore
	Peers    domain.PeerDirectory
	Sessions domain.SessionDirectory
	Messages domain.MessageService
	History  domain.HistoryStore
	Backup   domain.BackupService
	Relay    domain.RelayClient

	db *postgres.DB
}

// NewWire constructs the dependency graph from cfg. Sessions and the peer
// cache live in Postgres when cfg.DatabaseURL is set and under cfg.Home
// otherwise.
func NewWire(ctx context.Context, cfg Config, log *zap.Logger) (*Wire, error) {
	if log == nil {
		log = zap.NewNop()
	}

	// File-based stores
	identityStore := store.NewIdentityFileStore(cfg.Home)
	prekeyStore := store.NewPrekeyFileStore(cfg.Home)
	accountStore := store.NewAccountFileStore(cfg.Home)
	historyStore := store.NewHistoryFileStore(cfg.Home)

	var (
		sessions domain.SessionDirectory = store.NewSessionFileStore(cfg.Home)
		peers    domain.PeerDeviceStore  = store.NewPeerFileStore(cfg.Home)
		db       *postgres.DB
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		sessions = postgres.NewSessionRepo(db)
		peers = postgres.NewPeerRepo(db)
		log.Debug("using postgres session directory")
	}

	// Relay client
	rc := relay.NewHTTP(cfg.RelayURL, log.Named("relay"))
	if cfg.HTTP != nil {
		rc.HTTP = cfg.HTTP
	}

	// High-level services
	identitySvc := identitysvc.New(identityStore, log.Named("identity"))
	prekeySvc := prekeysvc.New(identityStore, prekeyStore, log.Named("prekey"))
	peerSvc := peersvc.New(rc, peers, log.Named("peer"))
	sessionSvc := sessionsvc.New(sessions, prekeyStore, rc, log.Named("session"))
	messageSvc := messagesvc.New(peerSvc, sessionSvc, sessions, rc, historyStore, log.Named("message"))
	backupSvc := backupsvc.New(identityStore, prekeyStore, accountStore, store.NewSealer(), log.Named("backup"))

	return &Wire{
		Config:   cfg,
		Log:      log,
		Identity: identitySvc,
		Prekeys:  prekeySvc,
		Accounts: accountStore,
		Peers:    peerSvc,
		Sessions: sessions,
		Messages: messageSvc,
		History:  historyStore,
		Backup:   backupSvc,
		Relay:    rc,
		db:       db,
	}, nil
}

// Close releases the database pool, if any.
func (w *Wire) Close() {
	if w.db != nil {
		w.db.Close()
	}
}

// Profile returns the account profile for the configured relay. Without a
// configured username the relay must have exactly one local profile.
func (w *Wire) Profile() (domain.AccountProfile, error) {
	if w.Config.Username != "" {
		p, ok, err := w.Accounts.LoadAccountProfile(w.Config.RelayURL, domain.Username(w.Config.Username))
		if err != nil {
			return domain.AccountProfile{}, err
		}
		if !ok {
			return domain.AccountProfile{}, fmt.Errorf("%s on %s: %w", w.Config.Username, w.Config.RelayURL, ErrNoAccount)
		}
		return p, nil
	}

	all, err := w.Accounts.ListAccountProfiles()
	if err != nil {
		return domain.AccountProfile{}, err
	}
	var match []domain.AccountProfile
	for _, p := range all {
		if p.ServerURL == w.Config.RelayURL {
			match = append(match, p)
		}
	}
	switch len(match) {
	case 0:
		return domain.AccountProfile{}, ErrNoAccount
	case 1:
		return match[0], nil
	default:
		return domain.AccountProfile{}, fmt.Errorf("%d accounts on %s; pass --username", len(match), w.Config.RelayURL)
	}
}

// CheckNewAccount validates username and makes sure the home holds no other
// account. The identity and pre-key stores are per home, so re-registering
// the same account on the same relay is the only repeat allowed.
func (w *Wire) CheckNewAccount(username domain.Username) error {
	if err := username.Validate(); err != nil {
		return err
	}
	all, err := w.Accounts.ListAccountProfiles()
	if err != nil {
		return err
	}
	for _, p := range all {
		if p.Username != username || p.ServerURL != w.Config.RelayURL {
			return fmt.Errorf("%s on %s: %w", p.Username, p.ServerURL, ErrHomeInUse)
		}
	}
	return nil
}

// Account unlocks the identity and returns the owner context for the
// configured profile.
func (w *Wire) Account(passphrase string) (domain.LocalAccount, error) {
	p, err := w.Profile()
	if err != nil {
		return domain.LocalAccount{}, err
	}
	id, err := w.Identity.LoadIdentity(passphrase)
	if err != nil {
		return domain.LocalAccount{}, fmt.Errorf("unlock identity: %w", err)
	}
	return domain.LocalAccount{Username: p.Username, Identity: id}, nil
}

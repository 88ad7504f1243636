// Package memrelay is an in-memory relay server implementing the HTTP API
// spoken by internal/relay. It backs cmd/relay and end-to-end tests.
//
// Queued envelopes stay in FIFO order per device until acknowledged.
package memrelay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"cipherchat/internal/domain"
	"cipherchat/internal/relay"
)

type account struct {
	userID   domain.UserID
	deviceID domain.DeviceID
	username domain.Username
	bundle   domain.PreKeyBundle
}

// Server holds every account, queue and seen token id in memory.
type Server struct {
	log *zap.Logger
	now func() time.Time
	mux *http.ServeMux

	mu         sync.Mutex
	byName     map[domain.Username]*account
	bySigner   map[domain.Ed25519Public]*account
	byUserID   map[domain.UserID]*account
	queues     map[domain.DeviceID][]domain.InboundEnvelope
	seenTokens map[string]time.Time
	nextUser   domain.UserID
	nextDevice domain.DeviceID
}

// New returns an empty relay.
func New(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:        log,
		now:        time.Now,
		mux:        http.NewServeMux(),
		byName:     make(map[domain.Username]*account),
		bySigner:   make(map[domain.Ed25519Public]*account),
		byUserID:   make(map[domain.UserID]*account),
		queues:     make(map[domain.DeviceID][]domain.InboundEnvelope),
		seenTokens: make(map[string]time.Time),
	}
	s.mux.HandleFunc("POST /account/register", s.handleRegister)
	s.mux.HandleFunc("GET /account/search", s.handleSearch)
	s.mux.HandleFunc("GET /account/key-bundle", s.handleKeyBundle)
	s.mux.HandleFunc("POST /message/send", s.handleSend)
	s.mux.HandleFunc("POST /message/fetch", s.handleFetch)
	s.mux.HandleFunc("POST /message/ack", s.handleAck)
	return s
}

// Handler returns the relay routes wrapped in access logging.
func (s *Server) Handler() http.Handler { return logging(s.log, s.mux) }

// Pending reports how many envelopes are queued for username.
func (s *Server) Pending(username domain.Username) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byName[username]
	if !ok {
		return 0
	}
	return len(s.queues[acct.deviceID])
}

type registerRequest struct {
	Username  domain.Username     `json:"username"`
	KeyBundle domain.PreKeyBundle `json:"key_bundle"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Username.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.checkToken(r, req.KeyBundle.SigningKey, req.Username); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	if _, taken := s.byName[req.Username]; taken {
		s.mu.Unlock()
		http.Error(w, "username taken", http.StatusConflict)
		return
	}
	s.nextUser++
	s.nextDevice++
	acct := &account{
		userID:   s.nextUser,
		deviceID: s.nextDevice,
		username: req.Username,
		bundle:   req.KeyBundle,
	}
	s.byName[acct.username] = acct
	s.bySigner[req.KeyBundle.SigningKey] = acct
	s.byUserID[acct.userID] = acct
	s.mu.Unlock()

	s.log.Info("registered",
		zap.String("username", acct.username.String()),
		zap.Uint64("user_id", uint64(acct.userID)),
		zap.Int("one_time_pre_keys", len(req.KeyBundle.OneTimePreKeys)),
	)
	writeJSON(w, domain.Registration{UserID: acct.userID, DeviceID: acct.deviceID})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("username")
	if q == "" {
		http.Error(w, "username required", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	out := []domain.DirectoryUser{}
	for name, acct := range s.byName {
		if strings.Contains(name.String(), q) {
			out = append(out, domain.DirectoryUser{
				ID:       acct.userID,
				Username: name,
				Devices:  []domain.DirectoryDevice{{ID: acct.deviceID}},
			})
		}
	}
	s.mu.Unlock()
	writeJSON(w, out)
}

// handleKeyBundle hands out the bundle with at most one one-time pre-key,
// removing that key from the pool.
func (s *Server) handleKeyBundle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		http.Error(w, "bad user_id", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	acct, ok := s.byUserID[domain.UserID(id)]
	if !ok {
		s.mu.Unlock()
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	bundle := acct.bundle
	bundle.OneTimePreKeys = nil
	if pool := acct.bundle.OneTimePreKeys; len(pool) > 0 {
		bundle.OneTimePreKeys = []domain.OneTimePreKeyPublic{pool[0]}
		acct.bundle.OneTimePreKeys = append([]domain.OneTimePreKeyPublic(nil), pool[1:]...)
	}
	deviceID := acct.deviceID
	s.mu.Unlock()

	writeJSON(w, []domain.DeviceBundle{{DeviceID: deviceID, KeyBundle: bundle}})
}

type sendRequest struct {
	Messages []domain.OutboundEnvelope `json:"messages"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	sender, err := s.authenticate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range req.Messages {
		if _, ok := s.queues[m.RecipientDeviceID]; !ok && !s.knownDevice(m.RecipientDeviceID) {
			http.Error(w, "unknown recipient device", http.StatusNotFound)
			return
		}
	}
	for _, m := range req.Messages {
		id, err := uuid.NewV4()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.queues[m.RecipientDeviceID] = append(s.queues[m.RecipientDeviceID], domain.InboundEnvelope{
			ID:         id.String(),
			Sender:     sender.username,
			Ciphertext: m.Ciphertext,
			Header:     m.Header,
			Timestamp:  s.now().UTC(),
		})
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	acct, err := s.authenticate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	s.mu.Lock()
	out := append([]domain.InboundEnvelope{}, s.queues[acct.deviceID]...)
	s.mu.Unlock()
	writeJSON(w, out)
}

type ackRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	acct, err := s.authenticate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	acked := make(map[string]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		acked[id] = struct{}{}
	}

	s.mu.Lock()
	q := s.queues[acct.deviceID]
	kept := q[:0]
	for _, env := range q {
		if _, ok := acked[env.ID]; !ok {
			kept = append(kept, env)
		}
	}
	s.queues[acct.deviceID] = kept
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// authenticate resolves the caller from the identity header and its token.
func (s *Server) authenticate(r *http.Request) (*account, error) {
	var signer domain.Ed25519Public
	if err := signer.UnmarshalText([]byte(r.Header.Get(relay.HeaderIdentity))); err != nil {
		return nil, errors.New("bad identity header")
	}

	s.mu.Lock()
	acct, ok := s.bySigner[signer]
	s.mu.Unlock()
	if !ok {
		return nil, errors.New("unknown identity")
	}
	if err := s.checkToken(r, signer, acct.username); err != nil {
		return nil, err
	}
	return acct, nil
}

// checkToken verifies the bearer token against signer and burns its jti.
func (s *Server) checkToken(r *http.Request, signer domain.Ed25519Public, username domain.Username) error {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return errors.New("missing bearer token")
	}
	now := s.now()
	claims, err := relay.VerifyToken(raw, signer, now)
	if err != nil {
		return err
	}
	if claims.Subject != username.String() {
		return errors.New("token subject mismatch")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, exp := range s.seenTokens {
		if now.After(exp) {
			delete(s.seenTokens, id)
		}
	}
	if _, replay := s.seenTokens[claims.ID]; replay {
		return errors.New("token already used")
	}
	s.seenTokens[claims.ID] = claims.ExpiresAt.Time
	return nil
}

func (s *Server) knownDevice(id domain.DeviceID) bool {
	for _, acct := range s.byName {
		if acct.deviceID == id {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

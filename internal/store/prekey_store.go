package store

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"cipherchat/internal/domain"
)

const prekeysFile = "prekeys.json"

// PrekeyFileStore keeps every signed and one-time pre-key in one document.
//
// One-time pre-keys are looked up while a handshake is verified and consumed
// only once the resulting session is stored.
type PrekeyFileStore struct {
	path string
	mu   sync.Mutex
}

// NewPrekeyFileStore returns a PrekeyFileStore rooted at dir.
func NewPrekeyFileStore(dir string) *PrekeyFileStore {
	return &PrekeyFileStore{path: filepath.Join(dir, prekeysFile)}
}

type signedEntry struct {
	Priv domain.X25519Private `json:"priv"`
	Pub  domain.X25519Public  `json:"pub"`
	Sig  []byte               `json:"sig"`
}

type oneTimeEntry struct {
	Priv domain.X25519Private `json:"priv"`
	Pub  domain.X25519Public  `json:"pub"`
}

type prekeyDoc struct {
	Current domain.SignedPreKeyID                   `json:"current,omitempty"`
	Signed  map[domain.SignedPreKeyID]signedEntry   `json:"signed"`
	OneTime map[domain.OneTimePreKeyID]oneTimeEntry `json:"one_time"`
}

// load must be called with s.mu held.
func (s *PrekeyFileStore) load() (*prekeyDoc, error) {
	doc := &prekeyDoc{}
	if err := readJSON(s.path, doc); err != nil {
		return nil, err
	}
	if doc.Signed == nil {
		doc.Signed = map[domain.SignedPreKeyID]signedEntry{}
	}
	if doc.OneTime == nil {
		doc.OneTime = map[domain.OneTimePreKeyID]oneTimeEntry{}
	}
	return doc, nil
}

// update applies fn to the document and writes it back unless fn fails.
func (s *PrekeyFileStore) update(fn func(*prekeyDoc) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return writeJSON(s.path, doc, 0o600)
}

func (s *PrekeyFileStore) view() (*prekeyDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *PrekeyFileStore) SaveSignedPreKey(
	id domain.SignedPreKeyID,
	priv domain.X25519Private,
	pub domain.X25519Public,
	sig []byte,
) error {
	return s.update(func(d *prekeyDoc) error {
		d.Signed[id] = signedEntry{Priv: priv, Pub: pub, Sig: sig}
		return nil
	})
}

func (s *PrekeyFileStore) LoadSignedPreKey(
	id domain.SignedPreKeyID,
) (
	priv domain.X25519Private,
	pub domain.X25519Public,
	sig []byte,
	ok bool,
	err error,
) {
	doc, err := s.view()
	if err != nil {
		return priv, pub, nil, false, err
	}
	e, ok := doc.Signed[id]
	return e.Priv, e.Pub, e.Sig, ok, nil
}

func (s *PrekeyFileStore) SetCurrentSignedPreKeyID(id domain.SignedPreKeyID) error {
	return s.update(func(d *prekeyDoc) error {
		d.Current = id
		return nil
	})
}

func (s *PrekeyFileStore) CurrentSignedPreKeyID() (domain.SignedPreKeyID, bool, error) {
	doc, err := s.view()
	if err != nil {
		return "", false, err
	}
	return doc.Current, doc.Current != "", nil
}

// SaveOneTimePreKeys merges pairs into the store, replacing entries with the same id.
func (s *PrekeyFileStore) SaveOneTimePreKeys(pairs []domain.OneTimePreKeyPair) error {
	return s.update(func(d *prekeyDoc) error {
		for _, p := range pairs {
			d.OneTime[p.ID] = oneTimeEntry{Priv: p.Priv, Pub: p.Pub}
		}
		return nil
	})
}

// LoadOneTimePreKey returns a one-time pre-key without removing it.
func (s *PrekeyFileStore) LoadOneTimePreKey(
	id domain.OneTimePreKeyID,
) (
	priv domain.X25519Private,
	pub domain.X25519Public,
	ok bool,
	err error,
) {
	doc, err := s.view()
	if err != nil {
		return priv, pub, false, err
	}
	e, ok := doc.OneTime[id]
	return e.Priv, e.Pub, ok, nil
}

// ConsumeOneTimePreKey removes a one-time pre-key and returns it. A missing
// id is reported with ok false and leaves the file untouched.
func (s *PrekeyFileStore) ConsumeOneTimePreKey(
	id domain.OneTimePreKeyID,
) (
	priv domain.X25519Private,
	pub domain.X25519Public,
	ok bool,
	err error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return priv, pub, false, err
	}
	e, ok := doc.OneTime[id]
	if !ok {
		return priv, pub, false, nil
	}
	delete(doc.OneTime, id)
	if err = writeJSON(s.path, doc, 0o600); err != nil {
		return priv, pub, false, err
	}
	return e.Priv, e.Pub, true, nil
}

// ListOneTimePreKeyPublics returns the public halves ordered by id.
func (s *PrekeyFileStore) ListOneTimePreKeyPublics() ([]domain.OneTimePreKeyPublic, error) {
	doc, err := s.view()
	if err != nil {
		return nil, err
	}
	out := make([]domain.OneTimePreKeyPublic, 0, len(doc.OneTime))
	for id, e := range doc.OneTime {
		out = append(out, domain.OneTimePreKeyPublic{ID: id, Pub: e.Pub})
	}
	slices.SortFunc(out, func(a, b domain.OneTimePreKeyPublic) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return out, nil
}

var _ domain.PreKeyStore = (*PrekeyFileStore)(nil)

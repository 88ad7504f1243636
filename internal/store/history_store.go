package store

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"cipherchat/internal/domain"
)

const historyFile = "history.json"

// HistoryFileStore keeps decrypted conversation history, keyed by session key.
type HistoryFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewHistoryFileStore returns a HistoryFileStore rooted at dir.
func NewHistoryFileStore(dir string) *HistoryFileStore {
	return &HistoryFileStore{dir: dir}
}

// AppendMessage adds entry to the (owner, peer) conversation.
func (s *HistoryFileStore) AppendMessage(ctx context.Context, entry domain.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, historyFile)
	h := map[domain.SessionKey][]domain.HistoryEntry{}
	if err := readJSON(path, &h); err != nil {
		return err
	}
	key := domain.SessionKeyFor(entry.Owner, entry.Peer)
	h[key] = append(h[key], entry)
	return writeJSON(path, h, 0o600)
}

// ListMessages returns the newest limit entries oldest first; limit <= 0
// returns everything.
func (s *HistoryFileStore) ListMessages(
	ctx context.Context,
	owner domain.Username,
	peer domain.Username,
	limit int,
) ([]domain.HistoryEntry, error) {
	h, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	entries := h[domain.SessionKeyFor(owner, peer)]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// ListConversations summarises every peer owner has talked to, most recent first.
func (s *HistoryFileStore) ListConversations(
	ctx context.Context,
	owner domain.Username,
) ([]domain.Conversation, error) {
	h, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.Conversation
	for _, entries := range h {
		if len(entries) == 0 || entries[0].Owner != owner {
			continue
		}
		last := entries[len(entries)-1]
		c := domain.Conversation{
			Peer:        last.Peer,
			LastMessage: last.Content,
			LastAt:      last.Timestamp,
			Count:       len(entries),
		}
		for _, e := range entries {
			if !e.Outgoing && !e.Read {
				c.Unread++
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastAt.After(out[j].LastAt) })
	return out, nil
}

// MarkRead flags every incoming entry of the (owner, peer) conversation as read.
func (s *HistoryFileStore) MarkRead(ctx context.Context, owner, peer domain.Username) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, historyFile)
	h := map[domain.SessionKey][]domain.HistoryEntry{}
	if err := readJSON(path, &h); err != nil {
		return 0, err
	}
	key := domain.SessionKeyFor(owner, peer)
	n := 0
	for i := range h[key] {
		if e := &h[key][i]; !e.Outgoing && !e.Read {
			e.Read = true
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, writeJSON(path, h, 0o600)
}

func (s *HistoryFileStore) load(ctx context.Context) (map[domain.SessionKey][]domain.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h := map[domain.SessionKey][]domain.HistoryEntry{}
	if err := readJSON(filepath.Join(s.dir, historyFile), &h); err != nil {
		return nil, err
	}
	return h, nil
}

// Compile-time assertion that HistoryFileStore implements domain.HistoryStore.
var _ domain.HistoryStore = (*HistoryFileStore)(nil)

package services

import (
	"context"
	"slices"
	"sync"
)

// InMemoryStore implements HistoryStore for tests and for runs without a
// database.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionRecord
}

// NewInMemoryStore creates an in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*SessionRecord),
	}
}

func (s *InMemoryStore) SaveSession(ctx context.Context, rec *SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	cp.Rounds = slices.Clone(rec.Rounds)
	s.sessions[rec.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemoryStore) ListSessions(ctx context.Context, limit int) ([]*SessionRecord, error) {
	s.mu.RLock()
	out := make([]*SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		cp := *rec
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *SessionRecord) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

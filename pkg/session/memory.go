package session

import (
	"context"
	"sync"
)

// MemoryStore implements Store using an in-memory map. Find returns the
// stored instance itself, so refreshes and entry changes made through it are
// visible to every flow without an Update.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// Find returns the session with id. Returns nil, nil if not found.
func (s *MemoryStore) Find(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	return sess, nil
}

// Update inserts or replaces the session.
func (s *MemoryStore) Update(_ context.Context, sess *Session) error {
	if sess == nil || sess.ID() == "" {
		return ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID()] = sess
	return nil
}

// Remove deletes the session with id.
func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// SessionAges returns a snapshot of id -> last access. The copy is taken
// under the read lock, so callers may remove ids while iterating it.
func (s *MemoryStore) SessionAges(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ages := make(map[string]int64, len(s.sessions))
	for id, sess := range s.sessions {
		ages[id] = sess.LastAccessed()
	}
	return ages, nil
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)

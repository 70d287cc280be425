// Package session manages server-side sessions: id-keyed bags of string
// entries that expire after a period without access.
//
// The Service creates, finds, saves and removes sessions through a pluggable
// Store and registers a periodic sweep that evicts idle sessions. MemoryStore
// is the default Store; PostgreSQL and Redis stores live in subpackages.
package session

import (
	"context"
	"errors"
	"maps"
	"sync/atomic"
)

var (
	// ErrMissingID is returned when a session without an id is persisted.
	ErrMissingID = errors.New("session: missing id")

	// ErrNilStore is returned by NewService when no Store is given.
	ErrNilStore = errors.New("session: store is required")
)

// Session is a mutable bag of string entries identified by an id.
//
// The entry map is not synchronized. A Session must be confined to one
// request flow at a time, or the caller must serialize access. The access
// timestamp is safe to read and refresh concurrently.
type Session struct {
	id      string
	entries map[string]string

	// lastAccessed is epoch milliseconds; it only moves forward.
	lastAccessed atomic.Int64
	owner        atomic.Pointer[Service]
}

func newSession(id string, lastAccessed int64) *Session {
	s := &Session{
		id:      id,
		entries: make(map[string]string),
	}
	s.lastAccessed.Store(lastAccessed)
	return s
}

// Restore rebuilds a Session loaded from persistent storage. The entries
// map is copied.
func Restore(id string, entries map[string]string, lastAccessed int64) *Session {
	s := newSession(id, lastAccessed)
	maps.Copy(s.entries, entries)
	return s
}

// ID returns the session id, or "" once the session has been destroyed.
func (s *Session) ID() string {
	return s.id
}

// LastAccessed returns the last access time in epoch milliseconds.
func (s *Session) LastAccessed() int64 {
	return s.lastAccessed.Load()
}

// touch raises lastAccessed to ms. Older timestamps are ignored, so
// concurrent refreshes never move it backwards.
func (s *Session) touch(ms int64) {
	for {
		cur := s.lastAccessed.Load()
		if ms <= cur || s.lastAccessed.CompareAndSwap(cur, ms) {
			return
		}
	}
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.entries[key]
	return v, ok
}

// Set stores value under key. It does not persist the session; call
// Service.Set for that.
func (s *Session) Set(key, value string) {
	s.entries[key] = value
}

// Remove deletes key.
func (s *Session) Remove(key string) {
	delete(s.entries, key)
}

// Contains reports whether key has a value.
func (s *Session) Contains(key string) bool {
	_, ok := s.entries[key]
	return ok
}

// Len returns the number of entries.
func (s *Session) Len() int {
	return len(s.entries)
}

// Entries returns a copy of all entries.
func (s *Session) Entries() map[string]string {
	return maps.Clone(s.entries)
}

// Destroy removes the session from its Service's store, clears all entries
// and unsets the id. The instance must not be used as a session afterwards.
// Entries and id are cleared even when the store removal fails.
func (s *Session) Destroy(ctx context.Context) error {
	var err error
	if svc := s.owner.Swap(nil); svc != nil {
		err = svc.Remove(ctx, s)
	}
	clear(s.entries)
	s.id = ""
	return err
}

// Store persists sessions. Implementations must allow Find, Update and
// Remove to run concurrently with SessionAges.
type Store interface {
	// Find returns the session with id. Returns nil, nil if not found.
	Find(ctx context.Context, id string) (*Session, error)

	// Update inserts or replaces the session.
	Update(ctx context.Context, s *Session) error

	// Remove deletes the session with id. Removing an unknown id is not an error.
	Remove(ctx context.Context, id string) error

	// SessionAges returns a snapshot of id -> last access (epoch milliseconds).
	SessionAges(ctx context.Context) (map[string]int64, error)
}

// Toucher is implemented by stores that keep their own copy of the access
// time and need to hear about refreshes done by Service.Find.
type Toucher interface {
	// Touch raises the stored access time of id to at, if it is newer.
	Touch(ctx context.Context, id string, at int64) error
}

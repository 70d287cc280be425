// Package redis provides Redis storage for sessions.
//
// Each session is a JSON document under <prefix><id>. A sorted set under
// <prefix>ages scores every id by its last access time, which lets the
// sweep read all ages with one command.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/txn2/dobby/pkg/session"
)

// DefaultPrefix is prepended to every key when Config.Prefix is empty.
const DefaultPrefix = "session:"

const agesSuffix = "ages"

// Config configures the Redis session store.
type Config struct {
	Prefix string
}

// record is the stored form of a session.
type record struct {
	Entries      map[string]string `json:"entries"`
	LastAccessed int64             `json:"last_accessed"`
}

// Store implements session.Store using Redis.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// New creates a Redis-backed session store. The caller owns client.
func New(client goredis.UniversalClient, cfg Config) *Store {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		client: client,
		prefix: prefix,
	}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) agesKey() string {
	return s.prefix + agesSuffix
}

// Find returns the session with id. Returns nil, nil if not found. The
// access time is the later of the stored document and the ages index.
func (s *Store) Find(ctx context.Context, id string) (*session.Session, error) {
	var (
		get   *goredis.StringCmd
		score *goredis.FloatCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		get = pipe.Get(ctx, s.key(id))
		score = pipe.ZScore(ctx, s.agesKey(), id)
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	data, err := get.Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}

	if indexed, err := score.Result(); err == nil {
		rec.LastAccessed = max(rec.LastAccessed, int64(indexed))
	}
	return session.Restore(id, rec.Entries, rec.LastAccessed), nil
}

// Update inserts or replaces the session. The ages index only ever moves
// forward.
func (s *Store) Update(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.ID() == "" {
		return session.ErrMissingID
	}

	data, err := json.Marshal(record{
		Entries:      sess.Entries(),
		LastAccessed: sess.LastAccessed(),
	})
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.ID()), data, 0)
		pipe.ZAddArgs(ctx, s.agesKey(), goredis.ZAddArgs{
			GT:      true,
			Members: []goredis.Z{{Score: float64(sess.LastAccessed()), Member: sess.ID()}},
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// Touch raises the indexed access time of an existing id to at.
func (s *Store) Touch(ctx context.Context, id string, at int64) error {
	err := s.client.ZAddArgs(ctx, s.agesKey(), goredis.ZAddArgs{
		XX:      true,
		GT:      true,
		Members: []goredis.Z{{Score: float64(at), Member: id}},
	}).Err()
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

// Remove deletes the session with id.
func (s *Store) Remove(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		pipe.ZRem(ctx, s.agesKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// SessionAges returns id -> last access for every indexed session.
func (s *Store) SessionAges(ctx context.Context) (map[string]int64, error) {
	members, err := s.client.ZRangeWithScores(ctx, s.agesKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing session ages: %w", err)
	}

	ages := make(map[string]int64, len(members))
	for _, z := range members {
		id, ok := z.Member.(string)
		if !ok {
			id = fmt.Sprint(z.Member)
		}
		ages[id] = int64(z.Score)
	}
	return ages, nil
}

// Verify interface compliance.
var (
	_ session.Store   = (*Store)(nil)
	_ session.Toucher = (*Store)(nil)
)

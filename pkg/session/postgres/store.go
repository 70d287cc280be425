// Package postgres provides PostgreSQL storage for sessions.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/dobby/pkg/session"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const sessionsTable = "sessions"

// upsertSuffix replaces entries on conflict and keeps the newer access time.
const upsertSuffix = "ON CONFLICT (id) DO UPDATE SET " +
	"entries = EXCLUDED.entries, " +
	"last_accessed = GREATEST(sessions.last_accessed, EXCLUDED.last_accessed)"

// Store implements session.Store using PostgreSQL. Entries are stored as
// JSONB and the access time as epoch milliseconds.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL session store. The sessions table is created
// by the migrate package.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Find returns the session with id. Returns nil, nil if not found.
func (s *Store) Find(ctx context.Context, id string) (*session.Session, error) {
	query, args, err := psq.Select("entries", "last_accessed").
		From(sessionsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building find query: %w", err)
	}

	var (
		entriesJSON  []byte
		lastAccessed int64
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&entriesJSON, &lastAccessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	var entries map[string]string
	if len(entriesJSON) > 0 {
		if err := json.Unmarshal(entriesJSON, &entries); err != nil {
			return nil, fmt.Errorf("decoding session entries: %w", err)
		}
	}
	return session.Restore(id, entries, lastAccessed), nil
}

// Update inserts or replaces the session.
func (s *Store) Update(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.ID() == "" {
		return session.ErrMissingID
	}

	entriesJSON, err := json.Marshal(sess.Entries())
	if err != nil {
		return fmt.Errorf("encoding session entries: %w", err)
	}

	query, args, err := psq.Insert(sessionsTable).
		Columns("id", "entries", "last_accessed").
		Values(sess.ID(), entriesJSON, sess.LastAccessed()).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

// Touch raises the stored access time of id to at, if it is newer.
func (s *Store) Touch(ctx context.Context, id string, at int64) error {
	query, args, err := psq.Update(sessionsTable).
		Set("last_accessed", sq.Expr("GREATEST(last_accessed, ?)", at)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building touch query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

// Remove deletes the session with id.
func (s *Store) Remove(ctx context.Context, id string) error {
	query, args, err := psq.Delete(sessionsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// SessionAges returns id -> last access for every stored session.
func (s *Store) SessionAges(ctx context.Context) (map[string]int64, error) {
	query, args, err := psq.Select("id", "last_accessed").
		From(sessionsTable).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building ages query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing session ages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ages := make(map[string]int64)
	for rows.Next() {
		var (
			id           string
			lastAccessed int64
		)
		if err := rows.Scan(&id, &lastAccessed); err != nil {
			return nil, fmt.Errorf("scanning session age: %w", err)
		}
		ages[id] = lastAccessed
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return ages, nil
}

// Verify interface compliance.
var (
	_ session.Store   = (*Store)(nil)
	_ session.Toucher = (*Store)(nil)
)

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/txn2/dobby/pkg/configstore"
)

// Configuration keys read by ConfigFromLookup.
const (
	MaxAgeKey          = "dobby.session.maxAge"          // hours
	CleanupIntervalKey = "dobby.session.cleanUpInterval" // minutes
)

// Defaults applied when a key is absent or not positive.
const (
	DefaultMaxAge          = 24 * time.Hour
	DefaultCleanupInterval = 30 * time.Minute
)

// cleanupTaskName identifies the sweep in scheduler logs.
const cleanupTaskName = "session-cleanup"

// Config controls session expiry.
type Config struct {
	// MaxAge is how long a session may go without access before a sweep
	// removes it.
	MaxAge time.Duration

	// CleanupInterval is the time between sweeps.
	CleanupInterval time.Duration
}

// ConfigFromLookup reads session settings from configuration.
func ConfigFromLookup(l configstore.Lookup) Config {
	hours := l.Int(MaxAgeKey, int(DefaultMaxAge/time.Hour))
	minutes := l.Int(CleanupIntervalKey, int(DefaultCleanupInterval/time.Minute))
	return Config{
		MaxAge:          time.Duration(hours) * time.Hour,
		CleanupInterval: time.Duration(minutes) * time.Minute,
	}
}

func (c *Config) applyDefaults() {
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
}

// Scheduler runs a task repeatedly. *scheduler.Scheduler satisfies it.
type Scheduler interface {
	AddRepeating(name string, task func(), interval time.Duration) error
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now as the source of access times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator replaces the random session id generator.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		s.newID = gen
	}
}

// Service creates and tracks sessions on top of a Store and evicts the
// ones that have been idle longer than the configured maximum age.
type Service struct {
	store  Store
	maxAge time.Duration
	now    func() time.Time
	newID  func() (string, error)
}

// NewService creates a Service and, when sched is not nil, registers the
// periodic sweep on it. The first sweep runs immediately.
func NewService(store Store, sched Scheduler, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	cfg.applyDefaults()

	svc := &Service{
		store:  store,
		maxAge: cfg.MaxAge,
		now:    time.Now,
		newID:  generateSessionID,
	}
	for _, opt := range opts {
		opt(svc)
	}

	if sched != nil {
		slog.Info("session: starting cleanup scheduler",
			"interval", cfg.CleanupInterval,
			"max_age", cfg.MaxAge,
		)
		if err := sched.AddRepeating(cleanupTaskName, svc.cleanup, cfg.CleanupInterval); err != nil {
			return nil, fmt.Errorf("registering session cleanup: %w", err)
		}
	}
	return svc, nil
}

// Store returns the underlying store.
func (s *Service) Store() Store {
	return s.store
}

// MaxAge returns the idle time after which sessions are swept.
func (s *Service) MaxAge() time.Duration {
	return s.maxAge
}

func (s *Service) nowMillis() int64 {
	return s.now().UnixMilli()
}

// NewSession creates an empty session with a fresh random id and stores it.
func (s *Service) NewSession(ctx context.Context) (*Session, error) {
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}

	sess := newSession(id, s.nowMillis())
	sess.owner.Store(s)
	if err := s.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("storing new session: %w", err)
	}

	slog.Debug("session: created", "session_id", id)
	return sess, nil
}

// Find returns the session with id and refreshes its access time. An empty
// id or an unknown id returns nil, nil.
func (s *Service) Find(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, nil //nolint:nilnil // not-found is nil,nil throughout the package
	}

	sess, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding session: %w", err)
	}
	if sess == nil {
		return nil, nil //nolint:nilnil // not-found is nil,nil throughout the package
	}

	now := s.nowMillis()
	sess.touch(now)
	sess.owner.Store(s)

	if t, ok := s.store.(Toucher); ok {
		if err := t.Touch(ctx, id, now); err != nil {
			slog.Debug("session: touch failed", "session_id", id, "error", err)
		}
	}
	return sess, nil
}

// Set refreshes the access time of sess and saves it to the store.
func (s *Service) Set(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID() == "" {
		return ErrMissingID
	}

	sess.touch(s.nowMillis())
	sess.owner.Store(s)
	if err := s.store.Update(ctx, sess); err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	return nil
}

// Remove deletes sess from the store. A nil or destroyed session is a no-op.
func (s *Service) Remove(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID() == "" {
		return nil
	}
	if err := s.store.Remove(ctx, sess.ID()); err != nil {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}

// Sweep removes every session idle for longer than the maximum age and
// returns how many were removed. A failed removal does not stop the sweep;
// all failures are joined into the returned error.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	slog.Info("session: cleaning up sessions")

	ages, err := s.store.SessionAges(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading session ages: %w", err)
	}

	now := s.nowMillis()
	maxAge := s.maxAge.Milliseconds()

	var (
		removed int
		errs    []error
	)
	for id, last := range ages {
		if now-last <= maxAge {
			continue
		}
		if err := s.store.Remove(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("removing session %s: %w", id, err))
			continue
		}
		removed++
	}

	slog.Info("session: cleanup finished", "removed", removed, "remaining", len(ages)-removed)
	return removed, errors.Join(errs...)
}

func (s *Service) cleanup() {
	if _, err := s.Sweep(context.Background()); err != nil {
		slog.Warn("session: cleanup failed", "error", err)
	}
}

// Package platform wires the session service, its store and the cleanup
// scheduler into a process with an ordered start and stop.
package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/txn2/dobby/pkg/database/migrate"
	"github.com/txn2/dobby/pkg/scheduler"
	"github.com/txn2/dobby/pkg/session"
	sessionpostgres "github.com/txn2/dobby/pkg/session/postgres"
	sessionredis "github.com/txn2/dobby/pkg/session/redis"
)

// Platform is the main platform facade. A Platform is started at most once.
type Platform struct {
	config    *Config
	lifecycle *Lifecycle
	scheduler *scheduler.Scheduler

	// Storage. Connections opened by the platform are closed on Stop.
	db        *sql.DB
	ownsDB    bool
	redis     goredis.UniversalClient
	ownsRedis bool
	store     session.Store

	sessionOpts []session.Option
	sessions    *session.Service
}

// New creates a new platform instance. Nothing is opened until Start.
func New(opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, errors.New("config is required")
	}
	if err := options.Config.Validate(); err != nil {
		return nil, err
	}

	p := &Platform{
		config:      options.Config,
		lifecycle:   NewLifecycle(),
		scheduler:   scheduler.New(options.Config.Scheduler),
		db:          options.DB,
		redis:       options.Redis,
		store:       options.SessionStore,
		sessionOpts: options.SessionOptions,
	}

	p.lifecycle.Append(p.openStorage, p.closeStorage)
	p.lifecycle.Append(p.startSessions, p.stopSessions)

	return p, nil
}

// openStorage creates the session store selected by the config.
func (p *Platform) openStorage(ctx context.Context) error {
	if p.store != nil {
		slog.Info("platform: using provided session store")
		return nil
	}

	switch p.config.Store {
	case StorePostgres:
		if err := p.openPostgres(ctx); err != nil {
			return err
		}
		p.store = sessionpostgres.New(p.db)
	case StoreRedis:
		if p.redis == nil {
			client, err := OpenRedis(ctx, p.config.Redis)
			if err != nil {
				return err
			}
			p.redis, p.ownsRedis = client, true
		}
		p.store = sessionredis.New(p.redis, sessionredis.Config{Prefix: p.config.Redis.Prefix})
	default:
		p.store = session.NewMemoryStore()
	}

	slog.Info("platform: session store ready", "store", string(p.config.Store))
	return nil
}

func (p *Platform) openPostgres(ctx context.Context) error {
	if p.db == nil {
		db, err := OpenDatabase(ctx, p.config.Database)
		if err != nil {
			return err
		}
		p.db, p.ownsDB = db, true
	}

	if !p.config.Database.Migrate {
		return nil
	}
	if err := migrate.Run(p.db); err != nil {
		if p.ownsDB {
			_ = p.db.Close()
			p.db, p.ownsDB = nil, false
		}
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// closeStorage closes connections the platform opened itself.
func (p *Platform) closeStorage(_ context.Context) error {
	var errs []error
	if p.ownsRedis {
		if err := p.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
		p.ownsRedis = false
	}
	if p.ownsDB {
		if err := p.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
		p.ownsDB = false
	}
	return errors.Join(errs...)
}

// startSessions builds the session service and registers its cleanup.
func (p *Platform) startSessions(_ context.Context) error {
	svc, err := session.NewService(p.store, p.scheduler, p.config.Session, p.sessionOpts...)
	if err != nil {
		return fmt.Errorf("creating session service: %w", err)
	}
	p.sessions = svc
	return nil
}

func (p *Platform) stopSessions(_ context.Context) error {
	p.scheduler.StopAll()
	return nil
}

// Start opens storage and starts the session service.
func (p *Platform) Start(ctx context.Context) error {
	return p.lifecycle.Start(ctx)
}

// Stop stops scheduled tasks and closes storage.
func (p *Platform) Stop(ctx context.Context) error {
	return p.lifecycle.Stop(ctx)
}

// Ping checks the connection backing the session store. Memory and
// caller-provided stores without a platform connection always pass.
func (p *Platform) Ping(ctx context.Context) error {
	if p.db != nil {
		if err := p.db.PingContext(ctx); err != nil {
			return fmt.Errorf("pinging database: %w", err)
		}
	}
	if p.redis != nil {
		if err := p.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("pinging redis: %w", err)
		}
	}
	return nil
}

// Config returns the platform configuration.
func (p *Platform) Config() *Config {
	return p.config
}

// Sessions returns the session service. It is nil until Start succeeds.
func (p *Platform) Sessions() *session.Service {
	return p.sessions
}

// SessionStore returns the session store. It is nil until Start.
func (p *Platform) SessionStore() session.Store {
	return p.store
}

// Scheduler returns the scheduler running the session cleanup.
func (p *Platform) Scheduler() *scheduler.Scheduler {
	return p.scheduler
}

// DB returns the database connection, if any.
func (p *Platform) DB() *sql.DB {
	return p.db
}

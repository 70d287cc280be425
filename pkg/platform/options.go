package platform

import (
	"database/sql"

	goredis "github.com/redis/go-redis/v9"

	"github.com/txn2/dobby/pkg/session"
)

// Options configures the platform.
type Options struct {
	// Config is the platform configuration.
	Config *Config

	// Database connection (optional, will be opened from config if not provided).
	// A provided connection is not closed by Stop.
	DB *sql.DB

	// Redis client (optional, will be created from config if not provided).
	// A provided client is not closed by Stop.
	Redis goredis.UniversalClient

	// SessionStore (optional, will be created from config if not provided).
	SessionStore session.Store

	// SessionOptions are passed to session.NewService.
	SessionOptions []session.Option
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithDB sets the database connection.
func WithDB(db *sql.DB) Option {
	return func(o *Options) {
		o.DB = db
	}
}

// WithRedisClient sets the Redis client.
func WithRedisClient(client goredis.UniversalClient) Option {
	return func(o *Options) {
		o.Redis = client
	}
}

// WithSessionStore sets the session store.
func WithSessionStore(store session.Store) Option {
	return func(o *Options) {
		o.SessionStore = store
	}
}

// WithSessionOptions adds options for the session service.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *Options) {
		o.SessionOptions = append(o.SessionOptions, opts...)
	}
}

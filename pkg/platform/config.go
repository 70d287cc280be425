package platform

import (
	"fmt"
	"strings"

	"github.com/txn2/dobby/pkg/configstore"
	"github.com/txn2/dobby/pkg/scheduler"
	"github.com/txn2/dobby/pkg/session"
	sessionredis "github.com/txn2/dobby/pkg/session/redis"
)

// Configuration keys read by ConfigFromLookup. Session and scheduler keys
// are owned by their packages.
const (
	StoreKey            = "dobby.session.store"
	DatabaseDSNKey      = "dobby.database.dsn"
	DatabaseMaxConnsKey = "dobby.database.maxOpenConns"
	DatabaseMigrateKey  = "dobby.database.migrate"
	RedisAddrKey        = "dobby.redis.addr"
	RedisPasswordKey    = "dobby.redis.password"
	RedisDBKey          = "dobby.redis.db"
	RedisPrefixKey      = "dobby.redis.prefix"
	LogLevelKey         = "dobby.log.level"
	HealthAddrKey       = "dobby.health.addr"
)

const (
	defaultMaxOpenConns = 25
	defaultLogLevel     = "info"
)

// StoreKind selects the session store backend.
type StoreKind string

// Supported session store backends.
const (
	StoreMemory   StoreKind = "memory"
	StorePostgres StoreKind = "postgres"
	StoreRedis    StoreKind = "redis"
)

// Config is the platform configuration.
type Config struct {
	Store     StoreKind
	Session   session.Config
	Scheduler scheduler.Config
	Database  DatabaseConfig
	Redis     RedisConfig
	LogLevel  string

	// HealthAddr is the listen address for /healthz and /readyz.
	// Empty disables the listener.
	HealthAddr string
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int

	// Migrate runs pending schema migrations on Start.
	Migrate bool
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// LoadConfig loads configuration from a YAML file.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadConfig(path string) (*Config, error) {
	values, err := configstore.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return ConfigFromLookup(values), nil
}

// ConfigFromLookup builds a Config from configuration values and applies
// defaults.
func ConfigFromLookup(l configstore.Lookup) *Config {
	cfg := &Config{
		Store:     StoreKind(strings.ToLower(l.String(StoreKey, ""))),
		Session:   session.ConfigFromLookup(l),
		Scheduler: scheduler.ConfigFromLookup(l),
		Database: DatabaseConfig{
			DSN:          l.String(DatabaseDSNKey, ""),
			MaxOpenConns: l.Int(DatabaseMaxConnsKey, 0),
			Migrate:      l.Bool(DatabaseMigrateKey, true),
		},
		Redis: RedisConfig{
			Addr:     l.String(RedisAddrKey, ""),
			Password: l.String(RedisPasswordKey, ""),
			DB:       l.Int(RedisDBKey, 0),
			Prefix:   l.String(RedisPrefixKey, ""),
		},
		LogLevel:   l.String(LogLevelKey, ""),
		HealthAddr: l.String(HealthAddrKey, ""),
	}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Store == "" {
		cfg.Store = StoreMemory
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = sessionredis.DefaultPrefix
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Database.DSN == "" {
			errs = append(errs, DatabaseDSNKey+" is required when the session store is postgres")
		}
	case StoreRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, RedisAddrKey+" is required when the session store is redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("%s must be one of memory, postgres, redis (got %q)", StoreKey, c.Store))
	}

	if c.Redis.DB < 0 {
		errs = append(errs, RedisDBKey+" must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

package types

import "errors"

// Config holds backend selection and parameters for opening a store.
type Config struct {
	Backend  string         `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir  string         `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	Postgres PostgresConfig `json:"postgres" yaml:"postgres" mapstructure:"postgres"`
	Redis    RedisConfig    `json:"redis" yaml:"redis" mapstructure:"redis"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
	HTTP     HTTPConfig     `json:"http" yaml:"http" mapstructure:"http"`
}

// PostgresConfig holds connection settings for the postgres backend.
type PostgresConfig struct {
	DSN string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
}

// RedisConfig holds connection settings for the redis document backend.
type RedisConfig struct {
	Addrs     []string `json:"addrs" yaml:"addrs" mapstructure:"addrs"`
	Password  string   `json:"password" yaml:"password" mapstructure:"password"`
	KeyPrefix string   `json:"key_prefix" yaml:"key_prefix" mapstructure:"key_prefix"`
}

// LogConfig selects the logger flavor and level.
type LogConfig struct {
	Env   string `json:"env" yaml:"env" mapstructure:"env"`       // prod, dev, local
	Level string `json:"level" yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// HTTPConfig holds the listen address and per-client rate limit for the
// serve command. A zero RateLimit disables limiting.
type HTTPConfig struct {
	Addr      string  `json:"addr" yaml:"addr" mapstructure:"addr"`
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	RateBurst int     `json:"rate_burst" yaml:"rate_burst" mapstructure:"rate_burst"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config validation errors.
var (
	ErrBackendEmpty    = errors.New("backend must not be empty")
	ErrBackendUnknown  = errors.New("unknown backend")
	ErrDSNEmpty        = errors.New("postgres.dsn must not be empty")
	ErrRedisAddrsEmpty = errors.New("redis.addrs must not be empty")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendPostgres: true,
	BackendRedis:    true,
	BackendMemory:   true,
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	switch c.Backend {
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return ErrDSNEmpty
		}
	case BackendRedis:
		if len(c.Redis.Addrs) == 0 {
			return ErrRedisAddrsEmpty
		}
	}
	return nil
}

// Package config loads config.yaml with viper, applies STOCKROOM_*
// environment overrides and returns a validated types.Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/stockroom/internal/paths"
	"github.com/mesh-intelligence/stockroom/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	// FileName is the config file inside the config directory.
	FileName = "config.yaml"

	envPrefix = "STOCKROOM"
)

// Config keys.
const (
	KeyBackend        = "backend"
	KeyDataDir        = "data_dir"
	KeyPostgresDSN    = "postgres.dsn"
	KeyRedisAddrs     = "redis.addrs"
	KeyRedisPassword  = "redis.password"
	KeyRedisKeyPrefix = "redis.key_prefix"
	KeyLogEnv         = "log.env"
	KeyLogLevel       = "log.level"
	KeyHTTPAddr       = "http.addr"
	KeyHTTPRateLimit  = "http.rate_limit"
	KeyHTTPRateBurst  = "http.rate_burst"
)

// Defaults returns the configuration used for keys config.yaml leaves out.
func Defaults() types.Config {
	return types.Config{
		Backend: types.BackendSQLite,
		Redis:   types.RedisConfig{KeyPrefix: "stockroom:"},
		Log:     types.LogConfig{Env: "prod", Level: "info"},
		HTTP:    types.HTTPConfig{Addr: ":8080", RateBurst: 20},
	}
}

// Load reads config.yaml from configDir, creating the directory and a
// default file on first run. Environment variables such as
// STOCKROOM_BACKEND or STOCKROOM_POSTGRES_DSN override file values. The
// returned DataDir is empty unless the file or environment sets it; a
// relative value is resolved against configDir.
func Load(configDir string) (types.Config, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return types.Config{}, fmt.Errorf("ensure config dir: %w", err)
	}
	if _, err := WriteDefault(configDir); err != nil {
		return types.Config{}, fmt.Errorf("ensure default config: %w", err)
	}

	v := newViper()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DataDir != "" {
		dir, err := paths.ResolveDataDir("", cfg.DataDir, configDir)
		if err != nil {
			return types.Config{}, err
		}
		cfg.DataDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newViper returns a viper instance seeded with Defaults and bound to the
// STOCKROOM_ environment.
func newViper() *viper.Viper {
	d := Defaults()
	v := viper.New()
	v.SetDefault(KeyBackend, d.Backend)
	v.SetDefault(KeyDataDir, d.DataDir)
	v.SetDefault(KeyPostgresDSN, d.Postgres.DSN)
	v.SetDefault(KeyRedisPassword, d.Redis.Password)
	v.SetDefault(KeyRedisKeyPrefix, d.Redis.KeyPrefix)
	v.SetDefault(KeyLogEnv, d.Log.Env)
	v.SetDefault(KeyLogLevel, d.Log.Level)
	v.SetDefault(KeyHTTPAddr, d.HTTP.Addr)
	v.SetDefault(KeyHTTPRateLimit, d.HTTP.RateLimit)
	v.SetDefault(KeyHTTPRateBurst, d.HTTP.RateBurst)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without a default are unknown to AutomaticEnv.
	_ = v.BindEnv(KeyRedisAddrs)
	return v
}

// defaultFile is the subset of Defaults written to a new config.yaml.
type defaultFile struct {
	Backend string          `yaml:"backend"`
	DataDir string          `yaml:"data_dir,omitempty"`
	Log     types.LogConfig `yaml:"log"`
}

// WriteDefault writes a default config.yaml into configDir unless one is
// already there. It reports whether it wrote the file.
func WriteDefault(configDir string) (bool, error) {
	return writeIfMissing(filepath.Join(configDir, FileName), defaultFile{
		Backend: Defaults().Backend,
		Log:     Defaults().Log,
	})
}

// WriteInitial writes config.yaml for the init command with an explicit
// backend and data directory, unless the file already exists.
func WriteInitial(configDir, backend, dataDir string) (bool, error) {
	return writeIfMissing(filepath.Join(configDir, FileName), defaultFile{
		Backend: backend,
		DataDir: dataDir,
		Log:     Defaults().Log,
	})
}

func writeIfMissing(path string, content any) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}
	data, err := yaml.Marshal(content)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# stockroom configuration\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// Package config loads callflow settings from a YAML or JSON file and
// applies CALLFLOW_* environment overrides on top.
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvAddr          = "CALLFLOW_ADDR"
	EnvStore         = "CALLFLOW_STORE"
	EnvRedisAddr     = "CALLFLOW_REDIS_ADDR"
	EnvRedisPassword = "CALLFLOW_REDIS_PASSWORD"
	EnvRedisDB       = "CALLFLOW_REDIS_DB"
	EnvSQLitePath    = "CALLFLOW_SQLITE_PATH"
	EnvLogLevel      = "CALLFLOW_LOG_LEVEL"
	EnvSessionKey    = "CALLFLOW_SESSION_KEY"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Duration is a time.Duration written as "30m" in config files.
type Duration time.Duration

// UnmarshalYAML accepts a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// UnmarshalJSON accepts a Go duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

type Redis struct {
	Addr       string   `yaml:"addr" json:"addr"`
	Password   string   `yaml:"password" json:"password"`
	DB         int      `yaml:"db" json:"db"`
	Prefix     string   `yaml:"prefix" json:"prefix"`
	SessionTTL Duration `yaml:"session_ttl" json:"session_ttl"`
}

type SQLite struct {
	Path string `yaml:"path" json:"path"`
}

// Config is the full runtime configuration of the callflow binary.
type Config struct {
	Addr     string `yaml:"addr" json:"addr"`
	Store    string `yaml:"store" json:"store"`
	Redis    Redis  `yaml:"redis" json:"redis"`
	SQLite   SQLite `yaml:"sqlite" json:"sqlite"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	// SessionKey is a base64 AES-256 key. When set, preview sessions are
	// encrypted before they reach the session store. Old keys stay readable
	// through SessionFallbackKeys.
	SessionKey          string   `yaml:"session_key" json:"session_key"`
	SessionFallbackKeys []string `yaml:"session_fallback_keys" json:"session_fallback_keys"`

	// ShutdownTimeout bounds how long serve waits for in-flight requests.
	ShutdownTimeout Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Addr:  ":8080",
		Store: StoreMemory,
		Redis: Redis{
			Addr:       "localhost:6379",
			Prefix:     "callflow:",
			SessionTTL: Duration(24 * time.Hour),
		},
		SQLite:          SQLite{Path: "callflow.db"},
		LogLevel:        "info",
		ShutdownTimeout: Duration(5 * time.Second),
	}
}

// Load reads path (YAML unless it ends in .json) over the defaults, then
// applies environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if strings.ToLower(filepath.Ext(path)) == ".json" {
				err = json.Unmarshal(data, &cfg)
			} else {
				err = yaml.Unmarshal(data, &cfg)
			}
			if err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		EnvAddr:          &c.Addr,
		EnvStore:         &c.Store,
		EnvRedisAddr:     &c.Redis.Addr,
		EnvRedisPassword: &c.Redis.Password,
		EnvSQLitePath:    &c.SQLite.Path,
		EnvLogLevel:      &c.LogLevel,
		EnvSessionKey:    &c.SessionKey,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup(EnvRedisDB); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", EnvRedisDB, err)
		}
		c.Redis.DB = db
	}
	return nil
}

// Validate checks the store driver and log level.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("unknown store %q (want memory, redis or sqlite)", c.Store)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, _, err := c.SessionKeys(); err != nil {
		return err
	}
	return nil
}

// SessionKeys decodes the session encryption keys. active is nil when
// encryption is off.
func (c Config) SessionKeys() (active []byte, fallbacks [][]byte, err error) {
	if c.SessionKey == "" {
		return nil, nil, nil
	}
	decode := func(name, s string) ([]byte, error) {
		k, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%s is not valid base64: %w", name, err)
		}
		if len(k) != 32 {
			return nil, fmt.Errorf("%s must decode to 32 bytes, got %d", name, len(k))
		}
		return k, nil
	}
	if active, err = decode("session_key", c.SessionKey); err != nil {
		return nil, nil, err
	}
	for i, s := range c.SessionFallbackKeys {
		k, err := decode(fmt.Sprintf("session_fallback_keys[%d]", i), s)
		if err != nil {
			return nil, nil, err
		}
		fallbacks = append(fallbacks, k)
	}
	return active, fallbacks, nil
}

// Level returns the configured slog level, falling back to info.
func (c Config) Level() slog.Level {
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ParseLevel maps debug/info/warn/error (case-insensitive) to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// Package config loads chronicle settings from CHRONICLE_* environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

var backends = []string{BackendMemory, BackendFile, BackendSQLite, BackendRedis}

// Config holds process-wide settings. CLI flags override these values.
type Config struct {
	Backend string `env:"CHRONICLE_BACKEND" envDefault:"memory"`

	FileDir    string `env:"CHRONICLE_FILE_DIR" envDefault:".chronicle/executions"`
	SQLitePath string `env:"CHRONICLE_SQLITE_PATH" envDefault:"chronicle.db"`

	RedisAddr     string `env:"CHRONICLE_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"CHRONICLE_REDIS_PASSWORD"`
	RedisDB       int    `env:"CHRONICLE_REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"CHRONICLE_REDIS_PREFIX" envDefault:"chronicle:"`

	// Catalog is a YAML/JSON file or a directory of them.
	Catalog string `env:"CHRONICLE_CATALOG"`

	LogLevel string        `env:"CHRONICLE_LOG_LEVEL" envDefault:"info"`
	HTTPAddr string        `env:"CHRONICLE_HTTP_ADDR" envDefault:":8080"`
	LockTTL  time.Duration `env:"CHRONICLE_LOCK_TTL" envDefault:"30s"`

	MaskPatterns []string `env:"CHRONICLE_MASK_PATTERNS" envSeparator:","`
	// EncryptionKey is a base64 encoded 32-byte AES key.
	EncryptionKey string `env:"CHRONICLE_ENCRYPTION_KEY"`
	// EncryptionFallbackKeys are retired keys still accepted for decryption.
	EncryptionFallbackKeys []string `env:"CHRONICLE_ENCRYPTION_FALLBACK_KEYS" envSeparator:","`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	if !slices.Contains(backends, c.Backend) {
		return fmt.Errorf("unknown backend %q (want one of %v)", c.Backend, backends)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("lock ttl must be positive, got %s", c.LockTTL)
	}
	if _, err := c.EncryptionKeyBytes(); err != nil {
		return err
	}
	if _, err := c.FallbackKeyBytes(); err != nil {
		return err
	}
	if c.EncryptionKey == "" && len(c.EncryptionFallbackKeys) > 0 {
		return fmt.Errorf("fallback encryption keys need an active key")
	}
	return nil
}

// EncryptionKeyBytes decodes the encryption key. It returns nil when encryption is off.
func (c Config) EncryptionKeyBytes() ([]byte, error) {
	if c.EncryptionKey == "" {
		return nil, nil
	}
	return decodeKey(c.EncryptionKey)
}

// FallbackKeyBytes decodes the retired encryption keys.
func (c Config) FallbackKeyBytes() ([][]byte, error) {
	keys := make([][]byte, 0, len(c.EncryptionFallbackKeys))
	for i, encoded := range c.EncryptionFallbackKeys {
		key, err := decodeKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("fallback key %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

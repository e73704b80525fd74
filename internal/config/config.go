// Package config loads configuration for the dx CLI and the dx-authd backend.
//
// The CLI uses viper with precedence flags > DX_* environment > config file >
// defaults. The config file is $HOME/.doc-extract/config.yaml unless an
// explicit path is given.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes CLI environment variables, e.g. DX_API_BASE_URL.
const EnvPrefix = "DX"

// Store kinds.
const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds all CLI configuration.
type Config struct {
	APIBaseURL string        `validate:"required,url"`
	APITimeout time.Duration `validate:"gt=0"`

	StoreKind string `validate:"oneof=file memory redis postgres"`
	StoreDir  string // file store directory; empty means the XDG default
	// StoreSecret, when set, encrypts every stored value.
	StoreSecret string `validate:"omitempty,min=16"`

	RedisAddr     string `validate:"required_if=StoreKind redis"`
	RedisPassword string
	RedisDB       int           `validate:"gte=0"`
	RedisTTL      time.Duration `validate:"gte=0"`

	PostgresDSN string `validate:"required_if=StoreKind postgres"`

	RetryMaxAttempts  int           `validate:"gte=1,lte=10"`
	RetryInitialDelay time.Duration `validate:"gte=0"`

	LogLevel string `validate:"oneof=debug info warn error"`

	ConfigFile string // file actually read, if any
}

// ApplyDefaults sets default configuration values.
func ApplyDefaults(v *viper.Viper) {
	v.SetDefault("api.base-url", "http://localhost:8080")
	v.SetDefault("api.timeout", "15s")

	v.SetDefault("store.kind", StoreFile)
	v.SetDefault("store.dir", "")
	v.SetDefault("store.secret", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "0s")

	v.SetDefault("postgres.dsn", "")

	v.SetDefault("retry.max-attempts", 3)
	v.SetDefault("retry.initial-delay", "250ms")

	v.SetDefault("log.level", "warn")
}

// New returns a viper instance with defaults and environment binding applied.
// Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and returns the validated configuration.
// An explicit configFile must exist; the default location may be absent.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".doc-extract"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		APIBaseURL:        v.GetString("api.base-url"),
		APITimeout:        v.GetDuration("api.timeout"),
		StoreKind:         strings.ToLower(v.GetString("store.kind")),
		StoreDir:          v.GetString("store.dir"),
		StoreSecret:       v.GetString("store.secret"),
		RedisAddr:         v.GetString("redis.addr"),
		RedisPassword:     v.GetString("redis.password"),
		RedisDB:           v.GetInt("redis.db"),
		RedisTTL:          v.GetDuration("redis.ttl"),
		PostgresDSN:       v.GetString("postgres.dsn"),
		RetryMaxAttempts:  v.GetInt("retry.max-attempts"),
		RetryInitialDelay: v.GetDuration("retry.initial-delay"),
		LogLevel:          strings.ToLower(v.GetString("log.level")),
		ConfigFile:        v.ConfigFileUsed(),
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

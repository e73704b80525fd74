package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ServerEnvPrefix prefixes backend environment variables, e.g. DX_AUTHD_HTTP_ADDR.
const ServerEnvPrefix = "DX_AUTHD"

// Server holds dx-authd configuration.
type Server struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL     string        `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret       string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL        time.Duration `envconfig:"TOKEN_TTL" default:"1h"`
	SeedFile        string        `envconfig:"SEED_FILE"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	MigrateOnStart  bool          `envconfig:"MIGRATE_ON_START" default:"true"`

	LimiterMaxFails int           `envconfig:"LIMITER_MAX_FAILS" default:"5"`
	LimiterWindow   time.Duration `envconfig:"LIMITER_WINDOW" default:"15m"`
	LimiterBlock    time.Duration `envconfig:"LIMITER_BLOCK" default:"15m"`
	LimiterPepper   string        `envconfig:"LIMITER_PEPPER" default:"dx-authd"`
}

// LoadServer reads the backend configuration from the environment.
func LoadServer() (Server, error) {
	var c Server
	if err := envconfig.Process(ServerEnvPrefix, &c); err != nil {
		return Server{}, fmt.Errorf("load server config: %w", err)
	}
	if c.DatabaseURL == "" {
		return Server{}, fmt.Errorf("load server config: DATABASE_URL is empty")
	}
	if len(c.JWTSecret) < 16 {
		return Server{}, fmt.Errorf("load server config: JWT_SECRET must be at least 16 bytes")
	}
	return c, nil
}

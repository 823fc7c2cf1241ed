// Package config loads process configuration from the environment once at
// startup. The resulting Config is passed by pointer to the components that
// need it; nothing reads the environment after Load returns.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Auth modes.
const (
	AuthPlaceholder = "placeholder"
	AuthHeader      = "header"
	AuthJWT         = "jwt"
)

// Config is the full process configuration.
type Config struct {
	Server    Server
	Scoring   Scoring
	Store     Store
	Redis     Redis
	RateLimit RateLimit
	Auth      Auth
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string `env:"KILIMO_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Scoring configures the remote scoring model. An empty endpoint or key is
// allowed at startup and surfaces as a configuration error on each call.
type Scoring struct {
	EndpointURL string        `env:"RUNPOD_ENDPOINT_URL"`
	APIKey      string        `env:"RUNPOD_API_KEY"`
	Timeout     time.Duration `env:"SCORING_TIMEOUT" envDefault:"30s"`
}

// Configured reports whether both the endpoint and the credential are set.
func (s *Scoring) Configured() bool {
	return s != nil && strings.TrimSpace(s.EndpointURL) != "" && strings.TrimSpace(s.APIKey) != ""
}

// Store selects the application store backend.
type Store struct {
	Driver        string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL   string `env:"DATABASE_URL"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"kilimokredo"`
}

// Redis is optional; an empty URL keeps rate limiting in memory.
type Redis struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// RateLimit bounds scoring-backed requests per client IP.
type RateLimit struct {
	PerMinute int  `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	Disabled  bool `env:"RATE_LIMIT_DISABLED" envDefault:"false"`
}

// Auth selects how a farmer identity is established.
type Auth struct {
	Mode          string `env:"AUTH_MODE" envDefault:"placeholder"`
	JWTSigningKey string `env:"JWT_SIGNING_KEY"`
}

// Load parses the environment into a Config and validates the settings that
// must be correct for the process to start.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects store and auth settings the server cannot run with.
// Scoring settings are checked on each call instead.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StorePostgres)
		}
	case StoreMongo:
		if c.Store.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_DRIVER=%s", StoreMongo)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Auth.Mode {
	case AuthPlaceholder, AuthHeader:
	case AuthJWT:
		if c.Auth.JWTSigningKey == "" {
			return fmt.Errorf("JWT_SIGNING_KEY is required when AUTH_MODE=%s", AuthJWT)
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.Auth.Mode)
	}

	if c.RateLimit.PerMinute <= 0 && !c.RateLimit.Disabled {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.Scoring.Timeout <= 0 {
		return fmt.Errorf("SCORING_TIMEOUT must be positive")
	}
	return nil
}

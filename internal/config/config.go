// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

type Backend string

const (
	BackendMongo    Backend = "mongodb"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

type Config struct {
	Port         int           `env:"PORT" envDefault:"4000"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	MongoURI     string        `env:"MONGO_URI"`
	JWTSecret    string        `env:"JWT_SECRET"`
	JWTTTL       time.Duration `env:"JWT_TTL" envDefault:"168h"`
	ClientOrigin string        `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	Env          string        `env:"APP_ENV" envDefault:"development"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`

	// MeetingsScope is "all" or "participant".
	MeetingsScope string `env:"MEETINGS_SCOPE" envDefault:"all"`

	RedisURL      string  `env:"REDIS_URL"`
	AMQPURL       string  `env:"AMQP_URL"`
	AMQPExchange  string  `env:"AMQP_EXCHANGE" envDefault:"meetings"`
	AuthRateLimit float64 `env:"AUTH_RATE_LIMIT" envDefault:"5"`
	AuthRateBurst int     `env:"AUTH_RATE_BURST" envDefault:"10"`

	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

func (c Config) IsDevelopment() bool { return c.Env == "development" }

func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// StoreURL is the connection string for persistence. DATABASE_URL wins
// over MONGO_URI when both are set.
func (c Config) StoreURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.MongoURI
}

// Backend picks the store implementation from the URL scheme.
func (c Config) Backend() (Backend, error) {
	u := c.StoreURL()
	scheme, _, ok := strings.Cut(u, "://")
	if !ok {
		return "", fmt.Errorf("database url %q has no scheme", redact(u))
	}
	switch strings.ToLower(scheme) {
	case "mongodb", "mongodb+srv":
		return BackendMongo, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "memory":
		return BackendMemory, nil
	}
	return "", fmt.Errorf("unsupported database scheme %q", scheme)
}

func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Load parses the environment. A missing JWT_SECRET is allowed here; login
// fails with an internal error until one is set.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.StoreURL() == "" {
		return nil, errors.New("one of DATABASE_URL or MONGO_URI is required")
	}
	if _, err := cfg.Backend(); err != nil {
		return nil, err
	}
	switch cfg.MeetingsScope {
	case "all", "participant":
	default:
		return nil, fmt.Errorf("MEETINGS_SCOPE must be all or participant, got %q", cfg.MeetingsScope)
	}
	if cfg.AuthRateLimit <= 0 || cfg.AuthRateBurst <= 0 {
		return nil, errors.New("AUTH_RATE_LIMIT and AUTH_RATE_BURST must be positive")
	}
	return cfg, nil
}

// redact hides credentials in connection strings before they reach logs.
func redact(u string) string {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return "***"
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}

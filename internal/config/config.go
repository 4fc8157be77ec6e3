package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Persistence backends selectable through PERSISTENCE.
const (
	PersistenceMemory   = "memory"
	PersistencePostgres = "postgres"
	PersistenceRedis    = "redis"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string        `env:"APP_NAME"         envDefault:"Reserve"`
	AppEnv         string        `env:"APP_ENV"          envDefault:"development"`
	Port           string        `env:"PORT"             envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL"        envDefault:"info"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL"`
	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL"  envDefault:"24h"`
	CurrencyFile   string        `env:"CURRENCY_FILE"`
	Persistence    string        `env:"PERSISTENCE"      envDefault:"memory"`
	PurgeWorkers   int           `env:"PURGE_WORKERS"    envDefault:"4"`
	// AdminActors may run purge sweeps. Empty means nobody may.
	AdminActors    []string      `env:"ADMIN_ACTORS"     envSeparator:","`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Persistence = strings.ToLower(cfg.Persistence)

	switch cfg.Persistence {
	case PersistenceMemory:
	case PersistencePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when PERSISTENCE=%s", cfg.Persistence)
		}
	case PersistenceRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when PERSISTENCE=%s", cfg.Persistence)
		}
	default:
		return Config{}, fmt.Errorf("invalid PERSISTENCE %q: want memory, postgres or redis", cfg.Persistence)
	}

	if cfg.ShutdownPeriod <= 0 {
		return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %s", cfg.ShutdownPeriod)
	}
	if cfg.PurgeWorkers <= 0 {
		return Config{}, fmt.Errorf("invalid PURGE_WORKERS: %d", cfg.PurgeWorkers)
	}
	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

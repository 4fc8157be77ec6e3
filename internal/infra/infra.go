// Package infra opens the external connections the service runs on.
package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/reserve/internal/account"
	"github.com/congo-pay/reserve/internal/config"
)

// Backends holds the optional Postgres pool and Redis client together with
// the durability hook selected by configuration.
type Backends struct {
	DB        *pgxpool.Pool
	Cache     redis.UniversalClient
	Persister account.Persister
}

// Open connects to every backend configured in cfg. Postgres and Redis are
// optional unless PERSISTENCE selects them; Redis also backs idempotency and
// rate limiting when present.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backends, error) {
	b := &Backends{Persister: account.NopPersister{}}

	if cfg.DatabaseURL != "" {
		db, err := NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.DB = db
	}
	if cfg.RedisURL != "" {
		cache, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Cache = cache
	}

	switch cfg.Persistence {
	case config.PersistencePostgres:
		persister := account.NewPostgresPersister(b.DB)
		if err := persister.EnsureSchema(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("ensure ledger schema: %w", err)
		}
		b.Persister = persister
	case config.PersistenceRedis:
		b.Persister = account.NewRedisPersister(b.Cache)
	}
	logger.Info("backends ready",
		slog.String("persistence", cfg.Persistence),
		slog.Bool("postgres", b.DB != nil),
		slog.Bool("redis", b.Cache != nil),
	)
	return b, nil
}

// Close releases every open connection.
func (b *Backends) Close() error {
	var errs []error
	if b.DB != nil {
		b.DB.Close()
	}
	if b.Cache != nil {
		if err := b.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Ping reports the health of each configured backend as "ok" or the error text.
func (b *Backends) Ping(ctx context.Context) map[string]string {
	status := map[string]string{}
	if b.DB != nil {
		status["postgres"] = "ok"
		if err := b.DB.Ping(ctx); err != nil {
			status["postgres"] = err.Error()
		}
	}
	if b.Cache != nil {
		status["redis"] = "ok"
		if err := b.Cache.Ping(ctx).Err(); err != nil {
			status["redis"] = err.Error()
		}
	}
	return status
}

// NewPostgresPool configures and returns a PostgreSQL connection pool.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewRedisClient configures a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/invoice-analytics/internal/analytics"
	"github.com/odyssey-erp/invoice-analytics/internal/ingest"
	"github.com/odyssey-erp/invoice-analytics/internal/invoices"
	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
	"github.com/odyssey-erp/invoice-analytics/internal/ledger/memory"
	"github.com/odyssey-erp/invoice-analytics/internal/platform/cache"
	"github.com/odyssey-erp/invoice-analytics/internal/platform/db"
)

// Backend bundles the ledger implementation selected by LEDGER_BACKEND.
type Backend struct {
	Ledger   ledger.Accessor
	Invoices invoices.Repository
	Writer   ingest.Writer
	Pool     *pgxpool.Pool
}

// OpenBackend connects the configured ledger. Postgres migrations run first
// when MIGRATE_ON_START is set.
func OpenBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backend, error) {
	if cfg.LedgerBackend == BackendMemory {
		store := memory.New()
		logger.Info("using in-memory ledger")
		return &Backend{
			Ledger:   store,
			Invoices: invoices.NewMemoryRepository(store),
			Writer:   ingest.NewMemoryWriter(store),
		}, nil
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnIdleTime: 5 * time.Minute})
	if err != nil {
		return nil, err
	}
	if cfg.MigrateOnStart {
		if err := db.Migrate(pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("app: migrate: %w", err)
		}
		logger.Info("database migrations applied")
	}
	return &Backend{
		Ledger:   ledger.NewStore(pool),
		Invoices: invoices.NewPGRepository(pool),
		Writer:   ingest.NewPGWriter(pool),
		Pool:     pool,
	}, nil
}

// Close releases the database pool when one is open.
func (b *Backend) Close() {
	if b != nil && b.Pool != nil {
		b.Pool.Close()
	}
}

// RedisOptions returns the shared Redis connection settings.
func (c *Config) RedisOptions() cache.Options {
	return cache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// AsynqRedisOpt returns the queue connection settings.
func (c *Config) AsynqRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// OpenAnalyticsCache connects Redis for the analytics cache. A Redis outage
// at startup is logged and yields a nil client so metrics compute directly.
func OpenAnalyticsCache(ctx context.Context, cfg *Config, logger *slog.Logger, observer analytics.LookupObserver) (*analytics.Cache, *redis.Client) {
	if cfg.AnalyticsCacheTTL <= 0 {
		logger.Info("analytics cache disabled")
		return nil, nil
	}
	client, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Warn("redis unavailable, analytics cache disabled", slog.Any("error", err))
		return nil, nil
	}
	c := analytics.NewCache(client, cfg.AnalyticsCacheTTL).WithLogger(logger)
	if observer != nil {
		c = c.WithObserver(observer)
	}
	return c, client
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/odyssey-erp/invoice-analytics/internal/app"
	"github.com/odyssey-erp/invoice-analytics/internal/ingest"
	"github.com/odyssey-erp/invoice-analytics/jobs"
)

func main() {
	_ = godotenv.Load()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	file := flag.String("file", cfg.SeedFile, "path to the extracted-document JSON export")
	migrate := flag.Bool("migrate", true, "apply database migrations before seeding")
	warmup := flag.Bool("warmup", true, "enqueue a dashboard warmup after seeding")
	flag.Parse()

	if cfg.LedgerBackend == app.BackendMemory {
		slog.Default().Error("seeding requires the postgres ledger")
		os.Exit(1)
	}
	cfg.MigrateOnStart = cfg.MigrateOnStart || *migrate

	logger := app.NewLogger(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *file, *warmup); err != nil {
		logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger, file string, warmup bool) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	var invalidator ingest.Invalidator
	analyticsCache, redisClient := app.OpenAnalyticsCache(ctx, cfg, logger, nil)
	if redisClient != nil {
		invalidator = analyticsCache
		defer func() {
			_ = redisClient.Close()
		}()
	}

	var warmer ingest.Warmer
	if warmup && redisClient != nil {
		client := jobs.NewClient(cfg.AsynqRedisOpt())
		defer func() {
			_ = client.Close()
		}()
		warmer = client
	}

	summary, err := ingest.NewSeeder(backend.Writer, invalidator, warmer, logger).Run(ctx, f)
	if err != nil {
		return err
	}
	fmt.Printf("seed complete: %d invoices created, %d skipped, %d unique vendors\n",
		summary.Created, summary.Skipped, summary.Vendors)
	return nil
}

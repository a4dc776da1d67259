package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/invoice-analytics/internal/analytics"
	analytichttp "github.com/odyssey-erp/invoice-analytics/internal/analytics/http"
	"github.com/odyssey-erp/invoice-analytics/internal/app"
	"github.com/odyssey-erp/invoice-analytics/internal/chat"
	"github.com/odyssey-erp/invoice-analytics/internal/ingest"
	"github.com/odyssey-erp/invoice-analytics/internal/invoices"
	"github.com/odyssey-erp/invoice-analytics/internal/observability"
	"github.com/odyssey-erp/invoice-analytics/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("open ledger", slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.Close()

	metrics := observability.NewMetrics()

	analyticsCache, redisClient := app.OpenAnalyticsCache(ctx, cfg, logger, metrics)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		if err := analyticsCache.ListenForInvalidation(ctx, analytics.BumpChannel); err != nil {
			logger.Warn("subscribe cache invalidation", slog.Any("error", err))
		}
	}
	analyticsService := analytics.NewService(backend.Ledger, analyticsCache).WithLogger(logger)

	if cfg.LedgerBackend == app.BackendMemory {
		seedMemoryLedger(ctx, cfg, backend, analyticsCache, logger)
	}

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(cfg.AsynqRedisOpt())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AnalyticsHandler: analytichttp.NewHandler(logger, analyticsService),
		InvoicesHandler:  invoices.NewHandler(logger, invoices.NewService(backend.Invoices)),
		ChatHandler:      chat.NewHandler(logger, chat.NewClient(cfg.VannaAPIBaseURL)),
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("ledger", cfg.LedgerBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// seedMemoryLedger loads SEED_FILE into the in-memory ledger so a
// database-free instance serves the sample data.
func seedMemoryLedger(ctx context.Context, cfg *app.Config, backend *app.Backend, cache *analytics.Cache, logger *slog.Logger) {
	if cfg.SeedFile == "" {
		return
	}
	f, err := os.Open(cfg.SeedFile)
	if err != nil {
		logger.Warn("memory ledger starts empty", slog.String("seed_file", cfg.SeedFile), slog.Any("error", err))
		return
	}
	defer func() {
		_ = f.Close()
	}()
	var invalidator ingest.Invalidator
	if cache != nil {
		invalidator = cache
	}
	if _, err := ingest.NewSeeder(backend.Writer, invalidator, nil, logger).Run(ctx, f); err != nil {
		logger.Error("seed memory ledger", slog.Any("error", err))
	}
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/invoice-analytics/internal/analytics"
	jobmetrics "github.com/odyssey-erp/invoice-analytics/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DashboardProducers is the subset of analytics.Service the warmup drives.
type DashboardProducers interface {
	GetOverviewStatistics(ctx context.Context) (analytics.OverviewStatistics, error)
	GetTrendSeries(ctx context.Context, months int) ([]analytics.TrendPoint, error)
	GetTopVendors(ctx context.Context, limit int) ([]analytics.VendorSpend, error)
	GetCategoryDistribution(ctx context.Context) ([]analytics.CategoryShare, error)
	GetCashOutflowForecast(ctx context.Context) ([]analytics.OutflowBucket, error)
}

// DashboardWarmupJob recomputes every dashboard metric so the cache is
// populated before the next request.
type DashboardWarmupJob struct {
	Analytics DashboardProducers
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Timeout   time.Duration
}

// NewDashboardWarmupJob wires dependencies for the warmup handler.
func NewDashboardWarmupJob(producers DashboardProducers, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardWarmupJob {
	return &DashboardWarmupJob{
		Analytics: producers,
		Logger:    logger,
		Metrics:   metrics,
		Timeout:   30 * time.Second,
	}
}

// Handle processes dashboard warmup tasks.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Analytics == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	var payload DashboardWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("dashboard warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	return j.Run(ctx, payload)
}

// Run executes one warmup pass.
func (j *DashboardWarmupJob) Run(ctx context.Context, payload DashboardWarmupPayload) (resultErr error) {
	if payload.TrendMonths == 0 {
		payload.TrendMonths = analytics.DefaultTrendMonths
	}
	if payload.VendorLimit == 0 {
		payload.VendorLimit = analytics.DefaultVendorLimit
	}

	tracker := j.metrics().Track(TaskDashboardWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if payload.Reason != "" {
		logger = logger.With(slog.String("reason", payload.Reason))
	}
	logger.Info("starting dashboard warmup")
	start := time.Now()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	steps := []struct {
		metric string
		run    func(context.Context) error
	}{
		{"overview", func(ctx context.Context) error {
			_, err := j.Analytics.GetOverviewStatistics(ctx)
			return err
		}},
		{"trend", func(ctx context.Context) error {
			_, err := j.Analytics.GetTrendSeries(ctx, payload.TrendMonths)
			return err
		}},
		{"vendors", func(ctx context.Context) error {
			_, err := j.Analytics.GetTopVendors(ctx, payload.VendorLimit)
			return err
		}},
		{"category", func(ctx context.Context) error {
			_, err := j.Analytics.GetCategoryDistribution(ctx)
			return err
		}},
		{"cash_outflow", func(ctx context.Context) error {
			_, err := j.Analytics.GetCashOutflowForecast(ctx)
			return err
		}},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			logger.Error("warm metric", slog.String("metric", step.metric), slog.Any("error", err))
			if errors.Is(err, analytics.ErrInvalidParameter) {
				return fmt.Errorf("dashboard warmup: %s: %v: %w", step.metric, err, asynq.SkipRetry)
			}
			return fmt.Errorf("dashboard warmup: %s: %w", step.metric, err)
		}
		j.metrics().AddWarmed(step.metric)
	}

	logger.Info("completed dashboard warmup", slog.Int("metrics", len(steps)), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *DashboardWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDashboardWarmup))
	}
	return slog.Default().With(slog.String("job", TaskDashboardWarmup))
}

func (j *DashboardWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

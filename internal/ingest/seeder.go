package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Invalidator drops cached metrics after the ledger changes.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Warmer schedules recomputation of cached metrics.
type Warmer interface {
	EnqueueDashboardWarmup(ctx context.Context) error
}

// Seeder replaces the ledger with the content of an export.
type Seeder struct {
	planner     *Planner
	writer      Writer
	invalidator Invalidator
	warmer      Warmer
	logger      *slog.Logger
}

// NewSeeder wires a seeder. invalidator and warmer are optional.
func NewSeeder(writer Writer, invalidator Invalidator, warmer Warmer, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		planner:     NewPlanner(),
		writer:      writer,
		invalidator: invalidator,
		warmer:      warmer,
		logger:      logger,
	}
}

// Run decodes r, replaces the ledger and refreshes the analytics cache.
// Cache refresh failures are logged and do not fail the run.
func (s *Seeder) Run(ctx context.Context, r io.Reader) (Summary, error) {
	docs, err := Decode(r)
	if err != nil {
		return Summary{}, err
	}
	s.logger.Info("seed documents loaded", slog.Int("documents", len(docs)))

	batch := s.planner.Plan(docs)
	if err := s.writer.Replace(ctx, batch); err != nil {
		return Summary{}, fmt.Errorf("ingest: replace ledger: %w", err)
	}
	summary := batch.Summary(len(docs))
	s.logger.Info("seed completed",
		slog.Int("created", summary.Created),
		slog.Int("skipped", summary.Skipped),
		slog.Int("vendors", summary.Vendors),
	)

	if s.invalidator != nil {
		if err := s.invalidator.Bump(ctx); err != nil {
			s.logger.Warn("analytics cache bump failed", slog.Any("error", err))
		}
	}
	if s.warmer != nil {
		if err := s.warmer.EnqueueDashboardWarmup(ctx); err != nil {
			s.logger.Warn("dashboard warmup enqueue failed", slog.Any("error", err))
		}
	}
	return summary, nil
}

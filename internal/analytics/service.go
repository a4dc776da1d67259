package analytics

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
)

// Default window sizes used when callers do not ask for one.
const (
	DefaultTrendMonths = 12
	DefaultVendorLimit = 10
)

// Service coordinates metric producers with the cache layer.
type Service struct {
	ledger ledger.Accessor
	agg    *Aggregator
	cache  *Cache
	now    func() time.Time
	logger *slog.Logger
}

// NewService wires a ledger accessor with a Cache helper. cache may be nil.
func NewService(accessor ledger.Accessor, cache *Cache) *Service {
	return &Service{
		ledger: accessor,
		agg:    NewAggregator(accessor),
		cache:  cache,
		now:    time.Now,
		logger: slog.Default(),
	}
}

// WithNow overrides the reference clock.
func (s *Service) WithNow(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// WithLogger overrides the service logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Cache exposes the result cache so writers can invalidate it.
func (s *Service) Cache() *Cache {
	return s.cache
}

// fetch resolves a metric through the cache, falling back to a direct
// computation when the cache is disabled or Redis cannot build a key.
func fetch[T any](ctx context.Context, s *Service, key []string, load func(context.Context) (T, error)) (T, error) {
	if !s.cache.Enabled() {
		return load(ctx)
	}
	full, err := s.cache.BuildKey(ctx, key...)
	if err != nil {
		s.logger.Warn("analytics cache unavailable", slog.Any("error", err))
		return load(ctx)
	}
	var out T
	err = s.cache.FetchJSON(ctx, full, &out, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func itoa(v int) string {
	return strconv.Itoa(v)
}

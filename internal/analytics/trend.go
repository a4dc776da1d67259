package analytics

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
)

const metricTrend = "trend"

// TrendPoint is one calendar month of invoice volume and spend.
type TrendPoint struct {
	Label        string  `json:"month"`
	Year         int     `json:"year"`
	Month        int     `json:"monthNumber"`
	InvoiceCount int64   `json:"invoiceCount"`
	TotalSpend   float64 `json:"totalSpend"`
}

// GetTrendSeries returns months zero-filled points ending with the current
// month, oldest first. months must be between 1 and MaxTrendMonths.
func (s *Service) GetTrendSeries(ctx context.Context, months int) ([]TrendPoint, error) {
	now := s.now()
	windows, err := TrailingMonths(now, months)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s, cacheKey(metricTrend, now, itoa(months)), func(ctx context.Context) ([]TrendPoint, error) {
		points, err := s.trend(ctx, windows)
		return points, computationFailed(metricTrend, err)
	})
}

func (s *Service) trend(ctx context.Context, windows []MonthWindow) ([]TrendPoint, error) {
	points := make([]TrendPoint, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range windows {
		points[i] = TrendPoint{Label: w.Label, Year: w.Year, Month: int(w.Month)}
		g.Go(func() error {
			res, err := s.agg.Aggregate(gctx, Query{
				Predicate: ledger.Predicate{InvoiceDate: w.Range()},
				Reduce:    ReduceSum | ReduceCount,
			})
			if err != nil {
				return err
			}
			points[i].InvoiceCount = res.Count
			points[i].TotalSpend = res.Sum.InexactFloat64()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}


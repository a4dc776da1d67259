package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
)

const metricOverview = "overview"

// MetricValue is a dashboard figure with its period-over-period change.
type MetricValue struct {
	Value         float64 `json:"value"`
	ChangePercent float64 `json:"change"`
	Label         string  `json:"label,omitempty"`
}

// OverviewStatistics holds the four headline cards.
type OverviewStatistics struct {
	TotalSpend          MetricValue `json:"totalSpend"`
	TotalInvoices       MetricValue `json:"totalInvoices"`
	DocumentsThisMonth  MetricValue `json:"documentsUploaded"`
	AverageInvoiceValue MetricValue `json:"averageInvoiceValue"`
}

// GetOverviewStatistics computes spend, volume and average figures. Every
// constituent query runs concurrently and a failure of any one fails the call.
func (s *Service) GetOverviewStatistics(ctx context.Context) (OverviewStatistics, error) {
	now := s.now()
	return fetch(ctx, s, cacheKey(metricOverview, now), func(ctx context.Context) (OverviewStatistics, error) {
		stats, err := s.overview(ctx, now)
		return stats, computationFailed(metricOverview, err)
	})
}

func (s *Service) overview(ctx context.Context, now time.Time) (OverviewStatistics, error) {
	windows := make(map[WindowKind]ledger.DateRange, 4)
	for _, kind := range []WindowKind{YearToDate, PriorYear, CurrentMonth, PriorMonth} {
		w, err := WindowFor(kind, now)
		if err != nil {
			return OverviewStatistics{}, err
		}
		windows[kind] = w.Range()
	}

	var ytd, priorYear, allTime, current, prior Aggregate
	g, gctx := errgroup.WithContext(ctx)
	run := func(dst *Aggregate, r Reduction, rng ledger.DateRange) {
		g.Go(func() error {
			res, err := s.agg.Aggregate(gctx, Query{Predicate: ledger.Predicate{InvoiceDate: rng}, Reduce: r})
			*dst = res
			return err
		})
	}
	run(&ytd, ReduceSum, windows[YearToDate])
	run(&priorYear, ReduceSum, windows[PriorYear])
	run(&allTime, ReduceCount|ReduceAvg, ledger.DateRange{})
	run(&current, ReduceCount, windows[CurrentMonth])
	run(&prior, ReduceCount|ReduceAvg, windows[PriorMonth])
	if err := g.Wait(); err != nil {
		return OverviewStatistics{}, err
	}

	return OverviewStatistics{
		TotalSpend: MetricValue{
			Value:         ytd.Sum.InexactFloat64(),
			ChangePercent: changePercent(ytd.Sum, priorYear.Sum),
			Label:         "YTD",
		},
		TotalInvoices: MetricValue{
			Value:         float64(allTime.Count),
			ChangePercent: changePercent(decimal.NewFromInt(current.Count), decimal.NewFromInt(prior.Count)),
		},
		DocumentsThisMonth: MetricValue{
			Value:         float64(current.Count),
			ChangePercent: changePercent(decimal.NewFromInt(current.Count), decimal.NewFromInt(prior.Count)),
			Label:         "This Month",
		},
		AverageInvoiceValue: MetricValue{
			Value:         allTime.Avg.InexactFloat64(),
			ChangePercent: changePercent(allTime.Avg, prior.Avg),
		},
	}, nil
}

// changePercent returns (current-baseline)/baseline*100, or 0 for a zero baseline.
func changePercent(current, baseline decimal.Decimal) float64 {
	if baseline.IsZero() {
		return 0
	}
	return current.Sub(baseline).Div(baseline).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

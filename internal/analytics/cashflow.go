package analytics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
)

const metricCashOutflow = "cash_outflow"

// DueSoonLabel names the first forecast bucket. It also holds invoices that
// are already past due, however long ago.
const DueSoonLabel = "0-7 days incl. overdue"

// OutflowBucket is the unsettled amount falling due inside one horizon.
type OutflowBucket struct {
	Label   string  `json:"month"`
	Outflow float64 `json:"outflow"`
}

// GetCashOutflowForecast sums pending and overdue invoices by due-date
// horizon. Invoices already past due are counted in the first bucket, so the
// four buckets cover every unsettled invoice that has a due date.
func (s *Service) GetCashOutflowForecast(ctx context.Context) ([]OutflowBucket, error) {
	now := s.now()
	return fetch(ctx, s, cacheKey(metricCashOutflow, now), func(ctx context.Context) ([]OutflowBucket, error) {
		buckets, err := s.cashOutflow(ctx, now)
		return buckets, computationFailed(metricCashOutflow, err)
	})
}

func (s *Service) cashOutflow(ctx context.Context, now time.Time) ([]OutflowBucket, error) {
	horizons := DueHorizons(now)
	out := make([]OutflowBucket, len(horizons))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range horizons {
		out[i].Label = h.Label
		due := h.Range()
		if i == 0 {
			out[i].Label = DueSoonLabel
			due.From = time.Time{}
		}
		g.Go(func() error {
			res, err := s.agg.Aggregate(gctx, Query{
				Predicate: ledger.Predicate{DueDate: due, HasDueDate: true, Statuses: ledger.Unsettled},
				Reduce:    ReduceSum,
			})
			if err != nil {
				return err
			}
			out[i].Outflow = res.Sum.InexactFloat64()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

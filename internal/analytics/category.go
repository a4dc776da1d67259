package analytics

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
)

const metricCategory = "category"

// CategoryShare is one category's spend and its share of categorised spend.
type CategoryShare struct {
	Category   string  `json:"name"`
	TotalSpend float64 `json:"value"`
	Percentage float64 `json:"percentage"`
}

// GetCategoryDistribution groups categorised invoices by category in ledger
// order. Percentages sum to 100 when any categorised spend exists and are all
// zero otherwise.
func (s *Service) GetCategoryDistribution(ctx context.Context) ([]CategoryShare, error) {
	now := s.now()
	return fetch(ctx, s, cacheKey(metricCategory, now), func(ctx context.Context) ([]CategoryShare, error) {
		shares, err := s.categoryDistribution(ctx)
		return shares, computationFailed(metricCategory, err)
	})
}

func (s *Service) categoryDistribution(ctx context.Context) ([]CategoryShare, error) {
	groups, err := s.agg.Group(ctx, GroupQuery{
		Predicate: ledger.Predicate{HasCategory: true},
		By:        ledger.GroupCategory,
	})
	if err != nil {
		return nil, err
	}
	grand := decimal.Zero
	for _, group := range groups {
		grand = grand.Add(group.Sum)
	}
	hundred := decimal.NewFromInt(100)
	out := make([]CategoryShare, 0, len(groups))
	for _, group := range groups {
		share := CategoryShare{Category: group.Key, TotalSpend: group.Sum.InexactFloat64()}
		if grand.IsPositive() {
			share.Percentage = group.Sum.Div(grand).Mul(hundred).InexactFloat64()
		}
		out = append(out, share)
	}
	return out, nil
}

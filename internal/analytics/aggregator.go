package analytics

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
)

// Reduction selects which aggregates a Query computes.
type Reduction uint8

const (
	ReduceSum Reduction = 1 << iota
	ReduceCount
	ReduceAvg
)

// Group sentinels replace a NULL group value.
const (
	UnknownVendorGroup = "Unknown Vendor"
	UncategorizedGroup = "Uncategorized"
)

// Query describes a single ungrouped aggregate over the ledger. Field defaults to total_amount.
type Query struct {
	Predicate ledger.Predicate
	Field     ledger.Field
	Reduce    Reduction
}

// Aggregate carries the requested reductions. Reductions over no rows are zero.
type Aggregate struct {
	Sum   decimal.Decimal
	Count int64
	Avg   decimal.Decimal
}

// GroupQuery describes a grouped sum over the ledger.
type GroupQuery struct {
	Predicate      ledger.Predicate
	By             ledger.GroupField
	OrderBySumDesc bool
	Limit          int
}

// GroupAggregate is one group of a grouped aggregate. Key holds the sentinel
// label when the underlying group value was NULL, and ID is empty in that case.
type GroupAggregate struct {
	ID        string
	Key       string
	Sum       decimal.Decimal
	Count     int64
	Coalesced bool
}

// Aggregator is the shared primitive every metric producer builds on.
type Aggregator struct {
	ledger ledger.Accessor
}

// NewAggregator wires the aggregator to a ledger accessor.
func NewAggregator(accessor ledger.Accessor) *Aggregator {
	return &Aggregator{ledger: accessor}
}

// Aggregate runs the requested reductions concurrently.
func (a *Aggregator) Aggregate(ctx context.Context, q Query) (Aggregate, error) {
	field := q.Field
	if field == "" {
		field = ledger.FieldTotalAmount
	}
	var (
		out Aggregate
		sum decimal.NullDecimal
		avg decimal.NullDecimal
	)
	g, ctx := errgroup.WithContext(ctx)
	if q.Reduce&ReduceSum != 0 {
		g.Go(func() error {
			var err error
			sum, err = a.ledger.Sum(ctx, field, q.Predicate)
			return err
		})
	}
	if q.Reduce&ReduceCount != 0 {
		g.Go(func() error {
			var err error
			out.Count, err = a.ledger.Count(ctx, q.Predicate)
			return err
		})
	}
	if q.Reduce&ReduceAvg != 0 {
		g.Go(func() error {
			var err error
			avg, err = a.ledger.Avg(ctx, field, q.Predicate)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Aggregate{}, err
	}
	out.Sum = orZero(sum)
	out.Avg = orZero(avg)
	return out, nil
}

// Group returns one row per distinct group value, coalescing NULL into a sentinel.
func (a *Aggregator) Group(ctx context.Context, q GroupQuery) ([]GroupAggregate, error) {
	rows, err := a.ledger.GroupBy(ctx, q.By, q.Predicate, ledger.GroupOptions{
		OrderBySumDesc: q.OrderBySumDesc,
		Limit:          q.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]GroupAggregate, 0, len(rows))
	for _, row := range rows {
		item := GroupAggregate{Sum: row.Sum, Count: row.Count}
		if row.Value == nil {
			item.Key = sentinelFor(q.By)
			item.Coalesced = true
		} else {
			item.ID = *row.Value
			item.Key = *row.Value
		}
		out = append(out, item)
	}
	return out, nil
}

func sentinelFor(field ledger.GroupField) string {
	if field == ledger.GroupCategory {
		return UncategorizedGroup
	}
	return UnknownVendorGroup
}

func orZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

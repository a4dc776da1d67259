package analytics

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
)

const metricVendors = "vendors"

// VendorSpend is one row of the vendor ranking; rank is its position.
type VendorSpend struct {
	VendorName   string  `json:"vendorName"`
	TotalSpend   float64 `json:"totalSpend"`
	InvoiceCount int64   `json:"invoiceCount"`
}

// GetTopVendors ranks vendors by all-time spend, highest first. The ledger
// applies the ordering and limit; rows keep the order it returned them in.
func (s *Service) GetTopVendors(ctx context.Context, limit int) ([]VendorSpend, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidParameter, limit)
	}
	now := s.now()
	return fetch(ctx, s, cacheKey(metricVendors, now, itoa(limit)), func(ctx context.Context) ([]VendorSpend, error) {
		rows, err := s.topVendors(ctx, limit)
		return rows, computationFailed(metricVendors, err)
	})
}

func (s *Service) topVendors(ctx context.Context, limit int) ([]VendorSpend, error) {
	groups, err := s.agg.Group(ctx, GroupQuery{By: ledger.GroupVendor, OrderBySumDesc: true, Limit: limit})
	if err != nil {
		return nil, err
	}

	out := make([]VendorSpend, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		out[i] = VendorSpend{VendorName: group.Key, TotalSpend: group.Sum.InexactFloat64(), InvoiceCount: group.Count}
		if group.Coalesced {
			continue
		}
		g.Go(func() error {
			vendorID := group.ID
			count, err := s.ledger.Count(gctx, ledger.Predicate{VendorID: &vendorID})
			if err != nil {
				return err
			}
			out[i].InvoiceCount = count
			return nil
		})
		g.Go(func() error {
			vendor, ok, err := s.ledger.FindVendorByID(gctx, group.ID)
			if err != nil {
				return err
			}
			out[i].VendorName = ledger.UnknownVendorName
			if ok {
				out[i].VendorName = vendor.DisplayName()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

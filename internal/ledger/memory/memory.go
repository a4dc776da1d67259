// Package memory provides an in-process ledger used by tests and the memory backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
)

// Store keeps vendors and invoices in insertion order.
type Store struct {
	mu        sync.RWMutex
	vendors   map[string]ledger.Vendor
	invoices  []ledger.Invoice
	lineItems []ledger.LineItem
}

var _ ledger.Accessor = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{vendors: make(map[string]ledger.Vendor)}
}

// Reset drops every record.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vendors = make(map[string]ledger.Vendor)
	s.invoices = nil
	s.lineItems = nil
	return nil
}

// CreateVendor stores a vendor record.
func (s *Store) CreateVendor(_ context.Context, v ledger.Vendor) error {
	if v.ID == "" {
		return fmt.Errorf("memory: vendor id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vendors[v.ID] = v
	return nil
}

// CreateInvoice appends an invoice.
func (s *Store) CreateInvoice(_ context.Context, inv ledger.Invoice) error {
	if inv.ID == "" {
		return fmt.Errorf("memory: invoice id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices = append(s.invoices, inv)
	return nil
}

// CreateLineItem appends a line item.
func (s *Store) CreateLineItem(_ context.Context, item ledger.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lineItems = append(s.lineItems, item)
	return nil
}

// Invoices returns a copy of the stored invoices.
func (s *Store) Invoices() []ledger.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ledger.Invoice(nil), s.invoices...)
}

// Vendors returns a copy of the stored vendors.
func (s *Store) Vendors() []ledger.Vendor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Vendor, 0, len(s.vendors))
	for _, v := range s.vendors {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LineItems returns a copy of the stored line items.
func (s *Store) LineItems() []ledger.LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ledger.LineItem(nil), s.lineItems...)
}

// Count implements ledger.Accessor.
func (s *Store) Count(_ context.Context, pred ledger.Predicate) (int64, error) {
	var n int64
	s.each(pred, func(ledger.Invoice) { n++ })
	return n, nil
}

// Sum implements ledger.Accessor.
func (s *Store) Sum(_ context.Context, field ledger.Field, pred ledger.Predicate) (decimal.NullDecimal, error) {
	total, n, err := s.reduce(field, pred)
	if err != nil || n == 0 {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(total), nil
}

// Avg implements ledger.Accessor.
func (s *Store) Avg(_ context.Context, field ledger.Field, pred ledger.Predicate) (decimal.NullDecimal, error) {
	total, n, err := s.reduce(field, pred)
	if err != nil || n == 0 {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(total.Div(decimal.NewFromInt(n))), nil
}

// GroupBy implements ledger.Accessor. Groups keep first-seen order unless sorted by sum.
func (s *Store) GroupBy(_ context.Context, field ledger.GroupField, pred ledger.Predicate, opts ledger.GroupOptions) ([]ledger.GroupRow, error) {
	var key func(ledger.Invoice) *string
	switch field {
	case ledger.GroupVendor:
		key = func(inv ledger.Invoice) *string {
			if inv.VendorID == "" {
				return nil
			}
			id := inv.VendorID
			return &id
		}
	case ledger.GroupCategory:
		key = func(inv ledger.Invoice) *string { return inv.Category }
	default:
		return nil, fmt.Errorf("%w: %s", ledger.ErrUnsupportedField, field)
	}

	const nullKey = "\x00null"
	index := make(map[string]int)
	var rows []ledger.GroupRow
	s.each(pred, func(inv ledger.Invoice) {
		value := key(inv)
		k := nullKey
		if value != nil {
			k = *value
		}
		pos, ok := index[k]
		if !ok {
			pos = len(rows)
			index[k] = pos
			var v *string
			if value != nil {
				copied := *value
				v = &copied
			}
			rows = append(rows, ledger.GroupRow{Value: v, Sum: decimal.Zero})
		}
		rows[pos].Sum = rows[pos].Sum.Add(inv.TotalAmount)
		rows[pos].Count++
	})

	if opts.OrderBySumDesc {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Sum.GreaterThan(rows[j].Sum)
		})
	}
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	if rows == nil {
		rows = []ledger.GroupRow{}
	}
	return rows, nil
}

// FindVendorByID implements ledger.Accessor.
func (s *Store) FindVendorByID(_ context.Context, id string) (ledger.Vendor, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vendors[id]
	return v, ok, nil
}

func (s *Store) reduce(field ledger.Field, pred ledger.Predicate) (decimal.Decimal, int64, error) {
	var pick func(ledger.Invoice) decimal.Decimal
	switch field {
	case ledger.FieldTotalAmount:
		pick = func(inv ledger.Invoice) decimal.Decimal { return inv.TotalAmount }
	case ledger.FieldSubtotal:
		pick = func(inv ledger.Invoice) decimal.Decimal { return inv.Subtotal }
	case ledger.FieldTaxAmount:
		pick = func(inv ledger.Invoice) decimal.Decimal { return inv.TaxAmount }
	default:
		return decimal.Zero, 0, fmt.Errorf("%w: %s", ledger.ErrUnsupportedField, field)
	}
	total := decimal.Zero
	var n int64
	s.each(pred, func(inv ledger.Invoice) {
		total = total.Add(pick(inv))
		n++
	})
	return total, n, nil
}

func (s *Store) each(pred ledger.Predicate, fn func(ledger.Invoice)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invoices {
		if matches(pred, inv) {
			fn(inv)
		}
	}
}

func matches(pred ledger.Predicate, inv ledger.Invoice) bool {
	if !pred.InvoiceDate.Contains(inv.InvoiceDate) {
		return false
	}
	if pred.RequiresDueDate() {
		if inv.DueDate == nil || !pred.DueDate.Contains(*inv.DueDate) {
			return false
		}
	}
	if len(pred.Statuses) > 0 {
		found := false
		for _, st := range pred.Statuses {
			if inv.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if pred.HasCategory && inv.Category == nil {
		return false
	}
	if pred.Category != nil && (inv.Category == nil || *inv.Category != *pred.Category) {
		return false
	}
	if pred.VendorID != nil && inv.VendorID != *pred.VendorID {
		return false
	}
	return true
}

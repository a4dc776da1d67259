package invoices

import (
	"context"
	"sort"
	"strings"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
	"github.com/odyssey-erp/invoice-analytics/internal/ledger/memory"
)

type memoryRepository struct {
	store *memory.Store
}

// NewMemoryRepository serves invoices from the in-memory ledger.
func NewMemoryRepository(store *memory.Store) Repository {
	return &memoryRepository{store: store}
}

func (r *memoryRepository) List(_ context.Context, req ListRequest) ([]Row, int, error) {
	names := make(map[string]string)
	for _, v := range r.store.Vendors() {
		names[v.ID] = v.DisplayName()
	}

	search := strings.ToLower(strings.TrimSpace(req.Search))
	var rows []Row
	for _, inv := range r.store.Invoices() {
		name, ok := names[inv.VendorID]
		if !ok {
			name = ledger.UnknownVendorName
		}
		if req.Status != "" && string(inv.Status) != req.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(inv.InvoiceNumber), search) &&
			!strings.Contains(strings.ToLower(name), search) {
			continue
		}
		rows = append(rows, Row{Invoice: inv, VendorName: name})
	}

	desc := req.SortOrder != "asc"
	less := lessFor(req.SortBy)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Invoice, rows[j].Invoice
		if desc {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.ID < b.ID
	})

	total := len(rows)
	start := min(req.Offset(), total)
	end := min(start+req.Limit, total)
	return append([]Row{}, rows[start:end]...), total, nil
}

func (r *memoryRepository) Get(ctx context.Context, id string) (Detail, error) {
	for _, inv := range r.store.Invoices() {
		if inv.ID != id {
			continue
		}
		vendor, ok, err := r.store.FindVendorByID(ctx, inv.VendorID)
		if err != nil {
			return Detail{}, err
		}
		if !ok {
			vendor = ledger.Vendor{ID: inv.VendorID}
		}
		detail := Detail{Invoice: inv, Vendor: vendor}
		for _, item := range r.store.LineItems() {
			if item.InvoiceID == id {
				detail.LineItems = append(detail.LineItems, item)
			}
		}
		return detail, nil
	}
	return Detail{}, ErrNotFound
}

// lessFor orders invoices ascending by the sort key. Missing due dates sort last.
func lessFor(sortBy string) func(a, b ledger.Invoice) bool {
	switch sortBy {
	case "dueDate":
		return func(a, b ledger.Invoice) bool {
			switch {
			case a.DueDate == nil:
				return false
			case b.DueDate == nil:
				return true
			default:
				return a.DueDate.Before(*b.DueDate)
			}
		}
	case "totalAmount":
		return func(a, b ledger.Invoice) bool { return a.TotalAmount.LessThan(b.TotalAmount) }
	case "invoiceNumber":
		return func(a, b ledger.Invoice) bool { return a.InvoiceNumber < b.InvoiceNumber }
	default:
		return func(a, b ledger.Invoice) bool { return a.InvoiceDate.Before(b.InvoiceDate) }
	}
}

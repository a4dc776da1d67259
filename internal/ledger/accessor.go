package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedField is returned when a query names a column the accessor does not expose.
var ErrUnsupportedField = errors.New("ledger: unsupported field")

// Field names a numeric invoice column that can be reduced.
type Field string

const (
	FieldTotalAmount Field = "total_amount"
	FieldSubtotal    Field = "subtotal"
	FieldTaxAmount   Field = "tax_amount"
)

// GroupField names the invoice column used for grouped aggregates.
type GroupField string

const (
	GroupVendor   GroupField = "vendor_id"
	GroupCategory GroupField = "category"
)

// DateRange bounds a date column. Zero From or To leaves that side open.
// From is always inclusive; To is exclusive unless IncludeTo is set.
type DateRange struct {
	From      time.Time
	To        time.Time
	IncludeTo bool
}

// IsZero reports whether the range places no bound at all.
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() {
		if r.IncludeTo {
			return !t.After(r.To)
		}
		return t.Before(r.To)
	}
	return true
}

// Predicate is a conjunction of filters over invoices. The zero value matches every row.
type Predicate struct {
	InvoiceDate DateRange
	// DueDate implies the row has a due date when any bound is set.
	DueDate     DateRange
	HasDueDate  bool
	Statuses    []Status
	HasCategory bool
	Category    *string
	VendorID    *string
}

// RequiresDueDate reports whether rows without a due date are excluded.
func (p Predicate) RequiresDueDate() bool {
	return p.HasDueDate || !p.DueDate.IsZero()
}

// GroupOptions tunes a grouped aggregate.
type GroupOptions struct {
	OrderBySumDesc bool
	Limit          int
}

// GroupRow is one aggregate row of a grouped query. Value is nil for rows whose
// group column is NULL.
type GroupRow struct {
	Value *string
	Sum   decimal.Decimal
	Count int64
}

// Accessor is the read-only query surface over the ledger.
type Accessor interface {
	Count(ctx context.Context, pred Predicate) (int64, error)
	// Sum and Avg report an invalid NullDecimal when no row matched.
	Sum(ctx context.Context, field Field, pred Predicate) (decimal.NullDecimal, error)
	Avg(ctx context.Context, field Field, pred Predicate) (decimal.NullDecimal, error)
	GroupBy(ctx context.Context, field GroupField, pred Predicate, opts GroupOptions) ([]GroupRow, error)
	// FindVendorByID reports found=false without an error when the vendor does not exist.
	FindVendorByID(ctx context.Context, id string) (Vendor, bool, error)
}

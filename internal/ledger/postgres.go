package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var numericColumns = map[Field]string{
	FieldTotalAmount: "total_amount",
	FieldSubtotal:    "subtotal",
	FieldTaxAmount:   "tax_amount",
}

var groupColumns = map[GroupField]string{
	GroupVendor:   "vendor_id",
	GroupCategory: "category",
}

// Store implements Accessor on top of the invoices and vendors tables.
type Store struct {
	pool *pgxpool.Pool
}

var _ Accessor = (*Store)(nil)

// NewStore wraps a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Count returns the number of invoices matching pred.
func (s *Store) Count(ctx context.Context, pred Predicate) (int64, error) {
	where, args := buildWhere(pred)
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM invoices"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ledger: count: %w", err)
	}
	return count, nil
}

// Sum totals field over the invoices matching pred.
func (s *Store) Sum(ctx context.Context, field Field, pred Predicate) (decimal.NullDecimal, error) {
	return s.reduce(ctx, "SUM", field, pred)
}

// Avg averages field over the invoices matching pred.
func (s *Store) Avg(ctx context.Context, field Field, pred Predicate) (decimal.NullDecimal, error) {
	return s.reduce(ctx, "AVG", field, pred)
}

func (s *Store) reduce(ctx context.Context, fn string, field Field, pred Predicate) (decimal.NullDecimal, error) {
	query, args, err := reduceQuery(fn, field, pred)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	var raw *string
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("ledger: %s: %w", strings.ToLower(fn), err)
	}
	return parseNullDecimal(raw)
}

// GroupBy sums total_amount per distinct value of field.
func (s *Store) GroupBy(ctx context.Context, field GroupField, pred Predicate, opts GroupOptions) ([]GroupRow, error) {
	query, args, err := groupQuery(field, pred, opts)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: group by %s: %w", field, err)
	}
	defer rows.Close()

	out := make([]GroupRow, 0)
	for rows.Next() {
		var (
			value *string
			sum   string
			count int64
		)
		if err := rows.Scan(&value, &sum, &count); err != nil {
			return nil, fmt.Errorf("ledger: scan group row: %w", err)
		}
		row, err := newGroupRow(value, sum, count)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate group rows: %w", err)
	}
	return out, nil
}

// FindVendorByID loads a vendor record.
func (s *Store) FindVendorByID(ctx context.Context, id string) (Vendor, bool, error) {
	var v Vendor
	err := s.pool.QueryRow(ctx, `SELECT id, name, address, tax_id FROM vendors WHERE id = $1`, id).
		Scan(&v.ID, &v.Name, &v.Address, &v.TaxID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, false, nil
		}
		return Vendor{}, false, fmt.Errorf("ledger: find vendor %s: %w", id, err)
	}
	return v, true, nil
}

func reduceQuery(fn string, field Field, pred Predicate) (string, []any, error) {
	column, ok := numericColumns[field]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedField, field)
	}
	where, args := buildWhere(pred)
	return fmt.Sprintf("SELECT %s(%s)::text FROM invoices%s", fn, column, where), args, nil
}

// groupQuery coalesces each sum so an all-null group still parses as zero.
func groupQuery(field GroupField, pred Predicate, opts GroupOptions) (string, []any, error) {
	column, ok := groupColumns[field]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedField, field)
	}
	where, args := buildWhere(pred)
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s, COALESCE(SUM(total_amount), 0)::text, COUNT(*) FROM invoices%s GROUP BY %s", column, where, column)
	if opts.OrderBySumDesc {
		sb.WriteString(" ORDER BY SUM(total_amount) DESC")
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	return sb.String(), args, nil
}

func newGroupRow(value *string, sum string, count int64) (GroupRow, error) {
	amount, err := decimal.NewFromString(sum)
	if err != nil {
		return GroupRow{}, fmt.Errorf("ledger: parse group sum %q: %w", sum, err)
	}
	return GroupRow{Value: value, Sum: amount, Count: count}, nil
}

func parseNullDecimal(raw *string) (decimal.NullDecimal, error) {
	if raw == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("ledger: parse numeric %q: %w", *raw, err)
	}
	return decimal.NewNullDecimal(d), nil
}

// buildWhere renders pred as a WHERE clause with positional placeholders.
func buildWhere(pred Predicate) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	addRange := func(column string, r DateRange) {
		if !r.From.IsZero() {
			clauses = append(clauses, column+" >= "+arg(r.From))
		}
		if !r.To.IsZero() {
			op := " < "
			if r.IncludeTo {
				op = " <= "
			}
			clauses = append(clauses, column+op+arg(r.To))
		}
	}

	addRange("invoice_date", pred.InvoiceDate)
	if pred.RequiresDueDate() {
		clauses = append(clauses, "due_date IS NOT NULL")
	}
	addRange("due_date", pred.DueDate)
	if len(pred.Statuses) > 0 {
		statuses := make([]string, 0, len(pred.Statuses))
		for _, st := range pred.Statuses {
			statuses = append(statuses, string(st))
		}
		clauses = append(clauses, "status = ANY("+arg(statuses)+")")
	}
	if pred.HasCategory {
		clauses = append(clauses, "category IS NOT NULL")
	}
	if pred.Category != nil {
		clauses = append(clauses, "category = "+arg(*pred.Category))
	}
	if pred.VendorID != nil {
		clauses = append(clauses, "vendor_id = "+arg(*pred.VendorID))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

package invoices

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
	"github.com/odyssey-erp/invoice-analytics/internal/platform/httpx"
)

// ErrNotFound is returned when an invoice id does not exist.
var ErrNotFound = fmt.Errorf("invoice: %w", httpx.ErrNotFound)

// Repository loads invoice rows for the table and detail views.
type Repository interface {
	List(ctx context.Context, req ListRequest) ([]Row, int, error)
	Get(ctx context.Context, id string) (Detail, error)
}

var sortColumns = map[string]string{
	"invoiceDate":   "i.invoice_date",
	"dueDate":       "i.due_date",
	"totalAmount":   "i.total_amount",
	"invoiceNumber": "i.invoice_number",
}

const invoiceColumns = `i.id, i.invoice_number, i.vendor_id, i.invoice_date, i.due_date,
	i.subtotal::text, i.tax_amount::text, i.total_amount::text, i.status, i.category, i.currency, i.payment_terms`

type pgRepository struct {
	db *pgxpool.Pool
}

// NewPGRepository returns a Repository backed by Postgres.
func NewPGRepository(db *pgxpool.Pool) Repository {
	return &pgRepository{db: db}
}

func (r *pgRepository) List(ctx context.Context, req ListRequest) ([]Row, int, error) {
	where, args := listWhere(req)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices i JOIN vendors v ON v.id = i.vendor_id`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("invoices: count: %w", err)
	}

	query := `SELECT ` + invoiceColumns + `, COALESCE(v.name, '') FROM invoices i JOIN vendors v ON v.id = i.vendor_id` +
		where + ` ORDER BY ` + orderBy(req.SortBy, req.SortOrder)
	args = append(args, req.Limit, req.Offset())
	query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("invoices: list: %w", err)
	}
	defer rows.Close()

	out := make([]Row, 0, req.Limit)
	for rows.Next() {
		var (
			row  Row
			name string
		)
		inv, err := scanInvoice(rows, &name)
		if err != nil {
			return nil, 0, fmt.Errorf("invoices: scan: %w", err)
		}
		row.Invoice = inv
		row.VendorName = name
		if row.VendorName == "" {
			row.VendorName = ledger.UnknownVendorName
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id string) (Detail, error) {
	var detail Detail
	inv, err := scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices i WHERE i.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, ErrNotFound
	}
	if err != nil {
		return Detail{}, fmt.Errorf("invoices: get: %w", err)
	}
	detail.Invoice = inv

	vendor := ledger.Vendor{ID: inv.VendorID}
	err = r.db.QueryRow(ctx, `SELECT name, address, tax_id FROM vendors WHERE id = $1`, inv.VendorID).
		Scan(&vendor.Name, &vendor.Address, &vendor.TaxID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, fmt.Errorf("invoices: get vendor: %w", err)
	}
	detail.Vendor = vendor

	rows, err := r.db.Query(ctx, `SELECT id, description, quantity::text, unit_price::text, amount::text, tax_rate::text
		FROM line_items WHERE invoice_id = $1 ORDER BY id`, id)
	if err != nil {
		return Detail{}, fmt.Errorf("invoices: line items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		item := ledger.LineItem{InvoiceID: id}
		var qty, price, amount string
		var rate *string
		if err := rows.Scan(&item.ID, &item.Description, &qty, &price, &amount, &rate); err != nil {
			return Detail{}, fmt.Errorf("invoices: scan line item: %w", err)
		}
		if item.Quantity, err = decimal.NewFromString(qty); err != nil {
			return Detail{}, err
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return Detail{}, err
		}
		if item.Amount, err = decimal.NewFromString(amount); err != nil {
			return Detail{}, err
		}
		if rate != nil {
			parsed, err := decimal.NewFromString(*rate)
			if err != nil {
				return Detail{}, err
			}
			item.TaxRate = &parsed
		}
		detail.LineItems = append(detail.LineItems, item)
	}
	return detail, rows.Err()
}

func scanInvoice(row pgx.Row, extra ...any) (ledger.Invoice, error) {
	var inv ledger.Invoice
	var subtotal, tax, total, status string
	var invoiceDate time.Time
	dest := []any{&inv.ID, &inv.InvoiceNumber, &inv.VendorID, &invoiceDate, &inv.DueDate,
		&subtotal, &tax, &total, &status, &inv.Category, &inv.Currency, &inv.PaymentTerms}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return ledger.Invoice{}, err
	}
	inv.InvoiceDate = invoiceDate
	inv.Status = ledger.Status(status)
	var err error
	if inv.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return ledger.Invoice{}, err
	}
	if inv.TaxAmount, err = decimal.NewFromString(tax); err != nil {
		return ledger.Invoice{}, err
	}
	if inv.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return ledger.Invoice{}, err
	}
	return inv, nil
}

func listWhere(req ListRequest) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if search := strings.TrimSpace(req.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := strconv.Itoa(len(args))
		clauses = append(clauses, `(i.invoice_number ILIKE $`+n+` OR v.name ILIKE $`+n+`)`)
	}
	if req.Status != "" {
		args = append(args, req.Status)
		clauses = append(clauses, `i.status = $`+strconv.Itoa(len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderBy(sortBy, sortOrder string) string {
	column, ok := sortColumns[sortBy]
	if !ok {
		column = sortColumns[DefaultSortBy]
	}
	dir := "DESC"
	if sortOrder == "asc" {
		dir = "ASC"
	}
	return column + " " + dir + ", i.id " + dir
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

package ingest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger/memory"
	"github.com/odyssey-erp/invoice-analytics/internal/platform/db"
)

// Writer replaces the ledger content with a batch.
type Writer interface {
	Replace(ctx context.Context, batch Batch) error
}

// PGWriter writes batches to Postgres in a single transaction.
type PGWriter struct {
	pool *pgxpool.Pool
}

// NewPGWriter wraps a pgx pool.
func NewPGWriter(pool *pgxpool.Pool) *PGWriter {
	return &PGWriter{pool: pool}
}

// Replace clears the ledger tables and inserts the batch atomically.
func (w *PGWriter) Replace(ctx context.Context, batch Batch) error {
	return db.WithTx(ctx, w.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE line_items, invoices, vendors`); err != nil {
			return fmt.Errorf("ingest: truncate: %w", err)
		}

		b := &pgx.Batch{}
		for _, v := range batch.Vendors {
			b.Queue(`INSERT INTO vendors (id, name, address, tax_id) VALUES ($1, $2, $3, $4)`,
				v.ID, v.Name, v.Address, v.TaxID)
		}
		for _, inv := range batch.Invoices {
			b.Queue(`INSERT INTO invoices (id, invoice_number, vendor_id, invoice_date, due_date, subtotal, tax_amount,
				total_amount, status, category, currency, payment_terms)
				VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9, $10, $11, $12)`,
				inv.ID, inv.InvoiceNumber, inv.VendorID, inv.InvoiceDate, inv.DueDate,
				inv.Subtotal.String(), inv.TaxAmount.String(), inv.TotalAmount.String(),
				string(inv.Status), inv.Category, inv.Currency, inv.PaymentTerms)
		}
		for _, li := range batch.LineItems {
			var rate *string
			if li.TaxRate != nil {
				s := li.TaxRate.String()
				rate = &s
			}
			b.Queue(`INSERT INTO line_items (id, invoice_id, description, quantity, unit_price, amount, tax_rate)
				VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric)`,
				li.ID, li.InvoiceID, li.Description, li.Quantity.String(), li.UnitPrice.String(), li.Amount.String(), rate)
		}
		if b.Len() == 0 {
			return nil
		}

		results := tx.SendBatch(ctx, b)
		for i := 0; i < b.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				if db.IsUniqueViolation(err) {
					return fmt.Errorf("ingest: duplicate record in batch: %w", err)
				}
				return fmt.Errorf("ingest: insert: %w", err)
			}
		}
		return results.Close()
	})
}

// MemoryWriter writes batches to the in-memory ledger.
type MemoryWriter struct {
	store *memory.Store
}

// NewMemoryWriter wraps an in-memory store.
func NewMemoryWriter(store *memory.Store) *MemoryWriter {
	return &MemoryWriter{store: store}
}

// Replace resets the store and loads the batch.
func (w *MemoryWriter) Replace(ctx context.Context, batch Batch) error {
	if err := w.store.Reset(ctx); err != nil {
		return err
	}
	for _, v := range batch.Vendors {
		if err := w.store.CreateVendor(ctx, v); err != nil {
			return err
		}
	}
	for _, inv := range batch.Invoices {
		if err := w.store.CreateInvoice(ctx, inv); err != nil {
			return err
		}
	}
	for _, li := range batch.LineItems {
		if err := w.store.CreateLineItem(ctx, li); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Writer = (*PGWriter)(nil)
	_ Writer = (*MemoryWriter)(nil)
)

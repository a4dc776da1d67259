package ingest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
)

// Defaults applied to incomplete extractions.
const (
	DefaultCurrency   = "EUR"
	UnknownVendorName = "Unknown Vendor"
)

// Batch is the full ledger content derived from one export.
type Batch struct {
	Vendors   []ledger.Vendor
	Invoices  []ledger.Invoice
	LineItems []ledger.LineItem
	Skipped   int
}

// Summary reports the outcome of a seed run.
type Summary struct {
	Documents int `json:"documents"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
	Vendors   int `json:"vendors"`
}

// Summary reports counts for the batch.
func (b Batch) Summary(documents int) Summary {
	return Summary{Documents: documents, Created: len(b.Invoices), Skipped: b.Skipped, Vendors: len(b.Vendors)}
}

// Planner converts documents into ledger records.
type Planner struct {
	newID func() string
}

// NewPlanner returns a planner that assigns random UUIDs.
func NewPlanner() *Planner {
	return &Planner{newID: uuid.NewString}
}

// Plan maps every usable document to an invoice. Documents without structured
// data, without a parseable invoice date or with a negative total are skipped.
func (p *Planner) Plan(docs []Document) Batch {
	var batch Batch
	vendorIDs := make(map[string]string)

	for i, doc := range docs {
		n := i + 1
		llm := doc.llm()
		if llm == nil {
			batch.Skipped++
			continue
		}
		header, _ := llm.Invoice.get()
		vendorBlock, _ := llm.Vendor.get()
		payment, _ := llm.Payment.get()
		totals, _ := llm.Totals.get()
		lines, _ := llm.LineItems.get()

		invoiceDate, err := parseDate(text(header.InvoiceDate))
		if err != nil {
			batch.Skipped++
			continue
		}

		vendorName := text(vendorBlock.VendorName)
		if vendorName == "" {
			vendorName = UnknownVendorName
		}
		vendorID, ok := vendorIDs[vendorName]
		if !ok {
			vendorID = p.newID()
			vendorIDs[vendorName] = vendorID
			name := vendorName
			batch.Vendors = append(batch.Vendors, ledger.Vendor{
				ID:      vendorID,
				Name:    &name,
				Address: optional(text(vendorBlock.VendorAddress)),
				TaxID:   optional(text(vendorBlock.VendorTaxID)),
			})
		}

		base := text(header.InvoiceID)
		if base == "" {
			base = fmt.Sprintf("INV-%d", n)
		}

		subtotal, _ := totals.Subtotal.get()
		tax, _ := totals.TaxAmount.get()
		total, ok := totals.TotalAmount.get()
		if !ok || total.IsZero() {
			total = subtotal.Add(tax)
		}
		if total.IsNegative() {
			batch.Skipped++
			continue
		}

		status := ledger.StatusPending
		if doc.Status == "processed" {
			status = ledger.StatusPaid
		}

		inv := ledger.Invoice{
			ID:            p.newID(),
			InvoiceNumber: fmt.Sprintf("%s-%d", base, n),
			VendorID:      vendorID,
			InvoiceDate:   invoiceDate,
			Subtotal:      subtotal,
			TaxAmount:     tax,
			TotalAmount:   total,
			Status:        status,
			Currency:      normalizeCurrency(text(totals.Currency)),
			PaymentTerms:  optional(text(payment.PaymentTerms)),
		}
		if due, err := parseDate(text(payment.DueDate)); err == nil {
			inv.DueDate = &due
		}
		batch.Invoices = append(batch.Invoices, inv)

		for _, line := range lines {
			desc := text(line.Description)
			if desc == "" {
				continue
			}
			qty, ok := line.Quantity.get()
			if !ok || qty.IsZero() {
				qty = decimal.NewFromInt(1)
			}
			price, _ := line.UnitPrice.get()
			amount, _ := line.TotalAmount.get()
			batch.LineItems = append(batch.LineItems, ledger.LineItem{
				ID:          p.newID(),
				InvoiceID:   inv.ID,
				Description: desc,
				Quantity:    qty,
				UnitPrice:   price,
				Amount:      amount,
			})
		}
	}
	return batch
}

// normalizeCurrency returns the ISO 4217 code or DefaultCurrency when the
// value is missing or unknown.
func normalizeCurrency(code string) string {
	if code == "" {
		return DefaultCurrency
	}
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return DefaultCurrency
	}
	return unit.String()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Package invoices serves the paginated invoice table and invoice detail.
package invoices

import (
	"time"

	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
)

// Pagination and sort defaults.
const (
	DefaultPage      = 1
	DefaultLimit     = 10
	MaxLimit         = 100
	DefaultSortBy    = "invoiceDate"
	DefaultSortOrder = "desc"
)

// ListRequest is the validated query of the invoice table.
type ListRequest struct {
	Page      int    `validate:"min=1"`
	Limit     int    `validate:"min=1,max=100"`
	Search    string `validate:"max=200"`
	Status    string `validate:"omitempty,oneof=paid pending overdue"`
	SortBy    string `validate:"oneof=invoiceDate dueDate totalAmount invoiceNumber"`
	SortOrder string `validate:"oneof=asc desc"`
}

// Offset returns the number of rows skipped before the page.
func (r ListRequest) Offset() int {
	return (r.Page - 1) * r.Limit
}

// Row is an invoice joined with its vendor name.
type Row struct {
	Invoice    ledger.Invoice
	VendorName string
}

// Detail is an invoice with its vendor and line items.
type Detail struct {
	Invoice   ledger.Invoice
	Vendor    ledger.Vendor
	LineItems []ledger.LineItem
}

// Summary is the wire shape of one table row.
type Summary struct {
	ID            string     `json:"id"`
	InvoiceNumber string     `json:"invoiceNumber"`
	Vendor        string     `json:"vendor"`
	Date          time.Time  `json:"date"`
	DueDate       *time.Time `json:"dueDate"`
	Amount        float64    `json:"amount"`
	Status        string     `json:"status"`
	Category      *string    `json:"category"`
	Currency      string     `json:"currency"`
}

// Pagination describes the page returned by List.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Page is the List response.
type Page struct {
	Data       []Summary  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// VendorView is the vendor block of the detail response.
type VendorView struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Address *string `json:"address"`
	TaxID   *string `json:"taxId"`
}

// LineItemView is one line item of the detail response.
type LineItemView struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Quantity    float64  `json:"quantity"`
	UnitPrice   float64  `json:"unitPrice"`
	Amount      float64  `json:"amount"`
	TaxRate     *float64 `json:"taxRate"`
}

// DetailView is the wire shape of GET /invoices/{id}.
type DetailView struct {
	ID            string         `json:"id"`
	InvoiceNumber string         `json:"invoiceNumber"`
	InvoiceDate   time.Time      `json:"invoiceDate"`
	DueDate       *time.Time     `json:"dueDate"`
	Subtotal      float64        `json:"subtotal"`
	TaxAmount     float64        `json:"taxAmount"`
	TotalAmount   float64        `json:"totalAmount"`
	Status        string         `json:"status"`
	Category      *string        `json:"category"`
	Currency      string         `json:"currency"`
	PaymentTerms  *string        `json:"paymentTerms"`
	Vendor        VendorView     `json:"vendor"`
	LineItems     []LineItemView `json:"lineItems"`
}

func toSummary(row Row) Summary {
	inv := row.Invoice
	return Summary{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Vendor:        row.VendorName,
		Date:          inv.InvoiceDate,
		DueDate:       inv.DueDate,
		Amount:        inv.TotalAmount.InexactFloat64(),
		Status:        string(inv.Status),
		Category:      inv.Category,
		Currency:      inv.Currency,
	}
}

func toDetailView(d Detail) DetailView {
	inv := d.Invoice
	items := make([]LineItemView, 0, len(d.LineItems))
	for _, li := range d.LineItems {
		view := LineItemView{
			ID:          li.ID,
			Description: li.Description,
			Quantity:    li.Quantity.InexactFloat64(),
			UnitPrice:   li.UnitPrice.InexactFloat64(),
			Amount:      li.Amount.InexactFloat64(),
		}
		if li.TaxRate != nil {
			rate := li.TaxRate.InexactFloat64()
			view.TaxRate = &rate
		}
		items = append(items, view)
	}
	return DetailView{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		InvoiceDate:   inv.InvoiceDate,
		DueDate:       inv.DueDate,
		Subtotal:      inv.Subtotal.InexactFloat64(),
		TaxAmount:     inv.TaxAmount.InexactFloat64(),
		TotalAmount:   inv.TotalAmount.InexactFloat64(),
		Status:        string(inv.Status),
		Category:      inv.Category,
		Currency:      inv.Currency,
		PaymentTerms:  inv.PaymentTerms,
		Vendor: VendorView{
			ID:      d.Vendor.ID,
			Name:    d.Vendor.DisplayName(),
			Address: d.Vendor.Address,
			TaxID:   d.Vendor.TaxID,
		},
		LineItems: items,
	}
}

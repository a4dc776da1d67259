package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates invoice settlement states.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
	StatusOverdue Status = "overdue"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusPaid, StatusPending, StatusOverdue:
		return true
	}
	return false
}

// Unsettled lists the statuses that still represent an outstanding obligation.
var Unsettled = []Status{StatusPending, StatusOverdue}

// Invoice is a single ledger row. The ledger is read-only to the analytics engine.
type Invoice struct {
	ID            string
	InvoiceNumber string
	VendorID      string
	InvoiceDate   time.Time
	DueDate       *time.Time
	Subtotal      decimal.Decimal
	TaxAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	Status        Status
	Category      *string
	Currency      string
	PaymentTerms  *string
}

// Vendor identifies the party an invoice was issued by.
type Vendor struct {
	ID      string
	Name    *string
	Address *string
	TaxID   *string
}

// UnknownVendorName substitutes a missing vendor display name.
const UnknownVendorName = "Unknown"

// DisplayName returns the vendor name or UnknownVendorName when absent.
func (v Vendor) DisplayName() string {
	if v.Name == nil || *v.Name == "" {
		return UnknownVendorName
	}
	return *v.Name
}

// LineItem is a single priced line on an invoice.
type LineItem struct {
	ID          string
	InvoiceID   string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
	TaxRate     *decimal.Decimal
}

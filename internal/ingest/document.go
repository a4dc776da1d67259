// Package ingest loads extracted invoice documents into the ledger.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// field is the {"value": ...} wrapper every extracted leaf uses.
type field[T any] struct {
	Value *T `json:"value"`
}

func (f *field[T]) get() (T, bool) {
	var zero T
	if f == nil || f.Value == nil {
		return zero, false
	}
	return *f.Value, true
}

func text(f *field[string]) string {
	v, _ := f.get()
	return strings.TrimSpace(v)
}

// Document is one extracted document of the seed export.
type Document struct {
	Status        string `json:"status"`
	ExtractedData *struct {
		LLMData *LLMData `json:"llmData"`
	} `json:"extractedData"`
}

// LLMData is the structured extraction of a single invoice.
type LLMData struct {
	Invoice   *field[InvoiceBlock] `json:"invoice"`
	Vendor    *field[VendorBlock]  `json:"vendor"`
	Payment   *field[PaymentBlock] `json:"payment"`
	LineItems *field[[]LineBlock]  `json:"lineItems"`
	Totals    *field[TotalsBlock]  `json:"totals"`
}

// InvoiceBlock holds the invoice header fields.
type InvoiceBlock struct {
	InvoiceID    *field[string] `json:"invoiceId"`
	InvoiceDate  *field[string] `json:"invoiceDate"`
	DeliveryDate *field[string] `json:"deliveryDate"`
}

// VendorBlock holds the issuing vendor.
type VendorBlock struct {
	VendorName    *field[string] `json:"vendorName"`
	VendorAddress *field[string] `json:"vendorAddress"`
	VendorTaxID   *field[string] `json:"vendorTaxId"`
}

// PaymentBlock holds payment terms.
type PaymentBlock struct {
	DueDate      *field[string] `json:"dueDate"`
	PaymentTerms *field[string] `json:"paymentTerms"`
}

// LineBlock is one extracted line item.
type LineBlock struct {
	Description *field[string]          `json:"description"`
	Quantity    *field[decimal.Decimal] `json:"quantity"`
	UnitPrice   *field[decimal.Decimal] `json:"unitPrice"`
	TotalAmount *field[decimal.Decimal] `json:"totalAmount"`
}

// TotalsBlock holds the invoice totals.
type TotalsBlock struct {
	Subtotal    *field[decimal.Decimal] `json:"subtotal"`
	TaxAmount   *field[decimal.Decimal] `json:"taxAmount"`
	TotalAmount *field[decimal.Decimal] `json:"totalAmount"`
	Currency    *field[string]          `json:"currency"`
}

func (d Document) llm() *LLMData {
	if d.ExtractedData == nil {
		return nil
	}
	return d.ExtractedData.LLMData
}

// Decode reads the seed export. A document that is not a JSON array decodes
// to no documents.
func Decode(r io.Reader) ([]Document, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("ingest: decode: %w", err)
	}
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, nil
	}
	var docs []Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("ingest: decode documents: %w", err)
	}
	return docs, nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02.01.2006",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("ingest: unrecognised date %q", s)
}

package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/odyssey-erp/invoice-analytics/internal/analytics"
)

func TestWriteOverviewCSV(t *testing.T) {
	stats := analytics.OverviewStatistics{
		TotalSpend: analytics.MetricValue{Value: 1234.5, ChangePercent: -12.5, Label: "YTD"},
	}
	buf := &bytes.Buffer{}
	if err := WriteOverviewCSV(buf, stats, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)); err != nil {
		t.Fatalf("overview csv error: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("csv read error: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(records))
	}
	if got := records[2]; got[1] != "1234.50" || got[2] != "-12.50" || got[3] != "YTD" {
		t.Fatalf("unexpected spend row %v", got)
	}
}

func TestWriteVendorsCSVRanks(t *testing.T) {
	buf := &bytes.Buffer{}
	vendors := []analytics.VendorSpend{
		{VendorName: "Acme, Inc.", TotalSpend: 900, InvoiceCount: 3},
		{VendorName: "Unknown", TotalSpend: 100, InvoiceCount: 1},
	}
	if err := WriteVendorsCSV(buf, vendors); err != nil {
		t.Fatalf("vendors csv error: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("csv read error: %v", err)
	}
	if records[1][0] != "1" || records[1][1] != "Acme, Inc." {
		t.Fatalf("unexpected first row %v", records[1])
	}
	if records[2][0] != "2" {
		t.Fatalf("expected rank 2, got %s", records[2][0])
	}
}

func TestWriteDashboardCSVSections(t *testing.T) {
	payload := DashboardPayload{
		GeneratedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Trend:       []analytics.TrendPoint{{Label: "Jun", Year: 2025, Month: 6, InvoiceCount: 2, TotalSpend: 10}},
		Categories:  []analytics.CategoryShare{{Category: "Office", TotalSpend: 10, Percentage: 100}},
		CashOutflow: []analytics.OutflowBucket{{Label: "0-7 days", Outflow: 5}},
	}
	buf := &bytes.Buffer{}
	if err := WriteDashboardCSV(buf, payload); err != nil {
		t.Fatalf("dashboard csv error: %v", err)
	}
	sections := strings.Split(strings.TrimSpace(buf.String()), "\n\n")
	if len(sections) != 5 {
		t.Fatalf("expected 5 sections, got %d", len(sections))
	}
	if !strings.HasPrefix(sections[4], "Horizon,Outflow") {
		t.Fatalf("unexpected last section %q", sections[4])
	}
}

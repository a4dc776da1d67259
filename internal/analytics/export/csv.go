// Package export renders dashboard metrics as CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/odyssey-erp/invoice-analytics/internal/analytics"
)

// DashboardPayload bundles every metric family for a single export.
type DashboardPayload struct {
	GeneratedAt time.Time
	Overview    analytics.OverviewStatistics
	Trend       []analytics.TrendPoint
	Vendors     []analytics.VendorSpend
	Categories  []analytics.CategoryShare
	CashOutflow []analytics.OutflowBucket
}

// WriteDashboardCSV writes every section separated by a blank line.
func WriteDashboardCSV(w io.Writer, payload DashboardPayload) error {
	sections := []func(io.Writer) error{
		func(w io.Writer) error { return WriteOverviewCSV(w, payload.Overview, payload.GeneratedAt) },
		func(w io.Writer) error { return WriteTrendCSV(w, payload.Trend) },
		func(w io.Writer) error { return WriteVendorsCSV(w, payload.Vendors) },
		func(w io.Writer) error { return WriteCategoriesCSV(w, payload.Categories) },
		func(w io.Writer) error { return WriteCashOutflowCSV(w, payload.CashOutflow) },
	}
	for i, section := range sections {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := section(w); err != nil {
			return err
		}
	}
	return nil
}

// WriteOverviewCSV serialises the headline cards.
func WriteOverviewCSV(w io.Writer, stats analytics.OverviewStatistics, generatedAt time.Time) error {
	rows := [][]string{
		{"Metric", "Value", "Change %", "Label"},
		{"Generated At", generatedAt.UTC().Format(time.RFC3339), "", ""},
		metricRow("Total Spend", stats.TotalSpend),
		metricRow("Total Invoices", stats.TotalInvoices),
		metricRow("Documents Uploaded", stats.DocumentsThisMonth),
		metricRow("Average Invoice Value", stats.AverageInvoiceValue),
	}
	return writeAll(w, rows)
}

// WriteTrendCSV emits the monthly volume series.
func WriteTrendCSV(w io.Writer, points []analytics.TrendPoint) error {
	rows := make([][]string, 0, len(points)+1)
	rows = append(rows, []string{"Year", "Month", "Invoice Count", "Total Spend"})
	for _, p := range points {
		rows = append(rows, []string{
			strconv.Itoa(p.Year),
			p.Label,
			strconv.FormatInt(p.InvoiceCount, 10),
			formatFloat(p.TotalSpend),
		})
	}
	return writeAll(w, rows)
}

// WriteVendorsCSV emits the vendor ranking with its rank.
func WriteVendorsCSV(w io.Writer, vendors []analytics.VendorSpend) error {
	rows := make([][]string, 0, len(vendors)+1)
	rows = append(rows, []string{"Rank", "Vendor", "Total Spend", "Invoice Count"})
	for i, v := range vendors {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			v.VendorName,
			formatFloat(v.TotalSpend),
			strconv.FormatInt(v.InvoiceCount, 10),
		})
	}
	return writeAll(w, rows)
}

// WriteCategoriesCSV emits category shares.
func WriteCategoriesCSV(w io.Writer, shares []analytics.CategoryShare) error {
	rows := make([][]string, 0, len(shares)+1)
	rows = append(rows, []string{"Category", "Total Spend", "Percentage"})
	for _, s := range shares {
		rows = append(rows, []string{s.Category, formatFloat(s.TotalSpend), formatFloat(s.Percentage)})
	}
	return writeAll(w, rows)
}

// WriteCashOutflowCSV emits the due-date forecast.
func WriteCashOutflowCSV(w io.Writer, buckets []analytics.OutflowBucket) error {
	rows := make([][]string, 0, len(buckets)+1)
	rows = append(rows, []string{"Horizon", "Outflow"})
	for _, b := range buckets {
		rows = append(rows, []string{b.Label, formatFloat(b.Outflow)})
	}
	return writeAll(w, rows)
}

func metricRow(name string, m analytics.MetricValue) []string {
	return []string{name, formatFloat(m.Value), formatFloat(m.ChangePercent), m.Label}
}

func writeAll(w io.Writer, rows [][]string) error {
	writer := csv.NewWriter(w)
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

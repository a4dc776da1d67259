package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBuildWhereEmptyPredicate(t *testing.T) {
	where, args := buildWhere(Predicate{})
	require.Empty(t, where)
	require.Empty(t, args)
}

func TestBuildWhereRangesAndFilters(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	category := "Software"
	where, args := buildWhere(Predicate{
		InvoiceDate: DateRange{From: from, To: to},
		Statuses:    []Status{StatusPending, StatusOverdue},
		Category:    &category,
	})
	require.Equal(t, " WHERE invoice_date >= $1 AND invoice_date < $2 AND status = ANY($3) AND category = $4", where)
	require.Equal(t, []any{from, to, []string{"pending", "overdue"}, "Software"}, args)
}

func TestBuildWhereDueDateImpliesNotNull(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	where, args := buildWhere(Predicate{DueDate: DateRange{From: from}})
	require.Equal(t, " WHERE due_date IS NOT NULL AND due_date >= $1", where)
	require.Len(t, args, 1)

	where, _ = buildWhere(Predicate{HasDueDate: true, HasCategory: true})
	require.Equal(t, " WHERE due_date IS NOT NULL AND category IS NOT NULL", where)
}

func TestBuildWhereInclusiveUpperBound(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	vendor := "v-1"
	where, args := buildWhere(Predicate{
		InvoiceDate: DateRange{To: now, IncludeTo: true},
		VendorID:    &vendor,
	})
	require.Equal(t, " WHERE invoice_date <= $1 AND vendor_id = $2", where)
	require.Equal(t, []any{now, "v-1"}, args)
}

func TestDateRangeContains(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	r := DateRange{From: from, To: to}
	require.True(t, r.Contains(from))
	require.False(t, r.Contains(to))
	require.False(t, r.Contains(from.Add(-time.Second)))

	r.IncludeTo = true
	require.True(t, r.Contains(to))
	require.True(t, DateRange{}.Contains(to))
}

func TestVendorDisplayName(t *testing.T) {
	require.Equal(t, UnknownVendorName, Vendor{}.DisplayName())
	empty := ""
	require.Equal(t, UnknownVendorName, Vendor{Name: &empty}.DisplayName())
	name := "Acme"
	require.Equal(t, "Acme", Vendor{Name: &name}.DisplayName())
}

func TestParseNullDecimal(t *testing.T) {
	str := func(s string) *string { return &s }
	cases := []struct {
		name    string
		raw     *string
		valid   bool
		want    string
		wantErr bool
	}{
		{name: "null aggregate", raw: nil},
		{name: "numeric text", raw: str("300.00"), valid: true, want: "300"},
		{name: "long average", raw: str("116.6666666666666667"), valid: true, want: "116.6666666666666667"},
		{name: "garbage", raw: str("abc"), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseNullDecimal(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "ledger: parse numeric")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.valid, got.Valid)
			if tc.valid {
				require.True(t, got.Decimal.Equal(decimal.RequireFromString(tc.want)))
			}
		})
	}
}

func TestNewGroupRow(t *testing.T) {
	vendor := "v-1"
	row, err := newGroupRow(&vendor, "1250.50", 3)
	require.NoError(t, err)
	require.Equal(t, "v-1", *row.Value)
	require.True(t, row.Sum.Equal(decimal.RequireFromString("1250.5")))
	require.EqualValues(t, 3, row.Count)

	row, err = newGroupRow(nil, "0", 2)
	require.NoError(t, err)
	require.Nil(t, row.Value)
	require.True(t, row.Sum.IsZero())

	_, err = newGroupRow(&vendor, "", 1)
	require.Error(t, err)
}

func TestReduceQuery(t *testing.T) {
	query, args, err := reduceQuery("AVG", FieldTotalAmount, Predicate{Statuses: []Status{StatusPaid}})
	require.NoError(t, err)
	require.Equal(t, "SELECT AVG(total_amount)::text FROM invoices WHERE status = ANY($1)", query)
	require.Equal(t, []any{[]string{"paid"}}, args)

	_, _, err = reduceQuery("SUM", Field("discount"), Predicate{})
	require.ErrorIs(t, err, ErrUnsupportedField)
}

func TestGroupQuery(t *testing.T) {
	query, args, err := groupQuery(GroupVendor, Predicate{}, GroupOptions{OrderBySumDesc: true, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, "SELECT vendor_id, COALESCE(SUM(total_amount), 0)::text, COUNT(*) FROM invoices GROUP BY vendor_id ORDER BY SUM(total_amount) DESC LIMIT $1", query)
	require.Equal(t, []any{10}, args)

	category := "Travel"
	query, args, err = groupQuery(GroupCategory, Predicate{Category: &category}, GroupOptions{})
	require.NoError(t, err)
	require.Equal(t, "SELECT category, COALESCE(SUM(total_amount), 0)::text, COUNT(*) FROM invoices WHERE category = $1 GROUP BY category", query)
	require.Equal(t, []any{"Travel"}, args)

	_, _, err = groupQuery(GroupField("currency"), Predicate{}, GroupOptions{})
	require.ErrorIs(t, err, ErrUnsupportedField)
}

package perf

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/invoice-analytics/internal/analytics"
	analytichttp "github.com/odyssey-erp/invoice-analytics/internal/analytics/http"
	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
	"github.com/odyssey-erp/invoice-analytics/internal/ledger/memory"
)

var benchNow = time.Date(2025, time.November, 20, 12, 0, 0, 0, time.UTC)

func seedLedger(tb testing.TB, invoices int) *memory.Store {
	tb.Helper()
	ctx := context.Background()
	store := memory.New()
	categories := []string{"Office", "Travel", "Software", "Logistics"}
	for v := 0; v < 25; v++ {
		name := fmt.Sprintf("Vendor %02d", v)
		if err := store.CreateVendor(ctx, ledger.Vendor{ID: fmt.Sprintf("v%d", v), Name: &name}); err != nil {
			tb.Fatalf("create vendor: %v", err)
		}
	}
	statuses := []ledger.Status{ledger.StatusPaid, ledger.StatusPending, ledger.StatusOverdue}
	for i := 0; i < invoices; i++ {
		category := categories[i%len(categories)]
		due := benchNow.AddDate(0, 0, i%90-20)
		inv := ledger.Invoice{
			ID:            fmt.Sprintf("inv-%d", i),
			InvoiceNumber: fmt.Sprintf("INV-%05d", i),
			VendorID:      fmt.Sprintf("v%d", i%25),
			InvoiceDate:   benchNow.AddDate(0, 0, -(i % 700)),
			DueDate:       &due,
			TotalAmount:   decimal.NewFromInt(int64(100 + i%900)),
			Status:        statuses[i%len(statuses)],
			Category:      &category,
			Currency:      "EUR",
		}
		if err := store.CreateInvoice(ctx, inv); err != nil {
			tb.Fatalf("create invoice: %v", err)
		}
	}
	return store
}

func newDashboardServer(tb testing.TB, cache *analytics.Cache) http.Handler {
	tb.Helper()
	svc := analytics.NewService(seedLedger(tb, 2000), cache).WithNow(func() time.Time { return benchNow })
	r := chi.NewRouter()
	analytichttp.NewHandler(nil, svc).MountRoutes(r)
	return r
}

func BenchmarkDashboardCold(b *testing.B) {
	handler := newDashboardServer(b, nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		if rec.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}

func BenchmarkDashboardCached(b *testing.B) {
	mr := miniredis.RunT(b)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b.Cleanup(func() { _ = client.Close() })
	handler := newDashboardServer(b, analytics.NewCache(client, time.Minute))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		if rec.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}

func TestDashboardLatencyTargets(t *testing.T) {
	if testing.Short() {
		t.Skip("latency sampling skipped in short mode")
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	scenarios := []struct {
		name      string
		handler   http.Handler
		threshold time.Duration
	}{
		{name: "cold", handler: newDashboardServer(t, nil), threshold: 2 * time.Second},
		{name: "cached", handler: newDashboardServer(t, analytics.NewCache(client, time.Minute)), threshold: 500 * time.Millisecond},
	}

	for _, scenario := range scenarios {
		samples := make([]time.Duration, 0, 10)
		for i := 0; i < 10; i++ {
			start := time.Now()
			rec := httptest.NewRecorder()
			scenario.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("%s: unexpected status %d", scenario.name, rec.Code)
			}
			samples = append(samples, time.Since(start))
		}
		if p95 := percentile95(samples); p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func TestPercentile95(t *testing.T) {
	samples := []time.Duration{5, 1, 4, 2, 3}
	if got := percentile95(samples); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
	if got := percentile95(nil); got != 0 {
		t.Fatalf("expected 0 for empty samples, got %d", got)
	}
}

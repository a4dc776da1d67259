package analytichttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/invoice-analytics/internal/analytics"
	"github.com/odyssey-erp/invoice-analytics/internal/ledger"
	"github.com/odyssey-erp/invoice-analytics/internal/ledger/memory"
)

var fixedNow = time.Date(2025, 12, 10, 8, 0, 0, 0, time.UTC)

type stubService struct {
	stats      analytics.OverviewStatistics
	trend      []analytics.TrendPoint
	vendors    []analytics.VendorSpend
	categories []analytics.CategoryShare
	outflow    []analytics.OutflowBucket
	err        error
	lastMonths int
	lastLimit  int
}

func (s *stubService) GetOverviewStatistics(ctx context.Context) (analytics.OverviewStatistics, error) {
	return s.stats, s.err
}

func (s *stubService) GetTrendSeries(ctx context.Context, months int) ([]analytics.TrendPoint, error) {
	s.lastMonths = months
	return s.trend, s.err
}

func (s *stubService) GetTopVendors(ctx context.Context, limit int) ([]analytics.VendorSpend, error) {
	s.lastLimit = limit
	return s.vendors, s.err
}

func (s *stubService) GetCategoryDistribution(ctx context.Context) ([]analytics.CategoryShare, error) {
	return s.categories, s.err
}

func (s *stubService) GetCashOutflowForecast(ctx context.Context) ([]analytics.OutflowBucket, error) {
	return s.outflow, s.err
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func serve(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func seededService(t *testing.T) *analytics.Service {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	name := "Acme Office Supplies"
	if err := store.CreateVendor(ctx, ledger.Vendor{ID: "v1", Name: &name}); err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	category := "Office"
	due := fixedNow.AddDate(0, 0, 10)
	for i, amount := range []int64{100, 200} {
		err := store.CreateInvoice(ctx, ledger.Invoice{
			ID:          fmt.Sprintf("i%d", i),
			VendorID:    "v1",
			InvoiceDate: fixedNow.AddDate(0, 0, -i),
			DueDate:     &due,
			TotalAmount: decimal.NewFromInt(amount),
			Status:      ledger.StatusPending,
			Category:    &category,
			Currency:    "EUR",
		})
		if err != nil {
			t.Fatalf("create invoice: %v", err)
		}
	}
	return analytics.NewService(store, nil).WithNow(func() time.Time { return fixedNow })
}

func TestStatsWireShape(t *testing.T) {
	handler := NewHandler(nil, seededService(t))
	rr := serve(t, newRouter(handler), "/stats")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body map[string]map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"totalSpend", "totalInvoices", "documentsUploaded", "averageInvoiceValue"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("missing %s in %v", key, body)
		}
	}
	if body["documentsUploaded"]["value"].(float64) != 2 {
		t.Fatalf("expected 2 documents, got %v", body["documentsUploaded"]["value"])
	}
	if body["totalSpend"]["label"] != "YTD" {
		t.Fatalf("expected YTD label, got %v", body["totalSpend"]["label"])
	}
}

func TestTrendsUsesDefaultAndQueryMonths(t *testing.T) {
	svc := &stubService{}
	router := newRouter(NewHandler(nil, svc))

	if rr := serve(t, router, "/invoice-trends"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.lastMonths != analytics.DefaultTrendMonths {
		t.Fatalf("expected default months, got %d", svc.lastMonths)
	}
	if rr := serve(t, router, "/invoice-trends?months=6"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.lastMonths != 6 {
		t.Fatalf("expected 6 months, got %d", svc.lastMonths)
	}
}

func TestNonIntegerParamIsBadRequest(t *testing.T) {
	router := newRouter(NewHandler(nil, &stubService{}))
	for _, target := range []string{"/invoice-trends?months=abc", "/vendors/top10?limit=1.5", "/dashboard?months=x"} {
		rr := serve(t, router, target)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rr.Code)
		}
	}
}

func TestOutOfRangeParamIsRejectedByProducer(t *testing.T) {
	router := newRouter(NewHandler(nil, seededService(t)))
	for _, target := range []string{"/invoice-trends?months=0", "/invoice-trends?months=13", "/vendors/top10?limit=-1"} {
		rr := serve(t, router, target)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
			t.Fatalf("%s: unexpected content type %s", target, ct)
		}
	}
}

func TestLedgerFailureIsServerError(t *testing.T) {
	svc := &stubService{err: &analytics.ComputationError{Metric: "overview", Err: fmt.Errorf("connection reset")}}
	router := newRouter(NewHandler(nil, svc))
	for _, target := range []string{"/stats", "/category-spend", "/cash-outflow", "/dashboard"} {
		rr := serve(t, router, target)
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", target, rr.Code)
		}
		if strings.Contains(rr.Body.String(), "connection reset") {
			t.Fatalf("%s: leaked internal error", target)
		}
	}
}

func TestDashboardCombinesProducers(t *testing.T) {
	router := newRouter(NewHandler(nil, seededService(t)))
	rr := serve(t, router, "/dashboard?months=3&limit=5")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body Dashboard
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Trends) != 3 {
		t.Fatalf("expected 3 trend points, got %d", len(body.Trends))
	}
	if len(body.TopVendors) != 1 || body.TopVendors[0].VendorName != "Acme Office Supplies" {
		t.Fatalf("unexpected vendors %+v", body.TopVendors)
	}
	if len(body.CashOutflow) != 4 || body.CashOutflow[1].Outflow != 300 {
		t.Fatalf("unexpected outflow %+v", body.CashOutflow)
	}
	if len(body.Categories) != 1 || body.Categories[0].Percentage != 100 {
		t.Fatalf("unexpected categories %+v", body.Categories)
	}
}

func TestCSVExport(t *testing.T) {
	handler := NewHandler(nil, seededService(t))
	handler.WithNow(func() time.Time { return fixedNow })
	rr := serve(t, newRouter(handler), "/dashboard/export.csv")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %s", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "invoice-analytics-2025-12-10.csv") {
		t.Fatalf("unexpected disposition %s", cd)
	}
	body := rr.Body.String()
	for _, want := range []string{"Metric,Value", "Acme Office Supplies", "Horizon,Outflow", "8-30 days,300.00"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in CSV:\n%s", want, body)
		}
	}
}

func TestCSVExportIsRateLimited(t *testing.T) {
	router := newRouter(NewHandler(nil, &stubService{}))
	var last int
	for i := 0; i <= ExportRequestsPerMinute; i++ {
		last = serve(t, router, "/dashboard/export.csv").Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d exports, got %d", ExportRequestsPerMinute, last)
	}
}

package analytichttp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/invoice-analytics/internal/analytics"
	"github.com/odyssey-erp/invoice-analytics/internal/analytics/export"
	"github.com/odyssey-erp/invoice-analytics/internal/platform/httpx"
)

const requestTimeout = 5 * time.Second

// AnalyticsService defines the metric contract used by the handler.
type AnalyticsService interface {
	GetOverviewStatistics(ctx context.Context) (analytics.OverviewStatistics, error)
	GetTrendSeries(ctx context.Context, months int) ([]analytics.TrendPoint, error)
	GetTopVendors(ctx context.Context, limit int) ([]analytics.VendorSpend, error)
	GetCategoryDistribution(ctx context.Context) ([]analytics.CategoryShare, error)
	GetCashOutflowForecast(ctx context.Context) ([]analytics.OutflowBucket, error)
}

// Handler serves the dashboard metrics as JSON and CSV.
type Handler struct {
	logger  *slog.Logger
	service AnalyticsService
	csvPool sync.Pool
	now     func() time.Time
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:  logger,
		service: service,
		now:     time.Now,
	}
	h.csvPool.New = func() any { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the clock used to stamp exports.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// Dashboard is the combined payload of every metric family.
type Dashboard struct {
	Stats       analytics.OverviewStatistics `json:"stats"`
	Trends      []analytics.TrendPoint       `json:"trends"`
	TopVendors  []analytics.VendorSpend      `json:"topVendors"`
	Categories  []analytics.CategoryShare    `json:"categorySpend"`
	CashOutflow []analytics.OutflowBucket    `json:"cashOutflow"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetOverviewStatistics(r.Context())
	if err != nil {
		h.respondError(w, "overview statistics", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleTrends(w http.ResponseWriter, r *http.Request) {
	months, err := intParam(r, "months", analytics.DefaultTrendMonths)
	if err != nil {
		h.respondError(w, "parse months", err)
		return
	}
	points, err := h.service.GetTrendSeries(r.Context(), months)
	if err != nil {
		h.respondError(w, "trend series", err)
		return
	}
	httpx.JSON(w, http.StatusOK, points)
}

func (h *Handler) handleTopVendors(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", analytics.DefaultVendorLimit)
	if err != nil {
		h.respondError(w, "parse limit", err)
		return
	}
	vendors, err := h.service.GetTopVendors(r.Context(), limit)
	if err != nil {
		h.respondError(w, "top vendors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, vendors)
}

func (h *Handler) handleCategorySpend(w http.ResponseWriter, r *http.Request) {
	shares, err := h.service.GetCategoryDistribution(r.Context())
	if err != nil {
		h.respondError(w, "category distribution", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shares)
}

func (h *Handler) handleCashOutflow(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.service.GetCashOutflowForecast(r.Context())
	if err != nil {
		h.respondError(w, "cash outflow forecast", err)
		return
	}
	httpx.JSON(w, http.StatusOK, buckets)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	params, err := parseDashboardParams(r)
	if err != nil {
		h.respondError(w, "parse dashboard params", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	data, err := h.loadDashboardData(ctx, params)
	if err != nil {
		h.respondError(w, "load dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *Handler) handleCSV(w http.ResponseWriter, r *http.Request) {
	params, err := parseDashboardParams(r)
	if err != nil {
		h.respondError(w, "parse dashboard params", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	data, err := h.loadDashboardData(ctx, params)
	if err != nil {
		h.respondError(w, "load dashboard", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	generatedAt := h.now().UTC()
	if err := export.WriteDashboardCSV(buf, export.DashboardPayload{
		GeneratedAt: generatedAt,
		Overview:    data.Stats,
		Trend:       data.Trends,
		Vendors:     data.TopVendors,
		Categories:  data.Categories,
		CashOutflow: data.CashOutflow,
	}); err != nil {
		h.respondError(w, "write dashboard csv", err)
		return
	}

	filename := fmt.Sprintf("invoice-analytics-%s.csv", generatedAt.Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

type dashboardParams struct {
	months int
	limit  int
}

func parseDashboardParams(r *http.Request) (dashboardParams, error) {
	months, err := intParam(r, "months", analytics.DefaultTrendMonths)
	if err != nil {
		return dashboardParams{}, err
	}
	limit, err := intParam(r, "limit", analytics.DefaultVendorLimit)
	if err != nil {
		return dashboardParams{}, err
	}
	return dashboardParams{months: months, limit: limit}, nil
}

func (h *Handler) loadDashboardData(ctx context.Context, params dashboardParams) (Dashboard, error) {
	var data Dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := h.service.GetOverviewStatistics(ctx)
		if err != nil {
			return err
		}
		data.Stats = stats
		return nil
	})

	g.Go(func() error {
		points, err := h.service.GetTrendSeries(ctx, params.months)
		if err != nil {
			return err
		}
		data.Trends = points
		return nil
	})

	g.Go(func() error {
		vendors, err := h.service.GetTopVendors(ctx, params.limit)
		if err != nil {
			return err
		}
		data.TopVendors = vendors
		return nil
	})

	g.Go(func() error {
		shares, err := h.service.GetCategoryDistribution(ctx)
		if err != nil {
			return err
		}
		data.Categories = shares
		return nil
	})

	g.Go(func() error {
		buckets, err := h.service.GetCashOutflowForecast(ctx)
		if err != nil {
			return err
		}
		data.CashOutflow = buckets
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return data, nil
}

// intParam reads an optional integer query parameter. Range checks belong to
// the producers.
func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", httpx.ErrValidation, name)
	}
	return v, nil
}

func (h *Handler) respondError(w http.ResponseWriter, context string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logError(context, err)
	}
	httpx.RespondError(w, err)
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}

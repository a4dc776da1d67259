package analytichttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/invoice-analytics/internal/platform/httpx"
)

// ExportRequestsPerMinute bounds CSV exports per client IP.
const ExportRequestsPerMinute = 10

// MountRoutes registers the dashboard endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(ExportRequestsPerMinute, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit exceeded")
		}),
	)

	r.Get("/stats", h.handleStats)
	r.Get("/invoice-trends", h.handleTrends)
	r.Get("/vendors/top10", h.handleTopVendors)
	r.Get("/category-spend", h.handleCategorySpend)
	r.Get("/cash-outflow", h.handleCashOutflow)
	r.Get("/dashboard", h.handleDashboard)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/dashboard/export.csv", h.handleCSV)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

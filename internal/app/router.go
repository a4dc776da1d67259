package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	analytichttp "github.com/odyssey-erp/invoice-analytics/internal/analytics/http"
	"github.com/odyssey-erp/invoice-analytics/internal/chat"
	"github.com/odyssey-erp/invoice-analytics/internal/invoices"
	"github.com/odyssey-erp/invoice-analytics/internal/observability"
	"github.com/odyssey-erp/invoice-analytics/internal/platform/httpx"
	"github.com/odyssey-erp/invoice-analytics/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AnalyticsHandler *analytichttp.Handler
	InvoicesHandler  *invoices.Handler
	ChatHandler      *chat.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
	Now              func() time.Time
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	now := params.Now
	if now == nil {
		now = time.Now
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{
			"status":    "ok",
			"timestamp": now().UTC().Format(time.RFC3339),
		})
	})

	if params.AnalyticsHandler != nil {
		params.AnalyticsHandler.MountRoutes(r)
	}
	if params.InvoicesHandler != nil {
		params.InvoicesHandler.MountRoutes(r)
	}
	if params.ChatHandler != nil {
		params.ChatHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "route not found")
	})

	return r
}

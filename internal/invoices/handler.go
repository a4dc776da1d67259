package invoices

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/invoice-analytics/internal/platform/httpx"
)

// Handler exposes the invoice table endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the invoice handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers /invoices endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices", h.List)
	r.Get("/invoices/{id}", h.Show)
}

// List handles GET /invoices.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.service.List(r.Context(), req)
	if err != nil {
		h.fail(w, "list invoices failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

// Show handles GET /invoices/{id}.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get invoice failed", err, slog.String("id", id))
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(msg, append(attrs, slog.Any("error", err))...)
	}
	httpx.RespondError(w, err)
}

func parseListRequest(r *http.Request) (ListRequest, error) {
	q := r.URL.Query()
	req := ListRequest{
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		Search:    strings.TrimSpace(q.Get("search")),
		Status:    strings.TrimSpace(q.Get("status")),
		SortBy:    DefaultSortBy,
		SortOrder: DefaultSortOrder,
	}
	for name, dst := range map[string]*int{"page": &req.Page, "limit": &req.Limit} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return ListRequest{}, fmt.Errorf("%w: %s must be an integer", httpx.ErrValidation, name)
		}
		*dst = v
	}
	if v := strings.TrimSpace(q.Get("sortBy")); v != "" {
		req.SortBy = v
	}
	if v := strings.ToLower(strings.TrimSpace(q.Get("sortOrder"))); v != "" {
		req.SortOrder = v
	}
	return req, nil
}

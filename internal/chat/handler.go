package chat

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/invoice-analytics/internal/platform/httpx"
)

// Asker answers a natural-language question.
type Asker interface {
	Ask(ctx context.Context, question string) (Answer, error)
}

// Request is the body accepted by POST /chat-with-data.
type Request struct {
	Query string `json:"query" validate:"required"`
}

// Response echoes the question alongside the upstream answer.
type Response struct {
	Query       string           `json:"query"`
	SQL         string           `json:"sql"`
	Results     []map[string]any `json:"results"`
	Explanation string           `json:"explanation"`
}

// Handler serves the chat endpoint.
type Handler struct {
	logger   *slog.Logger
	asker    Asker
	validate *validator.Validate
}

// NewHandler constructs a chat handler.
func NewHandler(logger *slog.Logger, asker Asker) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, asker: asker, validate: validator.New()}
}

// MountRoutes registers the chat endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/chat-with-data", h.handleChat)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "query is required")
		return
	}

	answer, err := h.asker.Ask(r.Context(), req.Query)
	if err != nil {
		h.logger.Error("chat query failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	results := answer.Results
	if results == nil {
		results = []map[string]any{}
	}
	httpx.JSON(w, http.StatusOK, Response{
		Query:       req.Query,
		SQL:         answer.SQL,
		Results:     results,
		Explanation: answer.Explanation,
	})
}

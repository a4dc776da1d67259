package invoices

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/invoice-analytics/internal/platform/httpx"
)

// Service validates table queries and shapes repository rows for the wire.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService wires the invoice repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// List returns one page of invoices.
func (s *Service) List(ctx context.Context, req ListRequest) (Page, error) {
	if err := s.validate.Struct(req); err != nil {
		return Page{}, validationFailure(err)
	}
	rows, total, err := s.repo.List(ctx, req)
	if err != nil {
		return Page{}, err
	}
	data := make([]Summary, 0, len(rows))
	for _, row := range rows {
		data = append(data, toSummary(row))
	}
	return Page{
		Data: data,
		Pagination: Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: (total + req.Limit - 1) / req.Limit,
		},
	}, nil
}

// Get returns one invoice with its vendor and line items.
func (s *Service) Get(ctx context.Context, id string) (DetailView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DetailView{}, fmt.Errorf("%w: invoice id required", httpx.ErrValidation)
	}
	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return DetailView{}, err
	}
	return toDetailView(detail), nil
}

func validationFailure(err error) error {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()[:1])+fe.Field()[1:], fe.Tag()))
	}
	return fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(fields, ", "))
}

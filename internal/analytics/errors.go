package analytics

import (
	"fmt"

	"github.com/odyssey-erp/invoice-analytics/internal/platform/httpx"
)

// ErrInvalidParameter rejects a request before any ledger query is issued.
var ErrInvalidParameter = fmt.Errorf("analytics: invalid parameter: %w", httpx.ErrValidation)

// ComputationError reports a ledger failure while deriving a metric.
type ComputationError struct {
	Metric string
	Err    error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("analytics: compute %s: %v", e.Metric, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

func computationFailed(metric string, err error) error {
	if err == nil {
		return nil
	}
	return &ComputationError{Metric: metric, Err: err}
}

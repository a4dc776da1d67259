package main

import (
	"testing"

	_ "github.com/odyssey-erp/invoice-analytics/internal/testing/guard"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	main()
}

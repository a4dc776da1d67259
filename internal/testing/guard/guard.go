// Package guard switches binaries into test mode when imported by a test.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("INVOICE_ANALYTICS_TEST_MODE") == "" {
			_ = os.Setenv("INVOICE_ANALYTICS_TEST_MODE", "1")
		}
	})
}

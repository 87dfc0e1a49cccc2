package uid

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures no goroutines leak from the concurrent interning tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

package translate

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in the translate
// package. The retry loop arms timers and per-attempt contexts; this
// catches any that outlive their call.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

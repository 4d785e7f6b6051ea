// Package utils holds test helpers shared across packages.
package utils

import (
	"runtime"
	"testing"
	"time"
)

// GoroutineLeakDetector fails a test when goroutines started during it are
// still running at the end
type GoroutineLeakDetector struct {
	t             testing.TB
	initialCount  int
	allowedGrowth int
	timeout       time.Duration
	pollInterval  time.Duration
}

// NewGoroutineLeakDetector creates a detector reporting to t
func NewGoroutineLeakDetector(t testing.TB) *GoroutineLeakDetector {
	return &GoroutineLeakDetector{
		t:            t,
		timeout:      2 * time.Second,
		pollInterval: 20 * time.Millisecond,
	}
}

// VerifyNone starts a detector and checks it once the test and its other
// cleanups have finished
func VerifyNone(t testing.TB) *GoroutineLeakDetector {
	d := NewGoroutineLeakDetector(t)
	d.Start()
	t.Cleanup(d.Check)
	return d
}

// Start records the baseline goroutine count
func (d *GoroutineLeakDetector) Start() {
	d.initialCount = runtime.NumGoroutine()
}

// Check polls until the goroutine count is back within the allowed growth
// and reports a leak, with every goroutine's stack, if the timeout expires
// first.
func (d *GoroutineLeakDetector) Check() {
	d.t.Helper()

	deadline := time.Now().Add(d.timeout)
	count := runtime.NumGoroutine()
	for count-d.initialCount > d.allowedGrowth && time.Now().Before(deadline) {
		time.Sleep(d.pollInterval)
		count = runtime.NumGoroutine()
	}

	if leaked := count - d.initialCount; leaked > d.allowedGrowth {
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		d.t.Errorf("goroutine leak: started with %d, ended with %d (allowed growth %d)\n%s",
			d.initialCount, count, d.allowedGrowth, buf[:n])
	}
}

// SetAllowedGrowth sets how many extra goroutines are tolerated
func (d *GoroutineLeakDetector) SetAllowedGrowth(n int) *GoroutineLeakDetector {
	d.allowedGrowth = n
	return d
}

// SetTimeout bounds how long Check waits for goroutines to finish
func (d *GoroutineLeakDetector) SetTimeout(timeout time.Duration) *GoroutineLeakDetector {
	d.timeout = timeout
	return d
}

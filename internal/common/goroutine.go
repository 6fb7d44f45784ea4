// Safe Goroutine - Panic-protected goroutine wrappers

package common

import (
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

var goroutineCounter int64

// GetGoroutineCount returns the number of goroutines spawned via SafeGo.
func GetGoroutineCount() int64 {
	return atomic.LoadInt64(&goroutineCounter)
}

// SafeGo runs a function in a goroutine with panic recovery. Panics are
// logged but do not crash the service. Use for async operations such as
// event publishing where failure must not be fatal.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				if logger != nil {
					logger.Error().
						Str("goroutine", name).
						Str("panic", toString(r)).
						Str("stack", string(buf[:n])).
						Msg("Panic recovered in goroutine")
				}
			}
		}()
		fn()
	}()
}

func toString(v interface{}) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "unknown panic"
}

// Package goroutine holds helpers for goroutines started by ruleguard components.
package goroutine

import (
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"
)

const (
	// StackTraceBufferSize is the buffer size for stack trace collection
	StackTraceBufferSize = 4096
)

// Recover recovers from panics in goroutines and logs them
// If logger is nil, falls back to stderr to ensure panic is recorded
func Recover(name string, logger *zap.SugaredLogger) {
	if r := recover(); r != nil {
		logPanic(name, r, logger)
	}
}

// RecoverError is Recover for goroutines whose result is collected by a
// caller: the panic is logged and stored in errp so the caller sees a failure
// instead of a silent success. It must be deferred directly.
func RecoverError(name string, logger *zap.SugaredLogger, errp *error) {
	if r := recover(); r != nil {
		logPanic(name, r, logger)
		if errp != nil {
			*errp = fmt.Errorf("goroutine %s panicked: %v", name, r)
		}
	}
}

func logPanic(name string, r interface{}, logger *zap.SugaredLogger) {
	buf := make([]byte, StackTraceBufferSize)
	n := runtime.Stack(buf, false)

	if logger != nil {
		logger.Errorw("Goroutine panic recovered",
			"goroutine", name,
			"panic", r,
			"stack", string(buf[:n]))
		return
	}
	// Fallback to stderr when logger is nil
	fmt.Fprintf(os.Stderr, "PANIC in goroutine %s (no logger): %v\n%s\n",
		name, r, string(buf[:n]))
}

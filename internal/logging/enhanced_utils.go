package logging

import (
	"context"
	"time"

	"ragcore/internal/rcerrors"
)

// EnhancedLogger wraps a Logger with context- and error-aware helpers used
// throughout the pipeline's stage boundaries.
type EnhancedLogger struct {
	Logger
	component string
}

// NewEnhancedLogger creates an enhanced logger for a component.
func NewEnhancedLogger(component string) *EnhancedLogger {
	baseLogger := NewLogger(INFO)
	return &EnhancedLogger{
		Logger:    baseLogger.WithComponent(component),
		component: component,
	}
}

// WithContext creates a logger carrying the trace ID found in ctx.
func (l *EnhancedLogger) WithContext(ctx context.Context) *EnhancedLogger {
	traceID := GetTraceID(ctx)
	return &EnhancedLogger{
		Logger:    l.Logger.WithTraceID(traceID),
		component: l.component,
	}
}

// WithError logs err, enriching the entry with taxonomy kind/code when err
// is (or wraps) an *rcerrors.Error.
func (l *EnhancedLogger) WithError(err error) *EnhancedLogger {
	if err == nil {
		return l
	}

	if kind, ok := rcerrors.KindOf(err); ok {
		l.Error("component error",
			"error", err.Error(),
			"kind", string(kind),
			"retryable", rcerrors.IsRetryable(err),
		)
	} else {
		l.Error("component error", "error", err.Error())
	}

	return l
}

// LogOperation logs the start and completion of an operation, returning fn's
// error unchanged so it can be used inline: `return logger.LogOperation(...)`.
func (l *EnhancedLogger) LogOperation(operation string, fn func() error) error {
	start := time.Now()
	l.Info("starting operation", "operation", operation)

	err := fn()
	duration := time.Since(start)

	if err != nil {
		l.Error("operation failed",
			"operation", operation,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return err
	}

	l.Info("operation completed",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

// LogSlowOperation warns when an operation exceeds its expected duration.
func (l *EnhancedLogger) LogSlowOperation(operation string, duration, expected time.Duration) {
	l.Warn("slow operation detected",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
		"expected_ms", expected.Milliseconds(),
		"slowdown_factor", float64(duration)/float64(expected),
	)
}

// GetComponentLogger returns an enhanced logger for the named component.
func GetComponentLogger(component string) *EnhancedLogger {
	return NewEnhancedLogger(component)
}

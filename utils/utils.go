// Package utils provides helper functions shared across the redirector.
package utils

import (
	"runtime/debug"

	"go.uber.org/zap"
)

// Version is the version of the redirector, injected during build by ldflags.
var Version = "dev"

// LogError logs the error with the given message and fields, ignoring nil
// errors.
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if logger == nil {
		panic("logger is not set")
	}
	if err == nil {
		return
	}
	fields = append(fields, zap.Error(err))
	logger.Error(msg, fields...)
}

// Recover recovers from a panic in a goroutine and logs the stack trace.
// Meant to be deferred at the top of every goroutine we spawn.
func Recover(logger *zap.Logger) {
	if logger == nil {
		panic("logger is not set")
	}
	if r := recover(); r != nil {
		logger.Error("panic recovered",
			zap.Any("panic", r),
			zap.String("stacktrace", string(debug.Stack())),
		)
	}
}

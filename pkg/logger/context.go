package logger

import (
	"context"
)

type loggerKey struct{}

// FromContext retrieves the logger from the context, falling back to Get.
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return Get()
	}
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Get()
}

// IntoContext injects a logger into the context
func IntoContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

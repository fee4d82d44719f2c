package utils

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Logger is the process-wide structured logger. It is a no-op until main
// installs the configured one with SetLogger.
var Logger = zap.NewNop()

// SetLogger replaces the process-wide logger. Call before serving traffic.
func SetLogger(l *zap.Logger) {
	if l != nil {
		Logger = l
	}
}

// LogEvent logs a standardized line with module/action/request_id.
// Avoid logging sensitive payload; message should be summarized.
func LogEvent(requestID, module, action, message string, fields ...zap.Field) {
	base := []zap.Field{
		zap.String("module", strings.ToLower(module)),
		zap.String("action", action),
		zap.String("request_id", strings.TrimSpace(requestID)),
	}
	Logger.Info(message, append(base, fields...)...)
}

type requestIDKey struct{}

// WithRequestID stores the request id so services can tag their logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

package logging

import (
	"go.uber.org/zap"
)

// NewLogger builds a production ready structured logger.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	return cfg.Build()
}

// WithOperation enriches the logger with operation and request identifiers.
func WithOperation(logger *zap.Logger, operation, requestID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	return logger.With(fields...)
}

// WithOwner enriches the logger with the session owner on top of operation
// metadata. The owner is the authenticated subject a tracked upload belongs to.
func WithOwner(logger *zap.Logger, operation, owner string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if owner != "" {
		fields = append(fields, zap.String("owner", owner))
	}
	return logger.With(fields...)
}

package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	batchIDKey   contextKey = "batch_id"
	uploaderKey  contextKey = "uploaded_by"
)

// WithContext returns a new context carrying logger.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the context logger or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return zap.NewNop()
	}
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request id and returns the enriched context and logger.
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	enriched := logger.With(zap.String("request_id", requestID))
	return WithContext(ctx, enriched), enriched
}

// WithBatchID tags everything logged under ctx with the upload batch id.
func WithBatchID(ctx context.Context, logger *zap.Logger, batchID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, batchIDKey, batchID)
	enriched := logger.With(zap.String("batch_id", batchID))
	return WithContext(ctx, enriched), enriched
}

// WithUploader records who submitted the rows being processed.
func WithUploader(ctx context.Context, logger *zap.Logger, uploadedBy string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, uploaderKey, uploadedBy)
	enriched := logger.With(zap.String("uploaded_by", uploadedBy))
	return WithContext(ctx, enriched), enriched
}

// GetRequestID retrieves the request id from ctx.
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// GetBatchID retrieves the upload batch id from ctx.
func GetBatchID(ctx context.Context) string {
	v, _ := ctx.Value(batchIDKey).(string)
	return v
}

// GetUploader retrieves the uploader from ctx.
func GetUploader(ctx context.Context) string {
	v, _ := ctx.Value(uploaderKey).(string)
	return v
}

// L returns the context logger, falling back to fallback when ctx carries none.
// Usage: logger.L(ctx, s.logger).Info("merge pass finished", ...)
func L(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
			return l
		}
	}
	if fallback != nil {
		return fallback
	}
	return zap.NewNop()
}

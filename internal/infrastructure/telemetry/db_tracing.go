package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// Span attributes naming the reconciliation scope of a statement
const (
	SpanAttrRequestID  = "request_id"
	SpanAttrBatchID    = "recon.batch_id"
	SpanAttrUploadedBy = "recon.uploaded_by"
)

const statementStartKey = "recon:trace_start"

// DBTracingConfig selects what the GORM spans carry
type DBTracingConfig struct {
	DBName         string
	SlowThreshold  time.Duration // 0 never flags
	QueryVariables bool          // keep bound values in db.statement
}

type callbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

// RegisterDBTracing opens a client span per GORM statement and tags it with
// the request, batch and uploader found on the statement context. Nothing
// is registered while tracing is disabled.
func RegisterDBTracing(db *gorm.DB, tp *TracerProvider, cfg DBTracingConfig) error {
	if tp == nil || !tp.IsEnabled() {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithTracerProvider(tp.Provider())}
	if cfg.DBName != "" {
		opts = append(opts, otelgorm.WithDBName(cfg.DBName))
	}
	if !cfg.QueryVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("register otelgorm: %w", err)
	}

	finish := finishStatement(cfg.SlowThreshold)
	cb := db.Callback()
	// otelgorm names its hooks otel:before:<op> and otel:after:<op>; ours
	// run inside that span.
	hooks := []struct {
		name string
		at   callbackRegistrar
		fn   func(*gorm.DB)
	}{
		{"start:create", cb.Create().After("otel:before:create").Before("gorm:create"), startStatement},
		{"finish:create", cb.Create().After("gorm:create").Before("otel:after:create"), finish},
		{"start:select", cb.Query().After("otel:before:select").Before("gorm:query"), startStatement},
		{"finish:select", cb.Query().After("gorm:query").Before("otel:after:select"), finish},
		{"start:update", cb.Update().After("otel:before:update").Before("gorm:update"), startStatement},
		{"finish:update", cb.Update().After("gorm:update").Before("otel:after:update"), finish},
		{"start:delete", cb.Delete().After("otel:before:delete").Before("gorm:delete"), startStatement},
		{"finish:delete", cb.Delete().After("gorm:delete").Before("otel:after:delete"), finish},
		{"start:row", cb.Row().After("otel:before:row").Before("gorm:row"), startStatement},
		{"finish:row", cb.Row().After("gorm:row").Before("otel:after:row"), finish},
		{"start:raw", cb.Raw().After("otel:before:raw").Before("gorm:raw"), startStatement},
		{"finish:raw", cb.Raw().After("gorm:raw").Before("otel:after:raw"), finish},
	}
	for _, h := range hooks {
		if err := h.at.Register("recon:"+h.name, h.fn); err != nil {
			return fmt.Errorf("register %s callback: %w", h.name, err)
		}
	}
	return nil
}

func startStatement(tx *gorm.DB) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	tx.InstanceSet(statementStartKey, time.Now())
	span.SetAttributes(ScopeAttributes(ctx)...)
}

func finishStatement(threshold time.Duration) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		if threshold <= 0 || tx.Statement.Context == nil {
			return
		}
		span := trace.SpanFromContext(tx.Statement.Context)
		if !span.IsRecording() {
			return
		}
		v, ok := tx.InstanceGet(statementStartKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		if elapsed := time.Since(start); elapsed > threshold {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query", trace.WithAttributes(
				attribute.Int64("threshold_ms", threshold.Milliseconds()),
			))
		}
	}
}

// ScopeAttributes lists the request, batch and uploader carried by ctx
func ScopeAttributes(ctx context.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if v := logger.GetRequestID(ctx); v != "" {
		attrs = append(attrs, attribute.String(SpanAttrRequestID, v))
	}
	if v := logger.GetBatchID(ctx); v != "" {
		attrs = append(attrs, attribute.String(SpanAttrBatchID, v))
	}
	if v := logger.GetUploader(ctx); v != "" {
		attrs = append(attrs, attribute.String(SpanAttrUploadedBy, v))
	}
	return attrs
}

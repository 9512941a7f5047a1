package telemetry_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/erp/reconciler/internal/infrastructure/config"
	"github.com/erp/reconciler/internal/infrastructure/logger"
	"github.com/erp/reconciler/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type tracedRow struct {
	ID       uint   `gorm:"primaryKey"`
	PONumber string `gorm:"size:64"`
}

func newTracedDB(t *testing.T, cfg telemetry.DBTracingConfig) (*gorm.DB, *tracetest.SpanRecorder) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))

	sr := tracetest.NewSpanRecorder()
	tp, err := telemetry.NewTracerProviderWithProcessor(config.TelemetryConfig{ServiceName: "reconciler-test", SamplingRatio: 1}, "test", sr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	require.NoError(t, telemetry.RegisterDBTracing(db, tp, cfg))
	return db, sr
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	out := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value
	}
	return out
}

// statementSpan finds the span whose db.statement starts with verb
func statementSpan(t *testing.T, spans []sdktrace.ReadOnlySpan, verb string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range spans {
		if stmt, ok := attrMap(s.Attributes())["db.statement"]; ok && strings.HasPrefix(strings.ToUpper(stmt.AsString()), verb) {
			return s
		}
	}
	require.Failf(t, "span not found", "no %s statement span", verb)
	return nil
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), config.TelemetryConfig{ServiceName: "reconciler"}, "test", zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("reconciler"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTracerProvider_SamplingRatio(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp, err := telemetry.NewTracerProviderWithProcessor(config.TelemetryConfig{ServiceName: "reconciler", SamplingRatio: 0}, "test", sr)
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("reconciler").Start(context.Background(), "merge")
	span.End()

	assert.True(t, tp.IsEnabled())
	assert.Empty(t, sr.Ended())
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	tp, err := telemetry.NewTracerProvider(context.Background(), config.TelemetryConfig{}, "test", zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, telemetry.RegisterDBTracing(db, tp, telemetry.DBTracingConfig{}))
	_, ok := db.Plugins["otelgorm"]
	assert.False(t, ok)
}

func TestRegisterDBTracing_TagsStatementScope(t *testing.T) {
	db, sr := newTracedDB(t, telemetry.DBTracingConfig{DBName: "reconciler"})

	ctx, _ := logger.WithBatchID(context.Background(), zap.NewNop(), "batch-7")
	ctx, _ = logger.WithUploader(ctx, zap.NewNop(), "alice")
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{PONumber: "4500001"}).Error)

	span := statementSpan(t, sr.Ended(), "INSERT")
	attrs := attrMap(span.Attributes())
	assert.Equal(t, "batch-7", attrs[telemetry.SpanAttrBatchID].AsString())
	assert.Equal(t, "alice", attrs[telemetry.SpanAttrUploadedBy].AsString())

	statement := attrs["db.statement"].AsString()
	assert.NotContains(t, statement, "4500001")
	_, slow := attrs["db.slow_query"]
	assert.False(t, slow)
}

func TestRegisterDBTracing_QueryVariables(t *testing.T) {
	db, sr := newTracedDB(t, telemetry.DBTracingConfig{QueryVariables: true})

	var rows []tracedRow
	require.NoError(t, db.WithContext(context.Background()).Where("po_number = ?", "4500009").Find(&rows).Error)

	span := statementSpan(t, sr.Ended(), "SELECT")
	assert.True(t, strings.Contains(attrMap(span.Attributes())["db.statement"].AsString(), "4500009"))
	_, tagged := attrMap(span.Attributes())[telemetry.SpanAttrBatchID]
	assert.False(t, tagged)
}

func TestRegisterDBTracing_FlagsSlowStatements(t *testing.T) {
	db, sr := newTracedDB(t, telemetry.DBTracingConfig{SlowThreshold: time.Nanosecond})

	var rows []tracedRow
	require.NoError(t, db.WithContext(context.Background()).Find(&rows).Error)

	span := statementSpan(t, sr.Ended(), "SELECT")
	assert.True(t, attrMap(span.Attributes())["db.slow_query"].AsBool())
	require.NotEmpty(t, span.Events())
	assert.Equal(t, "slow_query", span.Events()[0].Name)
}

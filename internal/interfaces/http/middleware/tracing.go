package middleware

import (
	"net/http"
	"strings"

	"github.com/erp/reconciler/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracing opens a server span per request with otelgin and tags it with the
// request id and, once the handler has run, the uploader or batch it
// scoped the request to. Health probes are not traced. When tracing is
// disabled it only passes the request on.
func Tracing(serviceName string, tp *telemetry.TracerProvider) []gin.HandlerFunc {
	if tp == nil || !tp.IsEnabled() {
		return []gin.HandlerFunc{func(c *gin.Context) { c.Next() }}
	}
	return []gin.HandlerFunc{
		otelgin.Middleware(serviceName,
			otelgin.WithTracerProvider(tp.Provider()),
			otelgin.WithFilter(func(r *http.Request) bool {
				return !strings.HasSuffix(r.URL.Path, "/health")
			}),
		),
		spanScope(),
	}
}

// spanScope runs inside the otelgin span
func spanScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		if id := c.GetString(RequestIDContextKey); id != "" {
			span.SetAttributes(attribute.String(telemetry.SpanAttrRequestID, id))
		}

		c.Next()

		span.SetAttributes(telemetry.ScopeAttributes(c.Request.Context())...)
		// otelgin leaves 4xx unset on server spans; rejected uploads are
		// worth finding
		if status := c.Writer.Status(); status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			span.SetAttributes(attribute.Bool("http.client_error", true))
		}
	}
}

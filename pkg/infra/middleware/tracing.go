package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	ctxlog "github.com/kart-io/sentinel-assistant/pkg/infra/logger"
	mwopts "github.com/kart-io/sentinel-assistant/pkg/options/middleware"
)

// TracerName is the tracer used for inbound HTTP spans.
const TracerName = "github.com/kart-io/sentinel-assistant/pkg/infra/middleware"

// TracingWithOptions 从请求头提取 W3C trace context 并为每个请求创建 server span。
// 全局未设置 TracerProvider 时 span 不会被记录。
func TracingWithOptions(opts mwopts.TracingOptions) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		req := c.Request
		if _, ok := skip[req.URL.Path]; ok {
			c.Next()
			return
		}

		ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		route := c.FullPath()
		if route == "" {
			route = req.URL.Path
		}
		ctx, span := otel.Tracer(TracerName).Start(ctx, req.Method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("http.route", route),
			attribute.String("url.path", req.URL.Path),
			attribute.String("client.address", c.ClientIP()),
		)
		if id := GetRequestID(ctx); id != "" {
			span.SetAttributes(attribute.String("http.request_id", id))
		}

		c.Request = req.WithContext(ctxlog.ExtractOpenTelemetryFields(ctx))
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}
	}
}

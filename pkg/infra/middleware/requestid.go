// Package middleware provides the gin middleware chain of the HTTP server.
package middleware

import (
	"context"
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	ctxlog "github.com/kart-io/sentinel-assistant/pkg/infra/logger"
	mwopts "github.com/kart-io/sentinel-assistant/pkg/options/middleware"
)

// HeaderXRequestID is the default request ID header.
const HeaderXRequestID = "X-Request-ID"

type requestIDKey struct{}

// ULIDGenerator 使用 ULID 生成时间可排序的请求 ID。
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULIDGenerator 创建新的 ULID 生成器，单调熵源保证同一毫秒内有序。
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Generate returns a new ULID string.
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// RequestIDWithOptions 复用请求头中已有的 ID，否则生成 ULID，
// 并写回响应头、请求上下文与上下文日志字段。
func RequestIDWithOptions(opts mwopts.RequestIDOptions) gin.HandlerFunc {
	header := opts.Header
	if header == "" {
		header = HeaderXRequestID
	}
	gen := NewULIDGenerator()

	return func(c *gin.Context) {
		id := c.GetHeader(header)
		if id == "" {
			id = gen.Generate()
		}
		c.Header(header, id)
		c.Set("request_id", id)
		ctx := WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctxlog.WithRequestID(ctx, id))
		c.Next()
	}
}

// WithRequestID stores the request ID in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID returns the request ID from ctx, empty when absent.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

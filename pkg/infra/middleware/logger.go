package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	ctxlog "github.com/kart-io/sentinel-assistant/pkg/infra/logger"
	mwopts "github.com/kart-io/sentinel-assistant/pkg/options/middleware"
)

var fieldsPool = sync.Pool{
	New: func() interface{} {
		s := make([]interface{}, 0, 16)
		return &s
	},
}

// LoggerWithOptions 记录每个请求的访问日志，SkipPaths 中的路径不记录。
func LoggerWithOptions(opts mwopts.LoggerOptions) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := fieldsPool.Get().(*[]interface{})
		defer func() {
			*fields = (*fields)[:0]
			fieldsPool.Put(fields)
		}()

		*fields = append(*fields,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"remote_addr", c.ClientIP(),
			"latency", latency.String(),
			"latency_ms", latency.Milliseconds(),
		)
		// request_id 与 trace_id 来自上下文日志字段
		log := ctxlog.GetLogger(c.Request.Context())
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Errorw("HTTP Request", (*fields)...)
		case status >= 400:
			log.Warnw("HTTP Request", (*fields)...)
		default:
			log.Infow("HTTP Request", (*fields)...)
		}
	}
}

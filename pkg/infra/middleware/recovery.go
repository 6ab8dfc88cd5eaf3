package middleware

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-assistant/pkg/errors"
	ctxlog "github.com/kart-io/sentinel-assistant/pkg/infra/logger"
	mwopts "github.com/kart-io/sentinel-assistant/pkg/options/middleware"
	"github.com/kart-io/sentinel-assistant/pkg/utils/response"
)

// PanicHandler 在 panic 被恢复后调用，可用于告警或计数。
type PanicHandler func(c *gin.Context, err interface{}, stack []byte)

// RecoveryWithOptions 恢复 panic，记录完整堆栈，并以 ErrPanic 响应。
// 生产环境（APP_ENV=production）下不会把堆栈返回给客户端。
func RecoveryWithOptions(opts mwopts.RecoveryOptions, onPanic PanicHandler) gin.HandlerFunc {
	withStack := opts.EnableStackTrace
	if withStack && isProduction() {
		logger.Warn("Stack trace in responses is disabled in production")
		withStack = false
	}

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				// c.Request 已被后续中间件替换，上下文中带有 request_id 与 trace_id
				ctxlog.GetLogger(c.Request.Context()).Errorw("panic recovered",
					"panic", r,
					"stack_trace", string(stack),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				if onPanic != nil {
					onPanic(c, r, stack)
				}

				e := errors.ErrPanic
				if withStack {
					e = e.WithMessage(fmt.Sprintf("panic: %v\n%s", r, stack))
				}
				response.Fail(c, e)
			}
		}()
		c.Next()
	}
}

func isProduction() bool {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	switch env {
	case "production", "prod", "PRODUCTION", "PROD":
		return true
	default:
		return false
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxlog "github.com/kart-io/sentinel-assistant/pkg/infra/logger"
	mwopts "github.com/kart-io/sentinel-assistant/pkg/options/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID_Generated(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDWithOptions(*mwopts.NewRequestIDOptions()))

	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	id := w.Header().Get(HeaderXRequestID)
	require.NotEmpty(t, id)
	assert.Equal(t, id, seen)
	_, err := ulid.ParseStrict(id)
	assert.NoError(t, err)
}

func TestRequestID_Propagated(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDWithOptions(mwopts.RequestIDOptions{Header: "X-Trace"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc", w.Header().Get("X-Trace"))
}

func TestULIDGenerator_Monotonic(t *testing.T) {
	g := NewULIDGenerator()
	prev := g.Generate()
	for i := 0; i < 100; i++ {
		next := g.Generate()
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestRecovery(t *testing.T) {
	var recovered interface{}
	r := gin.New()
	r.Use(RecoveryWithOptions(mwopts.RecoveryOptions{}, func(_ *gin.Context, err interface{}, _ []byte) {
		recovered = err
	}))
	r.GET("/panic", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)
	assert.Equal(t, "kaboom", recovered)
}

func TestLogger_PassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(LoggerWithOptions(*mwopts.NewLoggerOptions()))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	for path, code := range map[string]int{"/healthz": http.StatusOK, "/api": http.StatusTeapot} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, code, w.Code, path)
	}
}

func TestRequestID_AddsLogField(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDWithOptions(*mwopts.NewRequestIDOptions()))

	var fields []any
	r.GET("/", func(c *gin.Context) {
		fields = ctxlog.ContextFields(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "req-42")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []any{ctxlog.FieldRequestID, "req-42"}, fields)
}

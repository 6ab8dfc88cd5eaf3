package middleware

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Defaults(t *testing.T) {
	o := NewOptions()
	assert.True(t, o.IsEnabled(MiddlewareRecovery))
	assert.True(t, o.IsEnabled(MiddlewareRequestID))
	assert.True(t, o.IsEnabled(MiddlewareLogger))
	assert.True(t, o.IsEnabled(MiddlewareTracing))
	assert.Contains(t, o.Tracing.SkipPaths, "/healthz")
	assert.Empty(t, o.Validate())
}

func TestOptions_Flags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--middleware.enabled=recovery", "--middleware.request-id.header=X-Trace"}))
	assert.False(t, o.IsEnabled(MiddlewareLogger))
	assert.Equal(t, "X-Trace", o.RequestID.Header)
}

func TestOptions_ValidateUnknown(t *testing.T) {
	o := NewOptions()
	o.Middleware = append(o.Middleware, "cors")
	o.RequestID.Header = ""
	assert.Len(t, o.Validate(), 2)
}

func TestOptions_CompleteFillsNil(t *testing.T) {
	o := &Options{Middleware: []string{MiddlewareTracing}}
	require.NoError(t, o.Complete())
	assert.NotNil(t, o.Tracing)
	assert.NotNil(t, o.Logger)
	assert.Empty(t, o.Validate())
}

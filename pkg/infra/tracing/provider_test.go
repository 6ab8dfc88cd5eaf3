package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	options "github.com/kart-io/sentinel-assistant/pkg/options/tracing"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), options.NewOptions(), "svc", "v0")
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))

	_, span := StartSpan(context.Background(), "test", "noop")
	defer span.End()
	assert.False(t, span.IsRecording())
	assert.False(t, span.SpanContext().HasTraceID())
}

func TestNewProvider_NoopExporter(t *testing.T) {
	opts := options.NewOptions()
	opts.Enabled = true
	opts.ExporterType = options.ExporterNoop
	opts.SamplerType = options.SamplerAlwaysOn

	p, err := NewProvider(context.Background(), opts, "svc", "v0")
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	assert.True(t, p.Enabled())
	_, span := p.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.True(t, span.IsRecording())
	assert.True(t, span.SpanContext().HasTraceID())
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	opts := options.NewOptions()
	opts.Enabled = true
	opts.ExporterType = "zipkin"

	_, err := NewProvider(context.Background(), opts, "svc", "v0")
	assert.Error(t, err)
}

func TestSpanHelpers(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	AddSpanAttributes(ctx, attribute.String("session", "s1"))
	RecordError(ctx, errors.New("boom"))
	RecordError(ctx, nil)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, otelcodes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.String("session", "s1"))
	assert.Len(t, ended[0].Events(), 1)
}

func TestNewSampler(t *testing.T) {
	opts := options.NewOptions()
	opts.SamplerRatio = 0.5
	for st, want := range map[options.SamplerType]string{
		options.SamplerAlwaysOn:    "AlwaysOnSampler",
		options.SamplerAlwaysOff:   "AlwaysOffSampler",
		options.SamplerRatio:       "TraceIDRatioBased",
		options.SamplerParentBased: "ParentBased",
	} {
		opts.SamplerType = st
		assert.Contains(t, newSampler(opts).Description(), want)
	}
}

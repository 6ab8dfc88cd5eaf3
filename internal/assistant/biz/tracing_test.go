package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return rec
}

func spanNames(rec *tracetest.SpanRecorder) map[string]sdktrace.ReadOnlySpan {
	out := make(map[string]sdktrace.ReadOnlySpan)
	for _, s := range rec.Ended() {
		out[s.Name()] = s
	}
	return out
}

func TestService_AnswerSpans(t *testing.T) {
	rec := recordSpans(t)
	f := newServiceFixture(t, nil)

	_, err := f.svc.Answer(context.Background(), "s", "What services do you offer?")
	require.NoError(t, err)

	spans := spanNames(rec)
	require.Contains(t, spans, "assistant.answer")
	require.Contains(t, spans, "assistant.index.build")
	require.Contains(t, spans, "assistant.model.chat")

	root := spans["assistant.answer"]
	assert.Contains(t, root.Attributes(), attribute.String("assistant.answer.kind", string(AnswerModel)))
	assert.Contains(t, root.Attributes(), attribute.String("assistant.session", "s"))
	assert.Equal(t, root.SpanContext().SpanID(), spans["assistant.model.chat"].Parent().SpanID())
	assert.Contains(t, spans["assistant.index.build"].Attributes(), attribute.Int("assistant.index.documents", 1))
}

func TestService_FailedAnswerMarksSpan(t *testing.T) {
	rec := recordSpans(t)
	f := newServiceFixture(t, nil)
	f.chat.err = errors.New("upstream exploded")

	_, err := f.svc.Answer(context.Background(), "s", "What services do you offer?")
	require.Error(t, err)

	spans := spanNames(rec)
	assert.Equal(t, codes.Error, spans["assistant.answer"].Status().Code)
	assert.Equal(t, codes.Error, spans["assistant.model.chat"].Status().Code)
}

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-assistant/pkg/llm"
	"github.com/kart-io/sentinel-assistant/pkg/utils/httpclient"
)

func TestCircuitBreaker_OpenOnMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{MaxFailures: 3, Timeout: time.Second, HalfOpenMaxCalls: 1})
	assert.Equal(t, StateClosed, cb.State())

	testErr := errors.New("test error")
	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Execute(func() error { return testErr }))
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 3, cb.Failures())

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
}

func TestCircuitBreaker_HalfOpenTransition(t *testing.T) {
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{MaxFailures: 2, Timeout: 50 * time.Millisecond, HalfOpenMaxCalls: 1})
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errors.New("boom") })
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(80 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{MaxFailures: 1, Timeout: 50 * time.Millisecond, HalfOpenMaxCalls: 1})
	_ = cb.Execute(func() error { return errors.New("boom") })

	time.Sleep(80 * time.Millisecond)
	_ = cb.Execute(func() error { return errors.New("again") })
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_CancelDoesNotCount(t *testing.T) {
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Second, HalfOpenMaxCalls: 1})
	_ = cb.Execute(func() error { return context.Canceled })
	assert.Equal(t, StateClosed, cb.State())
}

func TestRetryWithBackoff(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	var calls int
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return &httpclient.StatusError{StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return &httpclient.StatusError{StatusCode: http.StatusUnauthorized}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrCircuitBreakerOpen, false},
		{context.DeadlineExceeded, false},
		{&httpclient.StatusError{StatusCode: 500}, true},
		{&httpclient.StatusError{StatusCode: 429}, true},
		{&httpclient.StatusError{StatusCode: 400}, false},
		{fmt.Errorf("wrapped: %w", &net.OpError{Op: "dial", Err: errors.New("refused")}), true},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryableError(tt.err), "%v", tt.err)
	}
}

type flakyChat struct{ calls atomic.Int32 }

func (f *flakyChat) Chat(context.Context, []llm.Message) (string, error) {
	f.calls.Add(1)
	return "", &httpclient.StatusError{StatusCode: http.StatusBadGateway}
}

func (f *flakyChat) Name() string { return "flaky" }

func TestResilientChatProvider_DoesNotRetry(t *testing.T) {
	inner := &flakyChat{}
	p := NewResilientChatProvider(inner, &CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute, HalfOpenMaxCalls: 1})

	_, err := p.Chat(context.Background(), nil)
	assert.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())

	_, _ = p.Chat(context.Background(), nil)
	_, err = p.Chat(context.Background(), nil)
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, "flaky", p.Name())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("embed", &CircuitBreakerConfig{
		MaxFailures: 1,
		Timeout:     20 * time.Millisecond,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+">"+to.String())
		},
	})

	_ = cb.Execute(func() error { return errors.New("boom") })
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))

	assert.Equal(t, []string{
		"embed:closed>open",
		"embed:open>half-open",
		"embed:half-open>closed",
	}, transitions)
}

type flakyEmbedder struct {
	calls    atomic.Int32
	failures int32
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	v, err := f.EmbedSingle(ctx, texts[0])
	if err != nil {
		return nil, err
	}
	return [][]float32{v}, nil
}

func (f *flakyEmbedder) EmbedSingle(context.Context, string) ([]float32, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, &httpclient.StatusError{StatusCode: http.StatusServiceUnavailable}
	}
	return []float32{1, 0}, nil
}

func (f *flakyEmbedder) Name() string { return "flaky" }

func TestResilientEmbeddingProvider_Retries(t *testing.T) {
	inner := &flakyEmbedder{failures: 2}
	p := NewResilientEmbeddingProvider(inner,
		&RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2},
		&CircuitBreakerConfig{MaxFailures: 5, Timeout: time.Minute})

	v, err := p.EmbedSingle(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
	assert.Equal(t, int32(3), inner.calls.Load())
	assert.Equal(t, StateClosed, p.CircuitBreaker().State())
	assert.Equal(t, "flaky-embedding", p.CircuitBreaker().Name())
}

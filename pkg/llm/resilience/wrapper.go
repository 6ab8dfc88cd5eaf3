package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kart-io/sentinel-assistant/pkg/llm"
	"github.com/kart-io/sentinel-assistant/pkg/utils/httpclient"
)

var (
	_ llm.EmbeddingProvider = (*ResilientEmbeddingProvider)(nil)
	_ llm.ChatProvider      = (*ResilientChatProvider)(nil)
)

// noRetry 仅调用一次。
var noRetry = &RetryConfig{MaxAttempts: 1}

func call[T any](ctx context.Context, retry *RetryConfig, cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var out T
	err := RetryWithCircuitBreaker(ctx, retry, cb, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

// ResilientEmbeddingProvider 对向量模型调用做重试与熔断，熔断器在 Embed 与 EmbedSingle 间共享。
type ResilientEmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

// NewResilientEmbeddingProvider wraps provider. Nil configs use the defaults.
func NewResilientEmbeddingProvider(provider llm.EmbeddingProvider, retry *RetryConfig, breaker *CircuitBreakerConfig) *ResilientEmbeddingProvider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &ResilientEmbeddingProvider{
		provider: provider,
		retry:    retry,
		cb:       NewCircuitBreaker(provider.Name()+"-embedding", breaker),
	}
}

func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return call(ctx, r.retry, r.cb, func() ([][]float32, error) {
		return r.provider.Embed(ctx, texts)
	})
}

func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return call(ctx, r.retry, r.cb, func() ([]float32, error) {
		return r.provider.EmbedSingle(ctx, text)
	})
}

func (r *ResilientEmbeddingProvider) Name() string { return r.provider.Name() }

// CircuitBreaker exposes the breaker for monitoring.
func (r *ResilientEmbeddingProvider) CircuitBreaker() *CircuitBreaker { return r.cb }

// ResilientChatProvider 对话调用只熔断不重试，失败的回答由用户决定是否重发。
type ResilientChatProvider struct {
	provider llm.ChatProvider
	cb       *CircuitBreaker
}

// NewResilientChatProvider wraps provider with a breaker.
func NewResilientChatProvider(provider llm.ChatProvider, breaker *CircuitBreakerConfig) *ResilientChatProvider {
	return &ResilientChatProvider{
		provider: provider,
		cb:       NewCircuitBreaker(provider.Name()+"-chat", breaker),
	}
}

func (r *ResilientChatProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return call(ctx, noRetry, r.cb, func() (string, error) {
		return r.provider.Chat(ctx, messages)
	})
}

func (r *ResilientChatProvider) Name() string { return r.provider.Name() }

// CircuitBreaker exposes the breaker for monitoring.
func (r *ResilientChatProvider) CircuitBreaker() *CircuitBreaker { return r.cb }

// IsRetryableError reports network failures, 408, 429 and 5xx answers.
// An open breaker and context errors are final.
func IsRetryableError(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrCircuitBreakerOpen),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}

	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusRequestTimeout ||
			se.StatusCode == http.StatusTooManyRequests ||
			se.StatusCode >= http.StatusInternalServerError
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

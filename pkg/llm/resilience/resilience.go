// Package resilience 为模型调用提供重试与熔断。
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// ErrCircuitBreakerOpen is returned while the breaker rejects calls.
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// RetryConfig 指数退避重试配置。MaxAttempts 包含首次调用，<= 1 表示不重试。
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// RetryableErrors 为空时使用 IsRetryableError。
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns 3 attempts starting at 500ms, doubling up to 10s.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		Multiplier:      2.0,
		RetryableErrors: IsRetryableError,
	}
}

// next returns the delay following d.
func (c *RetryConfig) next(d time.Duration) time.Duration {
	n := time.Duration(float64(d) * c.Multiplier)
	if c.MaxDelay > 0 && n > c.MaxDelay {
		return c.MaxDelay
	}
	return n
}

// CircuitBreakerConfig 熔断器配置。
type CircuitBreakerConfig struct {
	// MaxFailures 连续失败达到该值时打开。
	MaxFailures int
	// Timeout 打开后经过该时长进入半开。
	Timeout time.Duration
	// HalfOpenMaxCalls 半开状态允许的并发探测数。
	HalfOpenMaxCalls int
	// OnStateChange 状态变化回调，在持有锁时调用，不应阻塞。
	OnStateChange func(name string, from, to State)
}

// DefaultCircuitBreakerConfig opens after 5 failures and probes after 30s.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreaker 统计连续失败，在上游持续异常时快速失败。
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	// probes 半开状态下已放行的探测数
	probes int
}

// NewCircuitBreaker creates a closed breaker. A nil config uses the defaults.
func NewCircuitBreaker(name string, cfg *CircuitBreakerConfig) *CircuitBreaker {
	if cfg == nil {
		cfg = DefaultCircuitBreakerConfig()
	}
	c := *cfg
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 1
	}
	return &CircuitBreaker{name: name, cfg: c}
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn unless the breaker is open.
// context.Canceled 表示调用方放弃，不计入失败。
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.acquire(); err != nil {
		return err
	}
	err := fn()
	cb.release(err)
	return err
}

func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) <= cb.cfg.Timeout {
			return ErrCircuitBreakerOpen
		}
		cb.setState(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.probes >= cb.cfg.HalfOpenMaxCalls {
			return ErrCircuitBreakerOpen
		}
		cb.probes++
	}
	return nil
}

func (cb *CircuitBreaker) release(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case errors.Is(err, context.Canceled):
		if cb.state == StateHalfOpen && cb.probes > 0 {
			cb.probes--
		}
	case err == nil:
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.setState(StateClosed)
		}
	default:
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.MaxFailures {
			cb.openedAt = time.Now()
			cb.setState(StateOpen)
		}
	}
}

// setState 需持有 mu。
func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.probes = 0

	switch to {
	case StateOpen:
		logger.Warnw("Circuit breaker opened", "breaker", cb.name, "from", from.String(), "failures", cb.failures)
	default:
		logger.Infow("Circuit breaker state changed", "breaker", cb.name, "from", from.String(), "to", to.String())
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}

// State returns the current state without triggering the open to half-open move.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.setState(StateClosed)
}

// RetryWithBackoff 调用 fn，可重试错误按指数退避重试，ctx 取消时立即返回。
func RetryWithBackoff(ctx context.Context, cfg *RetryConfig, fn func() error) error {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	retryable := cfg.RetryableErrors
	if retryable == nil {
		retryable = IsRetryableError
	}
	attempts := max(cfg.MaxAttempts, 1)

	delay := cfg.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !retryable(err) {
			return err
		}
		if attempt >= attempts {
			if attempts > 1 {
				return fmt.Errorf("max retry attempts (%d) reached: %w", attempts, err)
			}
			return err
		}

		logger.Debugw("Retrying model call", "attempt", attempt, "delay", delay.String(), "error", err.Error())
		if err := wait(ctx, delay); err != nil {
			return err
		}
		delay = cfg.next(delay)
	}
}

// RetryWithCircuitBreaker runs every attempt through cb.
func RetryWithCircuitBreaker(ctx context.Context, cfg *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return RetryWithBackoff(ctx, cfg, func() error {
		return cb.Execute(fn)
	})
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

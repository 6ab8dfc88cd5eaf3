// Package llm provides model provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sentinel-assistant/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义模型供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（openai, huggingface, ollama, local）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api-key"`

	// APIKeyEnv 当 APIKey 为空时读取的环境变量。
	APIKeyEnv string `json:"api-key-env" mapstructure:"api-key-env"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Temperature 采样温度，仅对话模型使用。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// Timeout 单次请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 传输层重试次数（5xx 与网络错误）。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// RetryAttempts 调用层指数退避的总尝试次数，1 表示不重试。
	RetryAttempts int `json:"retry-attempts" mapstructure:"retry-attempts"`

	// BreakerFailures 熔断器打开前允许的连续失败次数。
	BreakerFailures int `json:"breaker-failures" mapstructure:"breaker-failures"`

	// BreakerCooldown 熔断器打开后到允许探测的时间。
	BreakerCooldown time.Duration `json:"breaker-cooldown" mapstructure:"breaker-cooldown"`
}

// NewChatOptions 创建默认对话模型配置（Groq OpenAI 兼容接口）。
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:    "openai",
		BaseURL:     "https://api.groq.com/openai/v1",
		APIKeyEnv:   "GROQ_API_KEY",
		Model:       "llama-3.3-70b-versatile",
		Temperature: 0.7,
		Timeout:     60 * time.Second,
		MaxRetries:  0,

		// 对话调用不重试
		RetryAttempts:   1,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// NewEmbeddingOptions 创建默认向量模型配置（HuggingFace feature-extraction）。
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "huggingface",
		BaseURL:    "https://router.huggingface.co/hf-inference/models",
		APIKeyEnv:  "HF_TOKEN",
		Model:      "sentence-transformers/all-MiniLM-L6-v2",
		Timeout:    30 * time.Second,
		MaxRetries: 2,

		RetryAttempts:   3,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"temperature": o.Temperature,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}

// AddFlags adds flags for provider options to the specified FlagSet.
// Callers pass the section name, e.g. AddFlags(fs, "chat").
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Model provider (openai, huggingface, ollama, local).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Provider API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Provider API key. Prefer the environment variable named by api-key-env.")
	fs.StringVar(&o.APIKeyEnv, p+"api-key-env", o.APIKeyEnv, "Environment variable read when api-key is empty.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Per request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Transport retries on 5xx and network errors.")
	fs.IntVar(&o.RetryAttempts, p+"retry-attempts", o.RetryAttempts, "Total attempts with exponential backoff, 1 disables retries.")
	fs.IntVar(&o.BreakerFailures, p+"breaker-failures", o.BreakerFailures, "Consecutive failures before the circuit breaker opens.")
	fs.DurationVar(&o.BreakerCooldown, p+"breaker-cooldown", o.BreakerCooldown, "Time an open circuit breaker waits before probing.")
}

// Validate validates the provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.Provider != "local" {
		if o.BaseURL == "" {
			errs = append(errs, fmt.Errorf("base-url is required for provider %q", o.Provider))
		}
		if o.Model == "" {
			errs = append(errs, fmt.Errorf("model is required for provider %q", o.Provider))
		}
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 2"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max-retries must not be negative"))
	}
	if o.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry-attempts must be at least 1"))
	}
	if o.BreakerFailures < 1 {
		errs = append(errs, fmt.Errorf("breaker-failures must be at least 1"))
	}
	if o.BreakerCooldown <= 0 {
		errs = append(errs, fmt.Errorf("breaker-cooldown must be positive"))
	}
	return errs
}

// Complete fills the API key from the environment. A missing key is not an
// error here; the provider reports it on first use.
func (o *ProviderOptions) Complete() error {
	if o.APIKey == "" && o.APIKeyEnv != "" {
		o.APIKey = os.Getenv(o.APIKeyEnv)
	}
	return nil
}

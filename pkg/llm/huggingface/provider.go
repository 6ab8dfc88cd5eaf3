// Package huggingface 提供 HuggingFace Inference feature-extraction 向量供应商。
package huggingface

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/sentinel-assistant/pkg/llm"
	"github.com/kart-io/sentinel-assistant/pkg/utils/httpclient"
	"github.com/kart-io/sentinel-assistant/pkg/utils/json"
)

// ProviderName 是 HuggingFace 供应商的名称标识符。
const ProviderName = "huggingface"

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

// Config HuggingFace 供应商配置。
type Config struct {
	// BaseURL 模型路由地址，请求路径为 {BaseURL}/{model}/pipeline/feature-extraction。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey HuggingFace API Token。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型 ID。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// WaitForModel 模型冷启动时是否等待加载完成。
	WaitForModel bool `json:"wait_for_model" mapstructure:"wait_for_model"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "https://router.huggingface.co/hf-inference/models",
		EmbedModel:   "sentence-transformers/all-MiniLM-L6-v2",
		Timeout:      30 * time.Second,
		MaxRetries:   2,
		WaitForModel: true,
	}
}

// Provider HuggingFace 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 HuggingFace 供应商。
func NewProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := configMap["embed_model"].(string); ok && v != "" {
		cfg.EmbedModel = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v >= 0 {
		cfg.MaxRetries = v
	}
	if v, ok := configMap["wait_for_model"].(bool); ok {
		cfg.WaitForModel = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("huggingface: api_key 是必需的")
	}

	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 HuggingFace 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

type embeddingRequest struct {
	Inputs  []string          `json:"inputs"`
	Options *embeddingOptions `json:"options,omitempty"`
}

type embeddingOptions struct {
	WaitForModel bool `json:"wait_for_model,omitempty"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{Inputs: texts}
	if p.config.WaitForModel {
		reqBody.Options = &embeddingOptions{WaitForModel: true}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/%s/pipeline/feature-extraction", strings.TrimRight(p.config.BaseURL, "/"), p.config.EmbedModel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	data, err := p.client.DoBytes(req)
	if err != nil {
		return nil, err
	}

	embeddings, err := decodeFeatures(data, len(texts))
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("huggingface: 期望 %d 个向量，实际返回 %d 个", len(texts), len(embeddings))
	}
	return embeddings, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// decodeFeatures 解析 feature-extraction 输出。
// 句向量模型返回 [batch][dim]；未池化的模型返回 [batch][tokens][dim]，此时做平均池化。
// 单条输入时部分部署直接返回 [dim]。
func decodeFeatures(data []byte, n int) ([][]float32, error) {
	var pooled [][]float32
	if err := json.Unmarshal(data, &pooled); err == nil {
		return pooled, nil
	}

	var tokens [][][]float32
	if err := json.Unmarshal(data, &tokens); err == nil {
		out := make([][]float32, len(tokens))
		for i, t := range tokens {
			out[i] = MeanPool(t)
		}
		return out, nil
	}

	var flat []float32
	if err := json.Unmarshal(data, &flat); err == nil && n == 1 {
		return [][]float32{flat}, nil
	}

	return nil, fmt.Errorf("huggingface: 无法解析 feature-extraction 响应")
}

// MeanPool 对 token 级向量逐维取平均。维度不一致的 token 被跳过。
func MeanPool(tokens [][]float32) []float32 {
	if len(tokens) == 0 {
		return nil
	}
	dim := len(tokens[0])
	out := make([]float32, dim)
	count := 0
	for _, tok := range tokens {
		if len(tok) != dim {
			continue
		}
		for j, v := range tok {
			out[j] += v
		}
		count++
	}
	for j := range out {
		out[j] /= float32(count)
	}
	return out
}

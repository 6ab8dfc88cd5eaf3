// Package local 提供无需网络的哈希词袋向量供应商，用于离线开发与测试。
package local

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/kart-io/sentinel-assistant/pkg/llm"
)

// ProviderName 是本地供应商的名称标识符。
const ProviderName = "local"

// DefaultDimension 默认向量维度。
const DefaultDimension = 384

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

// Provider 将文本切词后按 FNV-1a 哈希映射到固定维度，并做 L2 归一化。
type Provider struct {
	dimension int
	stopwords map[string]struct{}
}

// NewProvider 从配置 map 创建本地供应商，支持 "dimension"。
func NewProvider(configMap map[string]any) (llm.EmbeddingProvider, error) {
	dim := DefaultDimension
	if v, ok := configMap["dimension"].(int); ok && v > 0 {
		dim = v
	}
	return New(dim), nil
}

// New creates a provider with the given dimension.
func New(dimension int) *Provider {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Provider{dimension: dimension, stopwords: defaultStopwords()}
}

// Name 返回供应商名称。
func (p *Provider) Name() string { return ProviderName }

// Dimension 返回向量维度。
func (p *Provider) Dimension() int { return p.dimension }

// Embed 批量生成向量。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.vector(text)
	}
	return out, nil
}

// EmbedSingle 生成单个文本的向量。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.vector(text), nil
}

// vector 没有可用词元时退化为单位基向量，保证结果非零。
func (p *Provider) vector(text string) []float32 {
	vec := make([]float64, p.dimension)
	total := 0
	for _, tok := range p.tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		idx := int(sum % uint32(p.dimension))
		// 高位决定符号，降低哈希碰撞的偏差
		if sum&0x80000000 != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
		total++
	}

	out := make([]float32, p.dimension)
	if total == 0 {
		out[0] = 1
		return out
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		out[0] = 1
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func (p *Provider) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := p.stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "do", "does", "for",
		"from", "how", "i", "in", "is", "it", "of", "on", "or", "that", "the",
		"this", "to", "was", "what", "when", "where", "which", "who", "why",
		"with", "you", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

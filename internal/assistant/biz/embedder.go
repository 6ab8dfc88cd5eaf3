package biz

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-assistant/internal/assistant/errno"
	"github.com/kart-io/sentinel-assistant/internal/assistant/metrics"
	"github.com/kart-io/sentinel-assistant/pkg/llm"
)

// EmbedderFactory 构建底层向量模型，仅在首次计算向量时调用。
type EmbedderFactory func(ctx context.Context) (llm.EmbeddingProvider, error)

// TextEmbedder 将文本转换为单位向量。
type TextEmbedder interface {
	Embed(ctx context.Context, text string) (Embedding, error)
}

var _ TextEmbedder = (*Embedder)(nil)

// Embedder 延迟构建向量模型并在整个进程内复用。
// 模型输出在此统一校验：扁平、非空、有限、维度一致，并做 L2 归一化。
type Embedder struct {
	factory EmbedderFactory
	metrics *metrics.AssistantMetrics

	mu       sync.Mutex
	provider llm.EmbeddingProvider

	dim atomic.Int64
}

// NewEmbedder 创建 Embedder，m 为 nil 时使用全局指标。
func NewEmbedder(factory EmbedderFactory, m *metrics.AssistantMetrics) *Embedder {
	if m == nil {
		m = metrics.Default()
	}
	return &Embedder{factory: factory, metrics: m}
}

// StaticEmbedderFactory 返回已构建好的供应商。
func StaticEmbedderFactory(p llm.EmbeddingProvider) EmbedderFactory {
	return func(context.Context) (llm.EmbeddingProvider, error) {
		return p, nil
	}
}

// load 返回共享的模型实例。构建失败不缓存，下次调用重试。
func (e *Embedder) load(ctx context.Context) (llm.EmbeddingProvider, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.provider != nil {
		return e.provider, nil
	}

	p, err := e.factory(ctx)
	if err != nil {
		logger.Errorw("Failed to load embedding model", "error", err.Error())
		return nil, errno.ErrEmbedding.WithMessage("Failed to load embedding model").WithCause(err)
	}
	if p == nil {
		return nil, errno.ErrEmbedding.WithMessage("Embedding model factory returned nil")
	}

	e.provider = p
	logger.Infow("Embedding model loaded", "provider", p.Name())
	return p, nil
}

// Loaded 报告模型是否已构建。
func (e *Embedder) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.provider != nil
}

// Dimension 返回已观察到的向量维度，尚未计算过向量时为 0。
func (e *Embedder) Dimension() int {
	return int(e.dim.Load())
}

// Embed 计算 text 的单位向量。
func (e *Embedder) Embed(ctx context.Context, text string) (Embedding, error) {
	p, err := e.load(ctx)
	if err != nil {
		e.metrics.RecordEmbedding(err)
		return nil, err
	}

	raw, err := p.EmbedSingle(ctx, text)
	if err != nil {
		e.metrics.RecordEmbedding(err)
		return nil, errno.ErrEmbedding.WithCause(err)
	}

	vec, err := e.normalize(raw)
	e.metrics.RecordEmbedding(err)
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func (e *Embedder) normalize(raw []float32) (Embedding, error) {
	if len(raw) == 0 {
		return nil, errno.ErrEmbedding.WithMessage("Embedding model returned an empty vector")
	}

	var sum float64
	for i, v := range raw {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errno.ErrEmbedding.
				WithMessagef("Embedding model returned a non-numeric value at position %d", i)
		}
		sum += f * f
	}

	n := int64(len(raw))
	if !e.dim.CompareAndSwap(0, n) {
		if want := e.dim.Load(); want != n {
			return nil, errno.ErrEmbedding.WithCause(
				fmt.Errorf("embedding dimension changed: got %d, want %d", n, want))
		}
	}

	out := make(Embedding, len(raw))
	norm := math.Sqrt(sum)
	if norm == 0 {
		copy(out, raw)
		return out, nil
	}
	for i, v := range raw {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}

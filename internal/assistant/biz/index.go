package biz

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/kart-io/sentinel-assistant/internal/assistant/errno"
	"github.com/kart-io/sentinel-assistant/internal/assistant/metrics"
	"github.com/kart-io/sentinel-assistant/pkg/infra/pool"
	"github.com/kart-io/sentinel-assistant/pkg/infra/tracing"
)

// Corpus 提供知识库文档。
type Corpus interface {
	Load(ctx context.Context) ([]Document, error)
	Invalidate()
}

// Snapshot 构建完成的索引，文档与向量按位置对齐，构建后只读。
type Snapshot struct {
	Documents  []Document
	Embeddings []Embedding
	Dimension  int
	BuiltAt    time.Time
}

// Len 返回文档数。
func (s *Snapshot) Len() int {
	return len(s.Documents)
}

// Search 返回与 query 最相似的文档。索引为空时 ok 为 false。
func (s *Snapshot) Search(query Embedding) (doc Document, score float64, ok bool) {
	i, score := BestMatch(query, s.Embeddings)
	if i < 0 {
		return Document{}, 0, false
	}
	return s.Documents[i], score, true
}

// IndexConfig 索引配置。
type IndexConfig struct {
	// Workers 并发计算向量的协程数，<=1 时顺序计算。
	Workers int
	// Pool 并发构建使用的协程池，为 nil 时顺序计算。
	Pool *pool.Pool
}

// Index 语料索引，首次使用时构建并在之后复用。
// 并发的首次调用共享同一次构建，失败不缓存。
type Index struct {
	corpus   Corpus
	embedder TextEmbedder
	config   IndexConfig
	metrics  *metrics.AssistantMetrics

	group      singleflight.Group
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
}

// NewIndex 创建索引。
func NewIndex(corpus Corpus, embedder TextEmbedder, cfg IndexConfig, m *metrics.AssistantMetrics) *Index {
	if m == nil {
		m = metrics.Default()
	}
	return &Index{corpus: corpus, embedder: embedder, config: cfg, metrics: m}
}

const buildKey = "index"

// Get 返回当前索引，尚未构建时构建。
// 构建不受单个调用方取消的影响，调用方取消时仅停止等待。
func (ix *Index) Get(ctx context.Context) (*Snapshot, error) {
	if s := ix.current.Load(); s != nil {
		return s, nil
	}

	ch := ix.group.DoChan(buildKey, func() (any, error) {
		if s := ix.current.Load(); s != nil {
			return s, nil
		}

		gen := ix.generation.Load()
		s, err := ix.build(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		// 构建期间被失效的结果只返回给本次等待者
		if ix.generation.Load() == gen {
			ix.current.Store(s)
		}
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (ix *Index) build(ctx context.Context) (*Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "assistant.index.build")
	defer span.End()

	s, err := ix.buildSnapshot(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("assistant.index.documents", s.Len()),
		attribute.Int("assistant.index.dimension", s.Dimension),
	)
	return s, nil
}

func (ix *Index) buildSnapshot(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	docs, err := ix.corpus.Load(ctx)
	if err != nil {
		ix.metrics.RecordIndexBuild(0, 0, err)
		return nil, err
	}

	embeddings := make([]Embedding, len(docs))
	embedOne := func(ctx context.Context, i int) error {
		vec, err := ix.embedder.Embed(ctx, docs[i].Text)
		if err != nil {
			return err
		}
		embeddings[i] = vec
		return nil
	}

	if ix.config.Workers > 1 && ix.config.Pool != nil && len(docs) > 1 {
		err = ix.config.Pool.ForEach(ctx, len(docs), embedOne)
	} else {
		for i := range docs {
			if err = embedOne(ctx, i); err != nil {
				break
			}
		}
	}
	if err != nil {
		ix.metrics.RecordIndexBuild(0, 0, err)
		logger.Errorw("Failed to build knowledge index", "documents", len(docs), "error", err.Error())
		return nil, err
	}

	dim := 0
	for i, e := range embeddings {
		if i == 0 {
			dim = len(e)
			continue
		}
		if len(e) != dim {
			err := errno.ErrEmbedding.WithCause(
				fmt.Errorf("document %q has dimension %d, want %d", docs[i].Name, len(e), dim))
			ix.metrics.RecordIndexBuild(0, 0, err)
			return nil, err
		}
	}

	s := &Snapshot{Documents: docs, Embeddings: embeddings, Dimension: dim, BuiltAt: time.Now()}
	elapsed := time.Since(start)
	ix.metrics.RecordIndexBuild(len(docs), elapsed, nil)

	if len(docs) == 0 {
		logger.Warnw("Knowledge index is empty, every question will be refused")
	}
	logger.Infow("Knowledge index built",
		"documents", len(docs),
		"dimension", dim,
		"workers", ix.config.Workers,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return s, nil
}

// Snapshot 返回当前索引，不触发构建。
func (ix *Index) Snapshot() *Snapshot {
	return ix.current.Load()
}

// Ready 报告索引是否已构建。
func (ix *Index) Ready() bool {
	return ix.current.Load() != nil
}

// Warmup 立即构建索引。
func (ix *Index) Warmup(ctx context.Context) error {
	_, err := ix.Get(ctx)
	return err
}

// Invalidate 丢弃当前索引与文档缓存，下次 Get 时重新构建。
func (ix *Index) Invalidate() {
	ix.generation.Add(1)
	ix.group.Forget(buildKey)
	ix.current.Store(nil)
	ix.corpus.Invalidate()
	logger.Info("Knowledge index invalidated")
}

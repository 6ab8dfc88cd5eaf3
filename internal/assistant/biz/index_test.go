package biz

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-assistant/internal/assistant/errno"
	"github.com/kart-io/sentinel-assistant/internal/assistant/metrics"
	"github.com/kart-io/sentinel-assistant/pkg/infra/pool"
)

// countingCorpus 统计加载次数。
type countingCorpus struct {
	docs  []Document
	err   error
	loads atomic.Int32
}

func (c *countingCorpus) Load(context.Context) ([]Document, error) {
	c.loads.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.docs, nil
}

func (c *countingCorpus) Invalidate() {}

func docs(texts ...string) []Document {
	out := make([]Document, len(texts))
	for i, t := range texts {
		out[i] = Document{Position: i, Name: fmt.Sprintf("doc-%d.txt", i), Text: t}
	}
	return out
}

func TestIndex_LazyBuildOnce(t *testing.T) {
	corpus := &countingCorpus{docs: docs("our company provides it consulting services", "the capital city")}
	provider := &conceptEmbedder{}
	ix := NewIndex(corpus, newTestEmbedder(provider), IndexConfig{Workers: 1}, metrics.New())

	assert.False(t, ix.Ready())
	assert.Nil(t, ix.Snapshot())
	assert.Zero(t, corpus.loads.Load(), "index is built on first use")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := ix.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 2, s.Len())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), corpus.loads.Load())
	assert.Equal(t, int32(2), provider.calls.Load())
	assert.True(t, ix.Ready())

	s := ix.Snapshot()
	require.NotNil(t, s)
	assert.Equal(t, 3, s.Dimension)
	for i, d := range s.Documents {
		assert.Equal(t, i, d.Position)
		assert.Len(t, s.Embeddings[i], 3)
	}
}

func TestIndex_ParallelBuildKeepsAlignment(t *testing.T) {
	vectors := map[string][]float32{}
	texts := make([]string, 20)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
		v := make([]float32, 20)
		v[i] = 1
		vectors[texts[i]] = v
	}

	p, err := pool.NewPool("index-test", &pool.Config{Capacity: 4, ExpiryDuration: pool.DefaultPoolConfig().ExpiryDuration})
	require.NoError(t, err)
	defer p.Release()

	ix := NewIndex(&countingCorpus{docs: docs(texts...)}, newTestEmbedder(&rawEmbedder{vectors: vectors}),
		IndexConfig{Workers: 4, Pool: p}, metrics.New())

	s, err := ix.Get(context.Background())
	require.NoError(t, err)
	for i := range texts {
		doc, score, ok := s.Search(vectors[texts[i]])
		require.True(t, ok)
		assert.Equal(t, i, doc.Position)
		assert.InDelta(t, 1, score, 1e-6)
	}
}

func TestIndex_FailureIsNotCached(t *testing.T) {
	corpus := &countingCorpus{err: errno.ErrConfiguration}
	ix := NewIndex(corpus, newTestEmbedder(&conceptEmbedder{}), IndexConfig{}, metrics.New())

	_, err := ix.Get(context.Background())
	assert.ErrorIs(t, err, errno.ErrConfiguration)
	assert.False(t, ix.Ready())

	corpus.err = nil
	corpus.docs = docs("services")
	_, err = ix.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), corpus.loads.Load())
}

func TestIndex_Invalidate(t *testing.T) {
	corpus := &countingCorpus{docs: docs("services")}
	ix := NewIndex(corpus, newTestEmbedder(&conceptEmbedder{}), IndexConfig{}, metrics.New())

	require.NoError(t, ix.Warmup(context.Background()))
	_, err := ix.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), corpus.loads.Load())

	ix.Invalidate()
	assert.False(t, ix.Ready())

	corpus.docs = docs("services", "support")
	s, err := ix.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, int32(2), corpus.loads.Load())
}

func TestIndex_EmptyCorpus(t *testing.T) {
	ix := NewIndex(&countingCorpus{}, newTestEmbedder(&conceptEmbedder{}), IndexConfig{}, metrics.New())
	s, err := ix.Get(context.Background())
	require.NoError(t, err)

	_, _, ok := s.Search(Embedding{1, 0, 0})
	assert.False(t, ok)
}

func TestIndex_CallerCancel(t *testing.T) {
	ix := NewIndex(&countingCorpus{docs: docs("services")}, newTestEmbedder(&conceptEmbedder{}), IndexConfig{}, metrics.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ix.Get(ctx)
	// 已取消的调用方可能在构建完成前或后返回
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	_, err = ix.Get(context.Background())
	assert.NoError(t, err)
}

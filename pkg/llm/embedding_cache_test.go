package llm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider 统计底层调用次数。
type countingProvider struct {
	mockProvider
	calls atomic.Int32
}

func (p *countingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	p.calls.Add(1)
	return p.mockProvider.EmbedSingle(ctx, text)
}

func (p *countingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls.Add(int32(len(texts)))
	return p.mockProvider.Embed(ctx, texts)
}

func setupCache(t *testing.T) (*CachedEmbeddingProvider, *countingProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingProvider{mockProvider: mockProvider{name: "mock"}}
	return NewCachedEmbeddingProvider(inner, client, &EmbeddingCacheConfig{TTL: time.Hour, KeyPrefix: "test:"}), inner, mr
}

func TestCachedEmbeddingProvider_EmbedSingle(t *testing.T) {
	cached, inner, mr := setupCache(t)
	ctx := context.Background()

	first, err := cached.EmbedSingle(ctx, "hello")
	require.NoError(t, err)
	second, err := cached.EmbedSingle(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Len(t, mr.Keys(), 1)
	assert.Equal(t, "mock-cached", cached.Name())
}

func TestCachedEmbeddingProvider_EmbedOnlyMisses(t *testing.T) {
	cached, inner, _ := setupCache(t)
	ctx := context.Background()

	_, err := cached.EmbedSingle(ctx, "a")
	require.NoError(t, err)

	out, err := cached.Embed(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, v := range out {
		assert.Len(t, v, 3)
	}
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestCachedEmbeddingProvider_CorruptEntryIsDropped(t *testing.T) {
	cached, inner, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(cached.cacheKey("x"), "not-json"))
	v, err := cached.EmbedSingle(ctx, "x")
	require.NoError(t, err)
	assert.Len(t, v, 3)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedEmbeddingProvider_RedisDown(t *testing.T) {
	cached, inner, mr := setupCache(t)
	mr.Close()

	v, err := cached.EmbedSingle(context.Background(), "y")
	require.NoError(t, err)
	assert.Len(t, v, 3)
	assert.Equal(t, int32(1), inner.calls.Load())
}

// dimProvider 返回固定维度的向量。
type dimProvider struct {
	name string
	dim  int
}

func (p *dimProvider) Name() string { return p.name }

func (p *dimProvider) EmbedSingle(context.Context, string) ([]float32, error) {
	return make([]float32, p.dim), nil
}

func (p *dimProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, p.dim)
	}
	return out, nil
}

func TestCachedEmbeddingProvider_ModelSwitch(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	small := NewCachedEmbeddingProvider(&dimProvider{name: "ollama", dim: 384}, client,
		&EmbeddingCacheConfig{TTL: time.Hour, KeyPrefix: "emb:", Model: "all-minilm"})
	large := NewCachedEmbeddingProvider(&dimProvider{name: "ollama", dim: 768}, client,
		&EmbeddingCacheConfig{TTL: time.Hour, KeyPrefix: "emb:", Model: "nomic-embed-text"})

	v, err := small.EmbedSingle(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, v, 384)

	v, err = large.EmbedSingle(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, v, 768)

	batch, err := large.Embed(ctx, []string{"hello", "world"})
	require.NoError(t, err)
	for _, v := range batch {
		assert.Len(t, v, 768)
	}
	assert.Len(t, mr.Keys(), 3)
}

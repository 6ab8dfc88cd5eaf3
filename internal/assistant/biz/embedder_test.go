package biz

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-assistant/internal/assistant/errno"
	"github.com/kart-io/sentinel-assistant/internal/assistant/metrics"
	"github.com/kart-io/sentinel-assistant/pkg/llm"
)

func TestEmbedder_ConstructsModelOnce(t *testing.T) {
	var constructed atomic.Int32
	factory := func(context.Context) (llm.EmbeddingProvider, error) {
		constructed.Add(1)
		time.Sleep(20 * time.Millisecond)
		return &conceptEmbedder{}, nil
	}
	e := NewEmbedder(factory, metrics.New())
	assert.False(t, e.Loaded())

	const n = 32
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := e.Embed(context.Background(), "our company services")
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), constructed.Load())
	assert.True(t, e.Loaded())
}

func TestEmbedder_FailedLoadIsRetried(t *testing.T) {
	var constructed atomic.Int32
	factory := func(context.Context) (llm.EmbeddingProvider, error) {
		if constructed.Add(1) == 1 {
			return nil, errors.New("model download failed")
		}
		return &conceptEmbedder{}, nil
	}
	e := NewEmbedder(factory, metrics.New())

	_, err := e.Embed(context.Background(), "services")
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrEmbedding)
	assert.False(t, e.Loaded())

	_, err = e.Embed(context.Background(), "services")
	require.NoError(t, err)
	assert.Equal(t, int32(2), constructed.Load())
}

func TestEmbedder_Normalizes(t *testing.T) {
	e := newTestEmbedder(&rawEmbedder{vectors: map[string][]float32{"x": {3, 4}}})

	v, err := e.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.Equal(t, 2, e.Dimension())
}

func TestEmbedder_RejectsInvalidOutput(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name string
		vec  []float32
	}{
		{"empty", nil},
		{"nan", []float32{1, nan}},
		{"inf", []float32{inf, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEmbedder(&rawEmbedder{vectors: map[string][]float32{"x": tt.vec}})
			_, err := e.Embed(context.Background(), "x")
			assert.ErrorIs(t, err, errno.ErrEmbedding)
		})
	}
}

func TestEmbedder_RejectsDimensionChange(t *testing.T) {
	e := newTestEmbedder(&rawEmbedder{vectors: map[string][]float32{
		"a": {1, 0, 0},
		"b": {1, 0},
	}})

	_, err := e.Embed(context.Background(), "a")
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "b")
	assert.ErrorIs(t, err, errno.ErrEmbedding)
	assert.Contains(t, err.Error(), "dimension")
}

func TestEmbedder_ZeroVectorStaysZero(t *testing.T) {
	e := newTestEmbedder(&rawEmbedder{vectors: map[string][]float32{"x": {0, 0}}})
	v, err := e.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, Embedding{0, 0}, v)
}

package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 4, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, "test", p.Name())
	assert.Equal(t, 4, p.Cap())
}

func TestPoolSubmit(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 10, ExpiryDuration: 5 * time.Second})
	require.NoError(t, err)
	defer p.Release()

	var counter atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		if err := p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}); err != nil {
			wg.Done()
			t.Errorf("提交任务失败: %v", err)
		}
	}
	wg.Wait()

	assert.Equal(t, int32(100), counter.Load())
	assert.Equal(t, int64(100), p.Stats().SubmittedTasks)
}

func TestPoolSubmitAfterRelease(t *testing.T) {
	p, err := NewPool("test", nil)
	require.NoError(t, err)
	p.Release()
	p.Release()

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}

func TestPoolSubmitWithCanceledContext(t *testing.T) {
	p, err := NewPool("test", nil)
	require.NoError(t, err)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.SubmitWithContext(ctx, func() {}), context.Canceled)
}

func TestForEach(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 3, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer p.Release()

	out := make([]int, 20)
	err = p.ForEach(context.Background(), len(out), func(_ context.Context, i int) error {
		out[i] = i * i
		return nil
	})
	require.NoError(t, err)
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
}

func TestForEach_FirstError(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 2, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer p.Release()

	boom := errors.New("boom")
	err = p.ForEach(context.Background(), 10, func(_ context.Context, i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestForEach_PanicDoesNotHang(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 2, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer p.Release()

	done := make(chan struct{})
	go func() {
		_ = p.ForEach(context.Background(), 3, func(_ context.Context, i int) error {
			if i == 1 {
				panic("worker")
			}
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ForEach did not return after a panic")
	}
	assert.Eventually(t, func() bool { return p.Stats().PanicRecovered == 1 }, time.Second, 10*time.Millisecond)
}

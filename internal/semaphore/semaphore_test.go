package semaphore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphoreLimit(t *testing.T) {
	s := New(2)
	var cur, max int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !assert.NoError(t, s.Acquire(context.Background())) {
				return
			}
			defer s.Release()
			n := atomic.AddInt32(&cur, 1)
			for {
				m := atomic.LoadInt32(&max)
				if n <= m || atomic.CompareAndSwapInt32(&max, m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&cur, -1)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, max, int32(2))
	assert.Equal(t, 0, s.Len())
}

func TestSemaphoreTryAcquire(t *testing.T) {
	s := New(1)
	assert.True(t, s.TryAcquire())
	assert.False(t, s.TryAcquire())
	assert.Equal(t, 1, s.Len())
	s.Release()
	assert.True(t, s.TryAcquire())
}

func TestSemaphoreCanceled(t *testing.T) {
	s := New(1)
	require.NoError(t, s.Acquire(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Equal(t, context.DeadlineExceeded, s.Acquire(ctx))
}

func TestSemaphoreUnlimited(t *testing.T) {
	s := New(0)
	for i := 0; i < 100; i++ {
		assert.NoError(t, s.Acquire(context.Background()))
	}
	assert.True(t, s.TryAcquire())
	s.Release()
	assert.Equal(t, 0, s.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, s.Acquire(ctx))
}

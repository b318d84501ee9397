package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	pool := NewPool(3)
	var running, peak, done atomic.Int32

	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(context.Background(), func() {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			done.Add(1)
		}))
	}
	pool.Wait()

	assert.Equal(t, int32(20), done.Load())
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 3, pool.Size())
}

func TestPool_SubmitCancelled(t *testing.T) {
	pool := NewPool(1)
	release := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func() { <-release }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := pool.Submit(ctx, func() { ran = true })
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	pool.Wait()
	assert.False(t, ran)
}

func TestNewPool_MinimumSize(t *testing.T) {
	assert.Equal(t, 1, NewPool(0).Size())
}

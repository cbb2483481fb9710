package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Run_AllSucceed(t *testing.T) {
	var count int64
	jobs := make([]Job, 20)
	for i := range jobs {
		jobs[i] = func(ctx context.Context) error {
			atomic.AddInt64(&count, 1)
			return nil
		}
	}

	err := Run(context.Background(), 4, jobs)
	require.NoError(t, err)
	assert.EqualValues(t, 20, count)
}

func TestPool_Run_ReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	jobs := []Job{
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return boom },
		func(ctx context.Context) error { return nil },
	}

	err := Run(context.Background(), 2, jobs)
	require.Error(t, err)
	assert.Equal(t, boom, err)
}

func TestPool_Run_BoundsConcurrency(t *testing.T) {
	var inFlight, maxSeen int64
	jobs := make([]Job, 10)
	for i := range jobs {
		jobs[i] = func(ctx context.Context) error {
			cur := atomic.AddInt64(&inFlight, 1)
			for {
				seen := atomic.LoadInt64(&maxSeen)
				if cur <= seen || atomic.CompareAndSwapInt64(&maxSeen, seen, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			return nil
		}
	}

	require.NoError(t, Run(context.Background(), 3, jobs))
	assert.LessOrEqual(t, maxSeen, int64(3))
}

func TestPool_Run_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{func(ctx context.Context) error { return nil }}
	err := Run(ctx, 1, jobs)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

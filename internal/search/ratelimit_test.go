package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

func TestNewRateLimiter(t *testing.T) {
	t.Run("allows the burst then denies", func(t *testing.T) {
		rl := NewRateLimiter(1, 3)
		for i := 0; i < 3; i++ {
			assert.True(t, rl.limiter.Allow(), "request %d should be within burst", i+1)
		}
		assert.False(t, rl.limiter.Allow())
	})

	t.Run("non-positive rate is unlimited", func(t *testing.T) {
		rl := NewRateLimiter(0, 0)
		for i := 0; i < 100; i++ {
			require.True(t, rl.limiter.Allow())
		}
	})
}

func TestRateLimiter_Acquire(t *testing.T) {
	t.Run("immediate token", func(t *testing.T) {
		rl := NewRateLimiter(10, 1)
		assert.NoError(t, rl.Acquire(context.Background(), time.Second))
	})

	t.Run("waits within budget", func(t *testing.T) {
		rl := NewRateLimiter(20, 1)
		require.True(t, rl.limiter.Allow())

		start := time.Now()
		require.NoError(t, rl.Acquire(context.Background(), time.Second))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("over budget returns rate limit error", func(t *testing.T) {
		rl := NewRateLimiter(0.1, 1)
		require.True(t, rl.limiter.Allow())

		err := rl.Acquire(context.Background(), 10*time.Millisecond)
		assert.ErrorIs(t, err, domain.ErrRateLimited)

		var rle *domain.RateLimitError
		require.ErrorAs(t, err, &rle)
		assert.Greater(t, rle.RetryAfter, 10*time.Millisecond)
	})

	t.Run("cancelled context", func(t *testing.T) {
		rl := NewRateLimiter(1, 1)
		require.True(t, rl.limiter.Allow())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := rl.Acquire(ctx, 5*time.Second)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestRateLimiter_AcquireConcurrent(t *testing.T) {
	rl := NewRateLimiter(100, 5)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- rl.Acquire(context.Background(), time.Second)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Less(t, rl.limiter.Tokens(), float64(5))
}

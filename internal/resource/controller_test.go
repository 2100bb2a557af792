package resource

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(50))
	require.NoError(t, c.AcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	assert.ErrorIs(t, c.AcquireMemory(20), ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	require.NoError(t, c.AcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(1000))
	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_NilSafe(t *testing.T) {
	var c *Controller

	assert.NoError(t, c.AcquireMemory(10))
	c.ReleaseMemory(10)
	assert.Zero(t, c.MemoryUsage())
	assert.Zero(t, c.MemoryLimit())
	assert.NoError(t, c.AcquireIO(context.Background(), 1<<20))
}

func TestController_IOLargerThanBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// Fits within the initial burst plus a fraction of a second of refill.
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20+1024))
}

func TestController_IOCanceled(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, c.AcquireIO(ctx, 100))
}

func TestRateLimitedWriterAndReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	var buf bytes.Buffer
	w := NewRateLimitedWriter(context.Background(), &buf, c)
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	r := NewRateLimitedReader(context.Background(), &buf, c)
	out := make([]byte, 16)
	n, err = r.Read(out)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out[:n]))
}

func TestForEach(t *testing.T) {
	var sum atomic.Int64
	err := ForEach(context.Background(), 4, 100, func(_ context.Context, i int) error {
		sum.Add(int64(i))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4950), sum.Load())
}

func TestForEach_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach(context.Background(), 1, 10, func(_ context.Context, i int) error {
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestForEach_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int64
	err := ForEach(ctx, 2, 10, func(context.Context, int) error {
		calls.Add(1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestThreads(t *testing.T) {
	assert.Equal(t, 3, Threads(3))
	assert.Positive(t, Threads(0))
}

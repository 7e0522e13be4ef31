package resource

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Slots(t *testing.T) {
	c := NewController(Config{MaxTransfers: 2})

	require.NoError(t, c.Acquire(context.Background()))
	require.NoError(t, c.Acquire(context.Background()))

	assert.False(t, c.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Acquire(ctx), context.DeadlineExceeded)

	c.Release()
	assert.True(t, c.TryAcquire())
}

func TestController_Defaults(t *testing.T) {
	c := NewController(Config{})
	assert.Equal(t, int64(DefaultMaxTransfers), c.Config().MaxTransfers)

	for range DefaultMaxTransfers {
		require.True(t, c.TryAcquire())
	}
	assert.False(t, c.TryAcquire())
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	require.NoError(t, c.Acquire(context.Background()))
	assert.True(t, c.TryAcquire())
	c.Release()
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20))
	assert.Zero(t, c.Transferred())
}

func TestController_IOLargerThanBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// Twice the burst: the first half is free, the second waits about a second.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.AcquireIO(ctx, 2<<20))
	assert.Equal(t, int64(2<<20), c.Transferred())
}

func TestController_IOCanceled(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 10})

	require.NoError(t, c.AcquireIO(context.Background(), 10))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, c.AcquireIO(ctx, 10))
}

func TestRateLimitedIO(t *testing.T) {
	ctx := context.Background()
	c := NewController(Config{})

	var dst bytes.Buffer
	w := NewRateLimitedWriter(ctx, &dst, c)

	n, err := io.Copy(w, NewRateLimitedReader(ctx, strings.NewReader("payload"), c))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, "payload", dst.String())
	assert.Equal(t, int64(14), c.Transferred())

	canceled, cancel := context.WithCancel(ctx)
	cancel()

	_, err = NewRateLimitedReader(canceled, strings.NewReader("x"), c).Read(make([]byte, 1))
	require.ErrorIs(t, err, context.Canceled)
}

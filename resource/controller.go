// Package resource bounds the concurrency and throughput of blob transfers.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxTransfers is the maximum number of concurrent blob transfers.
	// If 0, defaults to 4.
	MaxTransfers int64 `yaml:"max_transfers"`

	// IOLimitBytesPerSec is the maximum transfer throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64 `yaml:"io_limit_bytes_per_sec"`
}

// DefaultMaxTransfers is used when Config.MaxTransfers is not positive.
const DefaultMaxTransfers = 4

// Controller hands out transfer slots and meters bytes.
// A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	slots *semaphore.Weighted

	ioLimiter   *rate.Limiter
	transferred atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxTransfers <= 0 {
		cfg.MaxTransfers = DefaultMaxTransfers
	}

	c := &Controller{
		cfg:   cfg,
		slots: semaphore.NewWeighted(cfg.MaxTransfers),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Acquire reserves a transfer slot, blocking until one is free or ctx is
// canceled.
func (c *Controller) Acquire(ctx context.Context) error {
	if c == nil {
		return ctx.Err()
	}

	return c.slots.Acquire(ctx, 1)
}

// TryAcquire reserves a transfer slot without blocking.
func (c *Controller) TryAcquire() bool {
	if c == nil {
		return true
	}

	return c.slots.TryAcquire(1)
}

// Release returns a transfer slot.
func (c *Controller) Release() {
	if c == nil {
		return
	}

	c.slots.Release(1)
}

// AcquireIO waits until the IO limit allows n bytes. Requests larger than
// the limiter burst are split.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || n <= 0 {
		return nil
	}

	if c.ioLimiter != nil {
		burst := c.ioLimiter.Burst()
		for left := n; left > 0; left -= burst {
			if err := c.ioLimiter.WaitN(ctx, min(left, burst)); err != nil {
				return err
			}
		}
	}

	c.transferred.Add(int64(n))

	return nil
}

// Transferred returns the number of bytes metered so far.
func (c *Controller) Transferred() int64 {
	if c == nil {
		return 0
	}

	return c.transferred.Load()
}

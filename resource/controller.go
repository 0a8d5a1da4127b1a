// Package resource budgets the memory, worker slots and IO bandwidth of
// batched clustering runs and result persistence.
package resource

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the budget for concurrently running batches.
	// If 0, memory is only tracked.
	MemoryLimitBytes int64

	// MaxWorkers is the number of batches clustered in parallel.
	// If 0, defaults to GOMAXPROCS.
	MaxWorkers int

	// IOLimitBytesPerSec throttles result persistence. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller hands out the budgets of one Config. A nil *Controller grants
// everything immediately.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	workers *semaphore.Weighted

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.GOMAXPROCS(0)
	}

	c := &Controller{
		cfg:     cfg,
		workers: semaphore.NewWeighted(int64(cfg.MaxWorkers)),
	}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// Config returns the effective limits.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{MaxWorkers: runtime.GOMAXPROCS(0)}
	}
	return c.cfg
}

// Workers returns the worker budget.
func (c *Controller) Workers() int {
	return c.Config().MaxWorkers
}

// clampMemory caps a request at the whole budget so an oversized batch
// runs alone instead of waiting forever.
func (c *Controller) clampMemory(bytes int64) int64 {
	if c.cfg.MemoryLimitBytes > 0 && bytes > c.cfg.MemoryLimitBytes {
		return c.cfg.MemoryLimitBytes
	}
	return bytes
}

// AcquireMemory reserves bytes, blocking until they are available or ctx
// is done. It returns the amount actually reserved, which the caller hands
// back to ReleaseMemory.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) (int64, error) {
	if c == nil || bytes <= 0 {
		return 0, nil
	}
	bytes = c.clampMemory(bytes)
	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return 0, err
		}
	}
	c.memUsed.Add(bytes)
	return bytes, nil
}

// TryAcquireMemory is AcquireMemory without blocking. It reports false when
// the budget is exhausted.
func (c *Controller) TryAcquireMemory(bytes int64) (int64, bool) {
	if c == nil || bytes <= 0 {
		return 0, true
	}
	bytes = c.clampMemory(bytes)
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return 0, false
	}
	c.memUsed.Add(bytes)
	return bytes, true
}

// ReleaseMemory returns a reservation.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireWorker reserves a worker slot, blocking while all are busy.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.workers.Acquire(ctx, 1)
}

// TryAcquireWorker reserves a worker slot without blocking.
func (c *Controller) TryAcquireWorker() bool {
	if c == nil {
		return true
	}
	return c.workers.TryAcquire(1)
}

// ReleaseWorker returns a worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.workers.Release(1)
}

// AcquireIO waits until the IO limit admits n bytes. Requests above the
// burst are split.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := c.ioLimiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

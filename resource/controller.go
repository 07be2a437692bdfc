package resource

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for off-heap memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// ReportsPerSecond is the sustained rate of tamper reports.
	// If 0, reports are not throttled.
	ReportsPerSecond float64

	// ReportBurst is the number of reports allowed at once.
	// If 0, defaults to 1 when ReportsPerSecond is set.
	ReportBurst int
}

// Controller manages heap resources (memory, reports).
type Controller struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Reports
	reportLimiter *rate.Limiter // nil if unthrottled
	suppressed    atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{
		cfg: cfg,
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.ReportsPerSecond > 0 {
		burst := cfg.ReportBurst
		if burst <= 0 {
			burst = 1
		}
		c.reportLimiter = rate.NewLimiter(rate.Limit(cfg.ReportsPerSecond), burst)
	}

	return c
}

// AcquireMemory attempts to reserve memory.
// If a hard limit is configured and usage would exceed it,
// this blocks until memory is available or ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil {
		return nil
	}
	if bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory attempts to reserve memory without blocking.
// Returns true if acquired, false if limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil {
		return true
	}
	if bytes <= 0 {
		return true
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AllowReport reports whether a tamper report may be emitted now.
// Denied reports are counted, see SuppressedReports.
func (c *Controller) AllowReport() bool {
	return c.allowReportAt(time.Now())
}

func (c *Controller) allowReportAt(now time.Time) bool {
	if c == nil || c.reportLimiter == nil {
		return true
	}
	if c.reportLimiter.AllowN(now, 1) {
		return true
	}
	c.suppressed.Add(1)
	return false
}

// SuppressedReports returns the number of reports dropped by AllowReport.
func (c *Controller) SuppressedReports() int64 {
	if c == nil {
		return 0
	}
	return c.suppressed.Load()
}

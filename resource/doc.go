// Package resource implements limits and governance for a signed pointer heap.
//
// The Controller manages two resources:
//
//   - Memory: a hard budget for off-heap bytes reserved by the arena allocator
//   - Reports: a token bucket that throttles tamper/corruption log records
//
// # Memory Management
//
// A weighted semaphore enforces the hard limit and an atomic counter tracks
// usage. AcquireMemory blocks until memory is available or ctx is done;
// TryAcquireMemory fails fast:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 64 << 20, // 64MB of off-heap chunks
//	})
//
//	if err := rc.AcquireMemory(ctx, 1<<20); err != nil {
//	    return err
//	}
//	defer rc.ReleaseMemory(1 << 20)
//
// # Report Throttling
//
// A corrupted pointer is usually resolved in a loop. AllowReport lets the
// first few failures through and drops the rest until tokens refill:
//
//	rc := resource.NewController(resource.Config{
//	    ReportsPerSecond: 10,
//	    ReportBurst:      20,
//	})
//	if rc.AllowReport() {
//	    logger.Warn("checksum mismatch", ...)
//	}
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully: memory is unlimited and
// every report is allowed.
package resource

package sigptr

import (
	"errors"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    tamperCounter *prometheus.CounterVec
//	}
//
//	func (p *PrometheusCollector) RecordTamper(reason error) {
//	    p.tamperCounter.WithLabelValues(reason.Error()).Inc()
//	}
type MetricsCollector interface {
	// RecordMake is called after each allocating construction.
	// size is the pointee size in bytes, err is nil if successful.
	RecordMake(size int, duration time.Duration, err error)

	// RecordResolve is called after each resolution through the validation gate.
	RecordResolve(ok bool)

	// RecordTamper is called when a non-empty pointer fails validation.
	// reason wraps one of the resolution sentinel errors.
	RecordTamper(reason error)

	// RecordDestroy is called after each destroy.
	// released is false when destroy was a no-op.
	RecordDestroy(released bool, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordMake(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordResolve(bool)                   {}
func (NoopMetricsCollector) RecordTamper(error)                   {}
func (NoopMetricsCollector) RecordDestroy(bool, error)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	MakeCount          atomic.Int64
	MakeErrors         atomic.Int64
	MakeBytes          atomic.Int64
	MakeTotalNanos     atomic.Int64
	ResolveCount       atomic.Int64
	ResolveFailures    atomic.Int64
	ChecksumMismatches atomic.Int64
	UnsignedWords      atomic.Int64
	StaleResolves      atomic.Int64
	UnreadableResolves atomic.Int64
	OtherTampers       atomic.Int64
	DestroyCount       atomic.Int64
	DestroyNoops       atomic.Int64
	DestroyErrors      atomic.Int64
}

// RecordMake implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMake(size int, duration time.Duration, err error) {
	b.MakeCount.Add(1)
	b.MakeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.MakeErrors.Add(1)
		return
	}
	b.MakeBytes.Add(int64(size))
}

// RecordResolve implements MetricsCollector.
func (b *BasicMetricsCollector) RecordResolve(ok bool) {
	b.ResolveCount.Add(1)
	if !ok {
		b.ResolveFailures.Add(1)
	}
}

// RecordTamper implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTamper(reason error) {
	switch {
	case errors.Is(reason, ErrChecksumMismatch):
		b.ChecksumMismatches.Add(1)
	case errors.Is(reason, ErrUnsigned):
		b.UnsignedWords.Add(1)
	case errors.Is(reason, ErrStale):
		b.StaleResolves.Add(1)
	case errors.Is(reason, ErrUnreadable):
		b.UnreadableResolves.Add(1)
	default:
		b.OtherTampers.Add(1)
	}
}

// RecordDestroy implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDestroy(released bool, err error) {
	b.DestroyCount.Add(1)
	if !released {
		b.DestroyNoops.Add(1)
	}
	if err != nil {
		b.DestroyErrors.Add(1)
	}
}

// BasicMetricsStats is a point-in-time snapshot of BasicMetricsCollector.
type BasicMetricsStats struct {
	MakeCount          int64
	MakeErrors         int64
	MakeBytes          int64
	MakeAvgNanos       int64
	ResolveCount       int64
	ResolveFailures    int64
	ChecksumMismatches int64
	UnsignedWords      int64
	StaleResolves      int64
	UnreadableResolves int64
	OtherTampers       int64
	DestroyCount       int64
	DestroyNoops       int64
	DestroyErrors      int64
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	makeCount := b.MakeCount.Load()

	var avg int64
	if makeCount > 0 {
		avg = b.MakeTotalNanos.Load() / makeCount
	}

	return BasicMetricsStats{
		MakeCount:          makeCount,
		MakeErrors:         b.MakeErrors.Load(),
		MakeBytes:          b.MakeBytes.Load(),
		MakeAvgNanos:       avg,
		ResolveCount:       b.ResolveCount.Load(),
		ResolveFailures:    b.ResolveFailures.Load(),
		ChecksumMismatches: b.ChecksumMismatches.Load(),
		UnsignedWords:      b.UnsignedWords.Load(),
		StaleResolves:      b.StaleResolves.Load(),
		UnreadableResolves: b.UnreadableResolves.Load(),
		OtherTampers:       b.OtherTampers.Load(),
		DestroyCount:       b.DestroyCount.Load(),
		DestroyNoops:       b.DestroyNoops.Load(),
		DestroyErrors:      b.DestroyErrors.Load(),
	}
}

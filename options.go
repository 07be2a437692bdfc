package sigptr

import (
	"log/slog"

	"github.com/hupe1980/sigptr/checksum"
	"github.com/hupe1980/sigptr/resource"
)

type options struct {
	allocator        Allocator
	chunkSize        int
	mode             checksum.Mode
	algorithm        checksum.Algorithm
	liveness         bool
	quarantine       int
	poison           bool
	poisonByte       byte
	metricsCollector MetricsCollector
	logger           *Logger
	resources        *resource.Controller
	limits           *resource.Config
}

// Option configures a Heap.
type Option func(*options)

// WithAllocator replaces the default arena with a caller-supplied allocator.
//
// The allocator owns the memory; Close does not release it. Addresses it
// returns must fit the 47-bit value field.
func WithAllocator(a Allocator) Option {
	return func(o *options) {
		o.allocator = a
	}
}

// WithChunkSize sets the chunk size of the default arena.
// It is ignored when WithAllocator is used.
func WithChunkSize(size int) Option {
	return func(o *options) {
		o.chunkSize = size
	}
}

// WithChecksumMode selects what the checksum covers.
//
// checksum.ModeContent (the default) hashes the first 8 bytes stored at the
// address, so writes through the pointer invalidate it.
// checksum.ModeAddress hashes the address bits only.
func WithChecksumMode(m checksum.Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithChecksumAlgorithm selects the hash behind the checksum. Default: checksum.FNV1a.
func WithChecksumAlgorithm(a checksum.Algorithm) Option {
	return func(o *options) {
		o.algorithm = a
	}
}

// WithLivenessCheck enables or disables the live-allocation check during resolution.
//
// Disabled by default: resolution checks the signed flag and the checksum
// only, so any address wrapped with From resolves. When enabled, only
// addresses allocated by Make and not yet destroyed resolve. Destroy always
// consults the live set regardless.
func WithLivenessCheck(enabled bool) Option {
	return func(o *options) {
		o.liveness = enabled
	}
}

// WithQuarantine sets how many destroyed blocks the default arena holds back
// before reusing their addresses. Default: DefaultQuarantine.
//
// A copy taken before Destroy cannot alias a new pointee while its block is
// quarantined. Once the block is reused, such a copy resolves again if its
// checksum matches the new pointee. It is ignored when WithAllocator is used.
func WithQuarantine(n int) Option {
	return func(o *options) {
		o.quarantine = n
	}
}

// WithPoison sets the byte written over a pointee before its memory is released.
func WithPoison(b byte) Option {
	return func(o *options) {
		o.poison = true
		o.poisonByte = b
	}
}

// WithoutPoison disables poisoning on destroy.
func WithoutPoison() Option {
	return func(o *options) {
		o.poison = false
	}
}

// WithMetricsCollector sets the metrics collector. Nil disables metrics.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger sets a custom structured logger.
// If nil is passed, logging is disabled (NoopLogger).
//
// Example:
//
//	logger := sigptr.NewJSONLogger(slog.LevelInfo)
//	h, err := sigptr.NewHeap(sigptr.WithLogger(logger))
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel creates a text logger with the specified level.
// This is a convenience option equivalent to WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController shares a resource controller between heaps.
// It bounds arena memory and rate-limits tamper reports.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithLimits creates a private resource controller from cfg.
// It is ignored when WithResourceController is used.
func WithLimits(cfg resource.Config) Option {
	return func(o *options) {
		o.limits = &cfg
	}
}

// WithMemoryLimit bounds the bytes the default arena may map.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		if o.limits == nil {
			o.limits = &resource.Config{}
		}
		o.limits.MemoryLimitBytes = bytes
	}
}

func defaultOptions() options {
	return options{
		chunkSize:        0,
		mode:             checksum.ModeContent,
		algorithm:        checksum.FNV1a,
		liveness:         false,
		quarantine:       DefaultQuarantine,
		poison:           true,
		poisonByte:       PoisonByte,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

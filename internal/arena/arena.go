// Package arena provides an off-heap memory allocator for signed pointer targets.
//
// # Concurrency Model
//
// Allocate, Release and View are safe for concurrent use. Close is NOT safe to
// call concurrently with any other method; call it once when the owner is done.
//
// # Memory Management
//
// Memory is reserved in chunks and carved with a lock-free bump pointer. A
// released block first enters a FIFO quarantine (see WithQuarantine); once it
// leaves the quarantine it goes onto the free list of its size class and is
// handed out again to the next request of that class. Chunks are only
// returned to the OS by Close.
package arena

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/sigptr/internal/conv"
	"github.com/hupe1980/sigptr/internal/mem"
	"github.com/hupe1980/sigptr/internal/mmap"
)

// MemoryAcquirer is an interface for acquiring memory.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

var (
	// ErrMaxChunksExceeded is returned when the arena exceeds the maximum number of chunks.
	ErrMaxChunksExceeded = errors.New("arena: max chunks exceeded")
	// ErrClosed is returned when the arena has been closed.
	ErrClosed = errors.New("arena: closed")
	// ErrTooLarge is returned when a single allocation does not fit in a chunk.
	ErrTooLarge = errors.New("arena: allocation larger than chunk")
	// ErrInvalidSize is returned for non-positive allocation sizes.
	ErrInvalidSize = errors.New("arena: invalid size")
	// ErrForeignAddress is returned when releasing memory the arena does not own.
	ErrForeignAddress = errors.New("arena: address not owned by arena")
	// ErrAddressLimit is returned when a mapped chunk ends above the configured address limit.
	ErrAddressLimit = errors.New("arena: chunk exceeds address limit")
)

const (
	// DefaultChunkSize is the default size of a chunk (1MB).
	DefaultChunkSize = 1024 * 1024
	// DefaultAlignment is the default memory alignment (8 bytes).
	DefaultAlignment = 8
	// MaxChunks limits the number of chunks to prevent excessive memory usage.
	// 4096 chunks of 1MB address 4GB.
	MaxChunks = 4096
)

// Stats tracks arena memory usage metrics.
//
// Note on semantics:
//   - BytesReserved: total memory reserved from the OS
//   - BytesUsed: bytes requested by live allocations (before alignment)
//   - BytesWasted: padding added for alignment by the bump allocator
//   - BytesFree: bytes sitting on free lists
//   - ActiveChunks: number of chunks currently held
//   - TotalAllocs / TotalReleases / Reused: cumulative counters
type Stats struct {
	ChunksAllocated uint64 // Historical: total chunks ever created
	BytesReserved   uint64 // Current
	BytesUsed       uint64 // Current
	BytesWasted     uint64 // Current
	BytesFree       uint64 // Current
	ActiveChunks    uint64 // Current
	TotalAllocs     uint64 // Historical
	TotalReleases   uint64 // Historical
	Reused          uint64 // Historical: allocations served from a free list

	// BytesQuarantined is released memory not yet eligible for reuse.
	BytesQuarantined uint64 // Current
}

type atomicStats struct {
	ChunksAllocated atomic.Uint64
	BytesReserved   atomic.Uint64
	BytesUsed       atomic.Uint64
	BytesWasted     atomic.Uint64
	BytesFree       atomic.Uint64
	ActiveChunks    atomic.Uint64
	TotalAllocs     atomic.Uint64
	TotalReleases   atomic.Uint64
	Reused          atomic.Uint64
	Quarantined     atomic.Uint64
}

// released is a block waiting in quarantine.
type released struct {
	addr  uintptr
	class int
}

type chunk struct {
	data    []byte
	mapping *mmap.Mapping
	base    uintptr
	offset  atomic.Int64 // MUST be atomic - accessed concurrently without locks
	index   uint32
}

func (c *chunk) contains(addr uintptr) bool {
	return addr >= c.base && addr-c.base < uintptr(len(c.data))
}

// Arena is an off-heap memory allocator addressed by raw addresses.
type Arena struct {
	chunkSize  int
	alignment  int
	addrLimit  uintptr
	chunks     [MaxChunks]atomic.Pointer[chunk] // Fixed-size array to avoid slice race conditions
	chunkCount atomic.Uint32
	current    atomic.Pointer[chunk]
	mu         sync.Mutex // guards chunk growth and free lists
	free       map[int][]uintptr
	quarantine []released // FIFO, oldest first
	holdBack   int
	stats      atomicStats
	acquirer   MemoryAcquirer
	closed     atomic.Bool
}

// Option is a configuration option for Arena.
type Option func(*Arena)

// WithMemoryAcquirer sets the memory acquirer for the arena.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// WithAddressLimit rejects chunks whose last byte lies at or above limit.
// A limit of 0 disables the check.
func WithAddressLimit(limit uintptr) Option {
	return func(a *Arena) {
		a.addrLimit = limit
	}
}

// WithQuarantine holds the n most recently released blocks back from reuse.
// A released address is not handed out again until n later releases have
// happened. 0 (the default) reuses blocks immediately.
func WithQuarantine(n int) Option {
	return func(a *Arena) {
		a.holdBack = max(n, 0)
	}
}

// WithAlignment sets the minimum alignment for every allocation.
func WithAlignment(align int) Option {
	return func(a *Arena) {
		a.alignment = mem.NormalizeAlignment(align)
	}
}

// New creates a new Arena with the given chunk size.
// The first chunk is mapped eagerly.
func New(chunkSize int, opts ...Option) (*Arena, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	// Round up to next power of 2.
	chunkBits := bits.Len(uint(chunkSize - 1)) //nolint:gosec // chunkSize > 0
	chunkSize = 1 << chunkBits

	a := &Arena{
		chunkSize: chunkSize,
		alignment: DefaultAlignment,
		free:      make(map[int][]uintptr),
	}

	for _, opt := range opts {
		opt(a)
	}

	if err := a.allocateChunk(context.Background()); err != nil {
		return nil, err
	}
	return a, nil
}

// ChunkSize returns the (power of two) chunk size.
func (a *Arena) ChunkSize() int {
	return a.chunkSize
}

func (a *Arena) allocateChunk(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocateChunkLocked(ctx)
}

func (a *Arena) allocateChunkLocked(ctx context.Context) error {
	idx := a.chunkCount.Load()
	if idx >= MaxChunks {
		return ErrMaxChunksExceeded
	}

	chunkSize64 := conv.IntToInt64(a.chunkSize)

	// Acquire memory if acquirer is set
	if a.acquirer != nil {
		// Check for timeout in context or use default short timeout
		var cancel context.CancelFunc
		if _, ok := ctx.Deadline(); !ok {
			ctx, cancel = context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()
		}
		if err := a.acquirer.AcquireMemory(ctx, chunkSize64); err != nil {
			return err
		}
	}

	mapping, err := mmap.MapAnon(a.chunkSize)
	if err != nil {
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(chunkSize64)
		}
		return fmt.Errorf("failed to map anonymous memory for chunk: %w", err)
	}

	base := mapping.Addr()
	if a.addrLimit != 0 && (base >= a.addrLimit || a.addrLimit-base < uintptr(a.chunkSize)) {
		_ = mapping.Close()
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(chunkSize64)
		}
		return fmt.Errorf("%w: chunk at %#x", ErrAddressLimit, base)
	}

	newChunk := &chunk{
		data:    mapping.Bytes(),
		mapping: mapping,
		base:    base,
		index:   idx,
	}

	// View() is lock-free and needs to see the pointer safely.
	a.chunks[idx].Store(newChunk)

	a.stats.ChunksAllocated.Add(1)
	chunkSizeU64, _ := conv.IntToUint64(a.chunkSize)
	a.stats.BytesReserved.Add(chunkSizeU64)
	a.stats.ActiveChunks.Add(1)

	// Must be done BEFORE updating current so View() sees the chunk
	// as soon as Allocate() can return an address from it.
	a.chunkCount.Add(1)

	a.current.Store(newChunk)

	return nil
}

// Allocate reserves size bytes aligned to align and returns the block's address.
// The block is zero-filled.
func (a *Arena) Allocate(ctx context.Context, size, align int) (uintptr, error) {
	if a.closed.Load() {
		return 0, ErrClosed
	}
	if size <= 0 {
		return 0, ErrInvalidSize
	}

	align = max(mem.NormalizeAlignment(align), a.alignment)
	class := mem.AlignUp(size, align)
	if class > a.chunkSize {
		return 0, fmt.Errorf("%w: %d > %d", ErrTooLarge, class, a.chunkSize)
	}

	if addr, ok := a.reuse(class, align); ok {
		a.accountAlloc(size, class-size)
		a.stats.Reused.Add(1)
		return addr, nil
	}

	for {
		curr := a.current.Load()
		if curr == nil {
			return 0, ErrClosed
		}

		if addr, ok := a.tryAllocInChunk(curr, size, class, align); ok {
			return addr, nil
		}

		// Current chunk is full. Check if someone else already
		// allocated a new chunk by checking if a.current changed.
		if a.current.Load() != curr {
			continue
		}

		a.mu.Lock()
		// Double check under lock
		if a.current.Load() != curr {
			a.mu.Unlock()
			continue
		}

		if err := a.allocateChunkLocked(ctx); err != nil {
			a.mu.Unlock()
			return 0, err
		}
		a.mu.Unlock()
	}
}

func (a *Arena) reuse(class, align int) (uintptr, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	list := a.free[class]
	for i := len(list) - 1; i >= 0; i-- {
		addr := list[i]
		if addr%uintptr(align) != 0 { //nolint:gosec // align > 0
			continue
		}
		list[i] = list[len(list)-1]
		a.free[class] = list[:len(list)-1]

		classU64, _ := conv.IntToUint64(class)
		a.stats.BytesFree.Add(^(classU64 - 1))

		// Blocks come back poisoned or dirty; hand them out zeroed.
		if c := a.findChunk(addr); c != nil {
			off := addr - c.base
			mem.Zero(c.data[off : off+uintptr(class)]) //nolint:gosec // class > 0
		}
		return addr, true
	}
	return 0, false
}

func (a *Arena) tryAllocInChunk(curr *chunk, size, class, align int) (uintptr, bool) {
	oldOffset := curr.offset.Load()
	start := mem.AlignUp(int(oldOffset), align)
	newOffset := int64(start + class)

	if newOffset > int64(len(curr.data)) {
		return 0, false
	}

	if !curr.offset.CompareAndSwap(oldOffset, newOffset) {
		return 0, false
	}

	a.accountAlloc(size, start-int(oldOffset)+class-size)

	startPtr, _ := conv.IntToUintptr(start)
	return curr.base + startPtr, true
}

func (a *Arena) accountAlloc(size, wasted int) {
	sizeU64, _ := conv.IntToUint64(size)
	a.stats.BytesUsed.Add(sizeU64)
	wastedU64, _ := conv.IntToUint64(wasted)
	a.stats.BytesWasted.Add(wastedU64)
	a.stats.TotalAllocs.Add(1)
}

// Release returns a block obtained from Allocate with the same size and
// alignment. The block enters the quarantine and later its size-class free list.
//
// Release does not detect double releases; callers track liveness.
func (a *Arena) Release(addr uintptr, size, align int) error {
	if a.closed.Load() {
		return ErrClosed
	}
	if size <= 0 {
		return ErrInvalidSize
	}

	class := mem.AlignUp(size, max(mem.NormalizeAlignment(align), a.alignment))
	if _, ok := a.View(addr, class); !ok {
		return fmt.Errorf("%w: %#x", ErrForeignAddress, addr)
	}

	classU64, _ := conv.IntToUint64(class)

	a.mu.Lock()
	a.quarantine = append(a.quarantine, released{addr: addr, class: class})
	a.stats.Quarantined.Add(classU64)
	for len(a.quarantine) > a.holdBack {
		r := a.quarantine[0]
		a.quarantine[0] = released{}
		a.quarantine = a.quarantine[1:]
		a.free[r.class] = append(a.free[r.class], r.addr)

		rU64, _ := conv.IntToUint64(r.class)
		a.stats.Quarantined.Add(^(rU64 - 1))
		a.stats.BytesFree.Add(rU64)
	}
	a.mu.Unlock()

	sizeU64, _ := conv.IntToUint64(size)
	a.stats.BytesUsed.Add(^(sizeU64 - 1))
	a.stats.TotalReleases.Add(1)
	return nil
}

func (a *Arena) findChunk(addr uintptr) *chunk {
	n := a.chunkCount.Load()
	for i := uint32(0); i < n; i++ {
		c := a.chunks[i].Load()
		if c != nil && c.contains(addr) {
			return c
		}
	}
	return nil
}

// Owns reports whether addr lies inside memory the arena has handed out.
func (a *Arena) Owns(addr uintptr) bool {
	_, ok := a.View(addr, 1)
	return ok
}

// View returns the n bytes starting at addr if they lie entirely inside the
// allocated part of one chunk. The slice aliases arena memory.
func (a *Arena) View(addr uintptr, n int) ([]byte, bool) {
	if n <= 0 || a.closed.Load() {
		return nil, false
	}
	c := a.findChunk(addr)
	if c == nil {
		return nil, false
	}
	off := addr - c.base
	used := uintptr(c.offset.Load()) //nolint:gosec // offset >= 0
	nPtr := uintptr(n)               //nolint:gosec // n > 0
	if off >= used || used-off < nPtr {
		return nil, false
	}
	return c.data[off : off+nPtr : off+nPtr], true
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() Stats {
	return Stats{
		ChunksAllocated: a.stats.ChunksAllocated.Load(),
		BytesReserved:   a.stats.BytesReserved.Load(),
		BytesUsed:       a.stats.BytesUsed.Load(),
		BytesWasted:     a.stats.BytesWasted.Load(),
		BytesFree:       a.stats.BytesFree.Load(),
		ActiveChunks:    a.stats.ActiveChunks.Load(),
		TotalAllocs:     a.stats.TotalAllocs.Load(),
		TotalReleases:   a.stats.TotalReleases.Load(),
		Reused:          a.stats.Reused.Load(),

		BytesQuarantined: a.stats.Quarantined.Load(),
	}
}

// Close unmaps every chunk. All addresses handed out become invalid.
//
// IMPORTANT: Do NOT call Close concurrently with other methods.
// After Close, the arena cannot be reused. Create a new arena instead.
func (a *Arena) Close() error {
	if a.closed.Swap(true) {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.acquirer != nil {
		if reserved := a.stats.BytesReserved.Load(); reserved > 0 {
			a.acquirer.ReleaseMemory(int64(reserved)) //nolint:gosec // bounded by MaxChunks*chunkSize
		}
	}

	var errs []error
	count := a.chunkCount.Load()
	for i := uint32(0); i < count; i++ {
		c := a.chunks[i].Load()
		if c != nil && c.mapping != nil {
			if err := c.mapping.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		a.chunks[i].Store(nil)
	}
	a.chunkCount.Store(0)
	a.current.Store(nil)
	clear(a.free)
	a.quarantine = nil

	a.stats.ActiveChunks.Store(0)
	a.stats.BytesReserved.Store(0)
	a.stats.BytesUsed.Store(0)
	a.stats.BytesWasted.Store(0)
	a.stats.BytesFree.Store(0)
	a.stats.Quarantined.Store(0)

	return errors.Join(errs...)
}

// Usage returns the memory usage percentage.
func (a *Arena) Usage() float64 {
	stats := a.Stats()
	if stats.BytesReserved == 0 {
		return 0
	}
	return float64(stats.BytesUsed) / float64(stats.BytesReserved) * 100
}

func (a *Arena) String() string {
	stats := a.Stats()
	return fmt.Sprintf(
		"Arena{chunks: %d, reserved: %.2f MB, used: %.2f MB, free: %.2f KB, usage: %.1f%%, allocs: %d, releases: %d}",
		stats.ActiveChunks,
		float64(stats.BytesReserved)/(1024*1024),
		float64(stats.BytesUsed)/(1024*1024),
		float64(stats.BytesFree)/1024,
		a.Usage(),
		stats.TotalAllocs,
		stats.TotalReleases,
	)
}

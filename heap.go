package sigptr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/sigptr/checksum"
	"github.com/hupe1980/sigptr/internal/arena"
	"github.com/hupe1980/sigptr/internal/mem"
	"github.com/hupe1980/sigptr/resource"
	"github.com/hupe1980/sigptr/word"
)

// Heap owns the memory that signed pointers refer to and the policy used to
// sign and validate them.
//
// A Heap is safe for concurrent use. Pointers themselves are values and follow
// the usual Go rules: a single Pointer must not be destroyed concurrently with
// other use of the same variable.
type Heap struct {
	alloc Allocator
	owned *arena.Arena

	mode       checksum.Mode
	algorithm  checksum.Algorithm
	liveness   bool
	poison     bool
	poisonByte byte

	logger    *Logger
	metrics   MetricsCollector
	resources *resource.Controller

	mu     sync.RWMutex
	live   *roaring64.Bitmap
	closed atomic.Bool
}

// HeapStats is a point-in-time snapshot of a heap.
type HeapStats struct {
	// Live is the number of allocations not yet destroyed.
	Live uint64
	// MemoryUsage is the number of bytes held through the resource controller.
	MemoryUsage int64
	// MemoryLimit is the configured limit, 0 if unlimited.
	MemoryLimit int64
	// SuppressedReports counts tamper reports dropped by rate limiting.
	SuppressedReports int64
	// Arena is set when the heap uses its default arena.
	Arena *ArenaStats
}

// NewHeap creates a heap.
//
// Without WithAllocator, the heap maps its own arena outside the Go heap and
// unmaps it on Close.
func NewHeap(opts ...Option) (*Heap, error) {
	o := applyOptions(opts)

	if !o.mode.Valid() {
		return nil, fmt.Errorf("%w: checksum mode %d", ErrInvalidOption, o.mode)
	}
	if !o.algorithm.Valid() {
		return nil, fmt.Errorf("%w: checksum algorithm %d", ErrInvalidOption, o.algorithm)
	}
	if o.chunkSize < 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidOption, o.chunkSize)
	}
	if o.quarantine < 0 {
		return nil, fmt.Errorf("%w: quarantine %d", ErrInvalidOption, o.quarantine)
	}

	rc := o.resources
	if rc == nil && o.limits != nil {
		rc = resource.NewController(*o.limits)
	}

	h := &Heap{
		alloc:      o.allocator,
		mode:       o.mode,
		algorithm:  o.algorithm,
		liveness:   o.liveness,
		poison:     o.poison,
		poisonByte: o.poisonByte,
		logger:     o.logger,
		metrics:    o.metricsCollector,
		resources:  rc,
		live:       roaring64.New(),
	}

	if h.alloc == nil {
		arenaOpts := []arena.Option{
			arena.WithAddressLimit(AddressLimit),
			arena.WithAlignment(checksum.WindowSize),
			arena.WithQuarantine(o.quarantine),
		}
		if rc != nil {
			arenaOpts = append(arenaOpts, arena.WithMemoryAcquirer(rc))
		}
		a, err := arena.New(o.chunkSize, arenaOpts...)
		if err != nil {
			return nil, fmt.Errorf("sigptr: create arena: %w", err)
		}
		h.alloc = a
		h.owned = a
	}

	return h, nil
}

// Close releases the default arena. Pointers into it stop resolving.
// Close is idempotent. A caller-supplied allocator is left untouched.
// Close must not run concurrently with other use of the heap's pointers.
func (h *Heap) Close() error {
	if h.closed.Swap(true) {
		return nil
	}

	h.mu.Lock()
	live := h.live.GetCardinality()
	h.live.Clear()
	h.mu.Unlock()

	var err error
	if h.owned != nil {
		err = h.owned.Close()
	}
	h.logger.LogClose(context.Background(), live, err)
	return err
}

// Mode returns the checksum mode.
func (h *Heap) Mode() checksum.Mode { return h.mode }

// Algorithm returns the checksum algorithm.
func (h *Heap) Algorithm() checksum.Algorithm { return h.algorithm }

// Live returns the number of allocations not yet destroyed.
func (h *Heap) Live() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.live.GetCardinality()
}

// IsLive reports whether addr is the address of an allocation not yet destroyed.
func (h *Heap) IsLive(addr uintptr) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.live.Contains(uint64(addr))
}

// Stats returns a snapshot of heap usage.
func (h *Heap) Stats() HeapStats {
	s := HeapStats{
		Live:              h.Live(),
		MemoryUsage:       h.resources.MemoryUsage(),
		MemoryLimit:       h.resources.MemoryLimit(),
		SuppressedReports: h.resources.SuppressedReports(),
	}
	if h.owned != nil {
		as := h.owned.Stats()
		s.Arena = &as
	}
	return s
}

// AddressChecksum returns the checksum of the address bits of addr.
// The null address always checksums to checksum.Null.
func (h *Heap) AddressChecksum(addr uintptr) uint16 {
	if addr == 0 {
		return checksum.Null
	}
	win := checksum.AddressWindow(uint64(addr))
	return h.algorithm.Sum16(win[:])
}

// ContentChecksum returns the checksum of the checksum.WindowSize bytes stored at addr.
// The null address always checksums to checksum.Null.
func (h *Heap) ContentChecksum(addr uintptr) (uint16, error) {
	if addr == 0 {
		return checksum.Null, nil
	}
	b, ok := h.alloc.View(addr, checksum.WindowSize)
	if !ok {
		return 0, fmt.Errorf("%w: %#x", ErrUnreadable, addr)
	}
	return h.algorithm.Sum16(b), nil
}

// Checksum returns the checksum of addr under the heap's mode.
func (h *Heap) Checksum(addr uintptr) (uint16, error) {
	if h.mode == checksum.ModeAddress {
		return h.AddressChecksum(addr), nil
	}
	return h.ContentChecksum(addr)
}

// sign returns the signed word for addr. An unreadable address is signed with
// checksum.Null and will fail validation.
func (h *Heap) sign(addr uintptr) word.Word {
	sum, err := h.Checksum(addr)
	if err != nil {
		sum = checksum.Null
	}
	return word.Pack(uint64(addr), true, sum)
}

// verify runs the validation gate on w and returns the address it designates.
func (h *Heap) verify(w word.Word) (uintptr, error) {
	if !w.Signed() {
		return 0, ErrUnsigned
	}
	if w.IsEmpty() {
		if w.Checksum() != checksum.Null {
			return 0, ErrChecksumMismatch
		}
		return 0, ErrNilPointer
	}
	if h == nil {
		return 0, ErrNoHeap
	}
	if h.closed.Load() {
		return 0, ErrHeapClosed
	}

	addr := uintptr(w.Value())
	sum, err := h.Checksum(addr)
	if err != nil {
		return 0, err
	}
	if sum != w.Checksum() {
		return 0, ErrChecksumMismatch
	}
	if h.liveness && !h.IsLive(addr) {
		return 0, ErrStale
	}
	return addr, nil
}

func (h *Heap) report(ctx context.Context, op, typ string, w word.Word, err error) {
	if h == nil {
		return
	}
	h.metrics.RecordResolve(err == nil)
	if !isTamper(err) {
		return
	}
	h.metrics.RecordTamper(err)
	if h.resources.AllowReport() {
		h.logger.LogTamper(ctx, op, typ, w, err)
	}
}

func (h *Heap) markLive(addr uintptr) {
	h.mu.Lock()
	h.live.Add(uint64(addr))
	h.mu.Unlock()
}

// unmarkLive removes addr from the live set and reports whether it was present.
func (h *Heap) unmarkLive(addr uintptr) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live.CheckedRemove(uint64(addr))
}

func (h *Heap) allocate(ctx context.Context, l layout) (uintptr, error) {
	if h.closed.Load() {
		return 0, ErrHeapClosed
	}
	addr, err := h.alloc.Allocate(ctx, l.blockSize(), l.align)
	if err != nil {
		return 0, err
	}
	if addr == 0 || addr >= AddressLimit {
		relErr := h.alloc.Release(addr, l.blockSize(), l.align)
		return 0, errors.Join(fmt.Errorf("%w: %#x", ErrNonCanonical, addr), relErr)
	}
	return addr, nil
}

func (h *Heap) release(addr uintptr, l layout) error {
	if h.poison {
		if b, ok := h.alloc.View(addr, l.blockSize()); ok {
			mem.Poison(b, h.poisonByte)
		}
	}
	return h.alloc.Release(addr, l.blockSize(), l.align)
}

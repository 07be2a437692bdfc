package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/hupe1980/sigptr/internal/mem"
)

var (
	// ErrUnknownBlock is returned when releasing an address that is not live.
	ErrUnknownBlock = errors.New("testutil: release of unknown block")
	// ErrSizeMismatch is returned when a release size differs from the allocation size.
	ErrSizeMismatch = errors.New("testutil: release size mismatch")
)

// Allocator is a Go-heap allocator with release accounting.
type Allocator struct {
	mu             sync.Mutex
	live           map[uintptr][]byte
	retired        map[uintptr][]byte
	allocs         int
	releases       int
	doubleReleases int

	// Fail, when set, is returned by every Allocate call.
	Fail error
}

// NewAllocator creates an empty Allocator.
func NewAllocator() *Allocator {
	return &Allocator{
		live:    make(map[uintptr][]byte),
		retired: make(map[uintptr][]byte),
	}
}

// Allocate returns the address of a zeroed, aligned Go-heap block.
func (a *Allocator) Allocate(ctx context.Context, size, align int) (uintptr, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if size <= 0 {
		return 0, fmt.Errorf("testutil: invalid size %d", size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Fail != nil {
		return 0, a.Fail
	}

	buf := mem.AllocAligned(size, align)
	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // the block stays reachable via a.live
	a.live[addr] = buf
	a.allocs++
	return addr, nil
}

// Release retires a live block. The memory stays reachable so its address is never reused.
func (a *Allocator) Release(addr uintptr, size, _ int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.live[addr]
	if !ok {
		if _, was := a.retired[addr]; was {
			a.doubleReleases++
		}
		return fmt.Errorf("%w: %#x", ErrUnknownBlock, addr)
	}
	if len(buf) != size {
		return fmt.Errorf("%w: allocated %d, released %d", ErrSizeMismatch, len(buf), size)
	}

	delete(a.live, addr)
	a.retired[addr] = buf
	a.releases++
	return nil
}

// View returns the n bytes at addr if they lie inside one live block.
func (a *Allocator) View(addr uintptr, n int) ([]byte, bool) {
	if n <= 0 {
		return nil, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for base, buf := range a.live {
		if addr < base || addr-base >= uintptr(len(buf)) {
			continue
		}
		off := addr - base
		if uintptr(len(buf))-off < uintptr(n) { //nolint:gosec // n > 0
			return nil, false
		}
		return buf[off : off+uintptr(n)], true //nolint:gosec // n > 0
	}
	return nil, false
}

// Retired returns the memory of a released block, for inspecting poison patterns.
func (a *Allocator) Retired(addr uintptr) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.retired[addr]
	return buf, ok
}

// Live returns the number of live blocks.
func (a *Allocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Allocs returns the number of successful allocations.
func (a *Allocator) Allocs() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs
}

// Releases returns the number of successful releases.
func (a *Allocator) Releases() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.releases
}

// DoubleReleases returns the number of releases of already retired blocks.
func (a *Allocator) DoubleReleases() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doubleReleases
}

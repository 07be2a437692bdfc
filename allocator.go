package sigptr

import (
	"context"

	"github.com/hupe1980/sigptr/internal/arena"
	"github.com/hupe1980/sigptr/internal/mem"
)

const (
	// PoisonByte is the default pattern written over a pointee before release.
	PoisonByte = mem.PoisonByte
	// DefaultQuarantine is the default number of destroyed blocks held back from reuse.
	DefaultQuarantine = 1024
)

// Allocator is the memory capability a Heap allocates pointees from.
//
// Memory handed out must not be managed by the Go garbage collector, or must
// be kept reachable by the allocator itself, because a Word hides the address
// from the collector. View is the read capability used to checksum and
// materialize pointees; it must return false for addresses it does not own.
type Allocator interface {
	// Allocate returns the address of a zeroed block of at least size bytes.
	Allocate(ctx context.Context, size, align int) (uintptr, error)
	// Release returns a block obtained from Allocate with the same size and align.
	Release(addr uintptr, size, align int) error
	// View returns the n bytes at addr, or false if they are not readable.
	View(addr uintptr, n int) ([]byte, bool)
}

// ArenaStats reports usage of a heap's default arena.
type ArenaStats = arena.Stats

var _ Allocator = (*arena.Arena)(nil)

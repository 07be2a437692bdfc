// Package sigptr provides signed pointers: addresses packed into a single
// 64-bit word together with a 16-bit checksum, validated on every access.
//
// A signed pointer detects accidental corruption of the stored word (a
// flipped bit, a torn write, an integer stored where a pointer belongs) and,
// in content mode, writes that changed the pointee behind its back. It is not
// a defence against an attacker who can recompute the checksum.
//
// # Quick Start
//
//	h, _ := sigptr.NewHeap()
//	defer h.Close()
//
//	p, _ := sigptr.Make(ctx, h, Sample{IValue: 1337})
//	v, err := p.Load()      // fails with ErrInvalidPointer if p was corrupted
//	_ = p.Destroy()         // poisons, releases and resets p to empty
//
// # Memory
//
// The Go garbage collector does not trace integers, so pointees live outside
// the Go heap: in an mmap-backed arena owned by the Heap, or in memory handed
// out by a caller-supplied Allocator. Pointee types must not contain Go
// pointers. Store a Word, not a Pointer, inside another pointee to build
// linked structures.
//
// # Checksum modes
//
// checksum.ModeContent (default) hashes the first 8 bytes stored at the
// address. A pointer stops resolving when those bytes change; two pointees
// with identical leading bytes share a checksum. checksum.ModeAddress hashes
// the address itself and is stable across writes.
//
// # Platform
//
// The value field holds 47 bits. The package builds only on amd64 and arm64.
package sigptr

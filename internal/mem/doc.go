// Package mem provides memory allocation and fill utilities.
//
// # Aligned Allocation
//
// AllocAligned returns GC-heap byte slices whose first element sits on a
// requested power-of-two boundary. The Go heap does not move objects, so the
// address stays stable for as long as the slice is reachable.
//
// # Poisoning
//
// Poison overwrites released memory with a fixed pattern so that stale views
// of it no longer look like the original object.
package mem

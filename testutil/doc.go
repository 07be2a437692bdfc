// Package testutil provides testing utilities for sigptr.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Inputs
//
//	rng := testutil.NewRNG(seed)
//	addr := rng.Address()   // canonical, 8-byte aligned, non-zero
//	bit := rng.Bit()        // bit index in [0, 64)
//
// # Fake Allocator
//
// Allocator satisfies sigptr.Allocator on the Go heap, so a Heap can be
// exercised without mmap. Blocks stay reachable after release (their addresses
// are never recycled) and every release is accounted:
//
//	alloc := testutil.NewAllocator()
//	h, _ := sigptr.NewHeap(sigptr.WithAllocator(alloc))
//	...
//	assert.Zero(t, alloc.DoubleReleases())
package testutil

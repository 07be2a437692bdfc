// Package arena provides an off-heap memory allocator for signed pointer targets.
//
// The arena hands out raw addresses inside anonymous mmap regions. Because the
// garbage collector never scans or moves this memory, an address may be stored
// as a plain integer (for example inside a packed pointer word) and converted
// back later.
//
// # Features
//
//   - Off-heap allocation via mmap (no GC pressure, stable addresses)
//   - Power-of-two chunks (1 MiB default) with lock-free CAS bump allocation
//   - Per-size-class free lists so released blocks are reused
//   - Ownership and bounds checks (Owns, View) for every address
//   - Optional address ceiling so every block fits a fixed-width address field
//
// # Safety
//
// All methods return errors instead of panicking. View returns false for
// addresses the arena does not own rather than faulting.
package arena

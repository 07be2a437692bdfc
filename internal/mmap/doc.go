// Package mmap provides anonymous read-write memory mappings outside the Go heap.
//
// # Overview
//
// Memory obtained here is never scanned or moved by the garbage collector, so
// its addresses stay valid as plain integers until the mapping is closed. The
// arena allocator carves signed-pointer targets out of these mappings.
//
// # Usage
//
//	m, err := mmap.MapAnon(1 << 20)
//	if err != nil { ... }
//	defer m.Close()
//
//	base := m.Addr()   // stable start address
//	data := m.Bytes()  // zero-filled, read-write
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with MAP_ANON|MAP_PRIVATE
//   - Windows: VirtualAlloc with MEM_RESERVE|MEM_COMMIT
//
// # Thread Safety
//
// Close is idempotent and protected by an atomic flag. Callers must ensure no
// goroutine touches Bytes() after Close returns.
package mmap

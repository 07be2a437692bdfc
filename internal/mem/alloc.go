package mem

import (
	"math/bits"
	"unsafe"
)

// DefaultAlignment is the alignment used when the caller passes a non-positive value.
const DefaultAlignment = 8

// PoisonByte is the default fill pattern for released memory.
const PoisonByte byte = 0xDD

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NormalizeAlignment returns align rounded up to a power of two, or DefaultAlignment.
func NormalizeAlignment(align int) int {
	if align <= 0 {
		return DefaultAlignment
	}
	if IsPowerOfTwo(align) {
		return align
	}
	return 1 << bits.Len(uint(align)) //nolint:gosec // align > 0
}

// AlignUp rounds n up to a multiple of align (a power of two).
func AlignUp(n, align int) int {
	mask := align - 1
	return (n + mask) &^ mask
}

// AllocAligned allocates a byte slice of the given size whose first byte is aligned to align.
//
// Note: This function allocates slightly more memory than requested to ensure alignment.
// The underlying array is kept alive by the returned slice.
func AllocAligned(size, align int) []byte {
	if size <= 0 {
		return nil
	}
	align = NormalizeAlignment(align)

	// Allocate size + alignment to ensure we can find an aligned offset
	totalSize := size + align
	buf := make([]byte, totalSize)

	// Calculate the offset to the first aligned byte
	ptr := unsafe.Pointer(&buf[0]) //nolint:gosec // unsafe is required for memory alignment
	addr := uintptr(ptr)
	mask := uintptr(align - 1) //nolint:gosec // align > 0
	offset := (uintptr(align) - (addr & mask)) & mask //nolint:gosec // align > 0

	return buf[offset : offset+uintptr(size) : offset+uintptr(size)] //nolint:gosec // size > 0
}

// Poison fills b with pattern.
func Poison(b []byte, pattern byte) {
	for i := range b {
		b[i] = pattern
	}
}

// Zero clears b.
func Zero(b []byte) {
	clear(b)
}

package sigptr

import "cmp"

// address returns the validated address of p, or 0 when it fails validation.
// Comparisons use it so a corrupted pointer compares like the empty one.
func (p Pointer[T]) address() uintptr {
	addr, err := p.check(layoutFor[T]())
	if err != nil {
		return 0
	}
	return addr
}

// Equal reports whether a and b resolve to the same address.
// Pointee types may differ.
func Equal[T, U any](a Pointer[T], b Pointer[U]) bool {
	return a.address() == b.address()
}

// Compare orders a and b by resolved address, returning -1, 0 or +1.
func Compare[T, U any](a Pointer[T], b Pointer[U]) int {
	return cmp.Compare(a.address(), b.address())
}

// Equal reports whether p and q resolve to the same address.
func (p Pointer[T]) Equal(q Pointer[T]) bool {
	return Equal(p, q)
}

// Compare orders p and q by resolved address.
func (p Pointer[T]) Compare(q Pointer[T]) int {
	return Compare(p, q)
}

// EqualAddr reports whether p resolves to addr. An invalid p equals address 0.
func (p Pointer[T]) EqualAddr(addr uintptr) bool {
	return p.address() == addr
}

// CompareAddr orders the resolved address of p against addr.
func (p Pointer[T]) CompareAddr(addr uintptr) int {
	return cmp.Compare(p.address(), addr)
}

//go:build amd64 || arm64

package sigptr

import "github.com/hupe1980/sigptr/word"

// AddressLimit is the first address a Word cannot hold.
// User space on these platforms can extend past it (arm64 reaches 2^48), so
// addresses are checked against it at runtime: the arena refuses chunks above
// it and Make rejects allocator addresses beyond it with ErrNonCanonical.
const AddressLimit = uintptr(1) << word.ValueBits

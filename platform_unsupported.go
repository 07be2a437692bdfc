//go:build !amd64 && !arm64

package sigptr

// A Word keeps 47 bits of address, which only holds on 64-bit platforms with
// canonical lower-half user addresses. Refuse to build anywhere else.
var _ = sigptrRequiresAmd64OrArm64

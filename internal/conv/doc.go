// Package conv provides checked integer conversions between sizes, offsets and addresses.
//
// Sizes arrive as int (unsafe.Sizeof results, caller input), addresses travel as
// uintptr, and packed words store them as uint64. Each conversion fails instead
// of silently wrapping.
package conv

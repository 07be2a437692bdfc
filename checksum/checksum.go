package checksum

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

const (
	// OffsetBasis is the 32-bit FNV offset basis.
	OffsetBasis uint32 = 0x811C9DC5
	// Prime is the 32-bit FNV prime.
	Prime uint32 = 0x01000193

	// WindowSize is the number of bytes covered by a checksum (one machine word).
	WindowSize = 8

	// Null is the checksum of the null address.
	Null uint16 = 0
)

// crc32cTable is pre-computed for CRC32-Castagnoli polynomial.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// FNV1a32 returns the 32-bit FNV-1a hash of data.
func FNV1a32(data []byte) uint32 {
	h := OffsetBasis
	for _, b := range data {
		h ^= uint32(b)
		h *= Prime
	}
	return h
}

// Fold16 xors the high and low halves of h.
func Fold16(h uint32) uint16 {
	//nolint:gosec // G115: both operands are masked to 16 bits.
	return uint16(h>>16) ^ uint16(h&0xFFFF)
}

// FNV1a16 returns the folded FNV-1a checksum of data.
func FNV1a16(data []byte) uint16 {
	return Fold16(FNV1a32(data))
}

// CRC32C16 returns the folded CRC32-Castagnoli checksum of data.
func CRC32C16(data []byte) uint16 {
	return Fold16(crc32.Checksum(data, crc32cTable))
}

// AddressWindow returns the little-endian bytes of an address value.
func AddressWindow(v uint64) [WindowSize]byte {
	var win [WindowSize]byte
	binary.LittleEndian.PutUint64(win[:], v)
	return win
}

// Algorithm selects the hash function behind a checksum.
type Algorithm int

const (
	// FNV1a is the 32-bit FNV-1a hash folded to 16 bits.
	FNV1a Algorithm = iota
	// CRC32C is CRC32-Castagnoli folded to 16 bits.
	CRC32C
)

// Sum16 computes the 16-bit checksum of data with the algorithm.
func (a Algorithm) Sum16(data []byte) uint16 {
	switch a {
	case CRC32C:
		return CRC32C16(data)
	default:
		return FNV1a16(data)
	}
}

// Valid reports whether a is a known algorithm.
func (a Algorithm) Valid() bool {
	return a == FNV1a || a == CRC32C
}

func (a Algorithm) String() string {
	switch a {
	case FNV1a:
		return "fnv1a"
	case CRC32C:
		return "crc32c"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// Mode selects which bytes a checksum covers.
type Mode int

const (
	// ModeContent hashes the WindowSize bytes stored at the address.
	ModeContent Mode = iota
	// ModeAddress hashes the address value itself.
	ModeAddress
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeContent || m == ModeAddress
}

func (m Mode) String() string {
	switch m {
	case ModeContent:
		return "content"
	case ModeAddress:
		return "address"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

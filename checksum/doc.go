// Package checksum computes the 16-bit checksums embedded in signed pointer words.
//
// # Algorithms
//
// FNV1a runs a 32-bit FNV-1a accumulator (offset basis 0x811C9DC5, prime
// 0x01000193) over the input and folds the result to 16 bits:
//
//	sum16 = (h >> 16) ^ (h & 0xFFFF)
//
// CRC32C computes CRC32-Castagnoli (hardware accelerated on SSE4.2 and the ARM
// CRC extension) and folds it the same way.
//
// # Modes
//
// A checksum always covers an 8-byte window (WindowSize). Which 8 bytes is the
// Mode:
//
//   - ModeContent hashes the first 8 bytes stored at the address, i.e. the
//     pointee's memory. The checksum changes when the pointee's leading bytes
//     change and does not change when the address is redirected to other memory
//     with identical leading bytes.
//   - ModeAddress hashes the 8 little-endian bytes of the address value itself.
//     Any flipped address bit is detected; pointee writes are not.
//
// A null address always checksums to 0 regardless of mode.
//
// # Usage
//
//	sum := checksum.FNV1a16(window[:])
//	sum := checksum.CRC32C.Sum16(window[:])
//	win := checksum.AddressWindow(addr)
package checksum

// Package word implements the packed 64-bit representation of a signed pointer.
//
// A Word stores three fields in one machine word:
//
//	63            48 47 46                                             0
//	+---------------+--+-----------------------------------------------+
//	|   checksum    |S |                     value                     |
//	+---------------+--+-----------------------------------------------+
//
//   - value (47 bits): the raw address, or 0 for the empty pointer
//   - S (1 bit): set once a checksum has been computed for value
//   - checksum (16 bits): the checksum recorded at signing time
//
// The layout is expressed with explicit shifts and masks; it does not depend
// on any compiler bit-field ordering.
package word

import (
	"fmt"
	"strconv"
)

// Word is a packed (value, signed, checksum) triple.
// Layout: [Checksum:16][Signed:1][Value:47]
type Word uint64

const (
	// ValueBits is the number of bits reserved for the address (canonical user-space range).
	ValueBits = 47
	// SignedBits is the width of the signed flag.
	SignedBits = 1
	// ChecksumBits is the width of the checksum.
	ChecksumBits = 16

	// SignedShift is the bit position of the signed flag.
	SignedShift = ValueBits
	// ChecksumShift is the bit position of the lowest checksum bit.
	ChecksumShift = ValueBits + SignedBits

	// ValueMask extracts the address (0x00007FFFFFFFFFFF).
	ValueMask uint64 = 1<<ValueBits - 1
	// SignedMask extracts the signed flag (0x0000800000000000).
	SignedMask uint64 = 1 << SignedShift
	// ChecksumMask extracts the checksum (0xFFFF000000000000).
	ChecksumMask uint64 = (1<<ChecksumBits - 1) << ChecksumShift

	// MaxValue is the largest address a Word can hold.
	MaxValue = ValueMask
)

// Empty is the signed empty word: value 0, signed, checksum 0.
const Empty = Word(SignedMask)

// FitsValue reports whether v can be stored in the value field without truncation.
func FitsValue(v uint64) bool {
	return v&^ValueMask == 0
}

// Pack builds a word from its fields.
// Bits of value above ValueBits are discarded; use FitsValue to check first.
func Pack(value uint64, signed bool, checksum uint16) Word {
	w := value & ValueMask
	if signed {
		w |= SignedMask
	}
	return Word(w | uint64(checksum)<<ChecksumShift)
}

// Value returns the address field.
func (w Word) Value() uint64 {
	return uint64(w) & ValueMask
}

// Signed reports whether the signed flag is set.
func (w Word) Signed() bool {
	return uint64(w)&SignedMask != 0
}

// Checksum returns the checksum field.
func (w Word) Checksum() uint16 {
	//nolint:gosec // G115: the shift leaves exactly 16 bits.
	return uint16(uint64(w) >> ChecksumShift)
}

// Sign returns w with the signed flag set and the checksum replaced.
// The value field is unchanged.
func (w Word) Sign(checksum uint16) Word {
	return Pack(w.Value(), true, checksum)
}

// IsEmpty reports whether the value field is zero.
func (w Word) IsEmpty() bool {
	return w.Value() == 0
}

// Decode returns all three fields at once.
func (w Word) Decode() (value uint64, signed bool, checksum uint16) {
	return w.Value(), w.Signed(), w.Checksum()
}

// String formats the word as "0x<value>/<s|u>/<checksum>", e.g. "0x7f3a2c001000/s/be1f".
func (w Word) String() string {
	flag := "u"
	if w.Signed() {
		flag = "s"
	}
	return "0x" + strconv.FormatUint(w.Value(), 16) + "/" + flag + "/" + fmt.Sprintf("%04x", w.Checksum())
}

package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFNV1a32(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want uint32
	}{
		{"empty", nil, 0x811c9dc5},
		{"a", []byte("a"), 0xe40c292c},
		{"zero word", make([]byte, WindowSize), 0x9be17165},
		{"counting word", []byte{1, 2, 3, 4, 5, 6, 7, 8}, 0x2804678d},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FNV1a32(tt.in))
		})
	}
}

func TestFold16(t *testing.T) {
	assert.Equal(t, uint16(0x1cd9), Fold16(0x811c9dc5))
	assert.Equal(t, uint16(0), Fold16(0xabcdabcd))
	assert.Equal(t, uint16(0xffff), Fold16(0x0000ffff))
}

func TestFNV1a16(t *testing.T) {
	assert.Equal(t, uint16(0xea84), FNV1a16(make([]byte, WindowSize)))
	assert.Equal(t, uint16(0x4f89), FNV1a16([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
}

func TestCRC32C16(t *testing.T) {
	// CRC32C("123456789") = 0xE3069283
	assert.Equal(t, uint16(0xe306^0x9283), CRC32C16([]byte("123456789")))
}

func TestAddressWindow(t *testing.T) {
	win := AddressWindow(0x7f3a2c001000)
	assert.Equal(t, [WindowSize]byte{0x00, 0x10, 0x00, 0x2c, 0x3a, 0x7f, 0x00, 0x00}, win)
	assert.Equal(t, uint16(0xb79c), FNV1a16(win[:]))
}

func TestAlgorithm(t *testing.T) {
	data := []byte("123456789")
	assert.Equal(t, FNV1a16(data), FNV1a.Sum16(data))
	assert.Equal(t, CRC32C16(data), CRC32C.Sum16(data))
	assert.True(t, FNV1a.Valid())
	assert.True(t, CRC32C.Valid())
	assert.False(t, Algorithm(7).Valid())
	assert.Equal(t, "fnv1a", FNV1a.String())
	assert.Equal(t, "crc32c", CRC32C.String())
	assert.Equal(t, "Algorithm(7)", Algorithm(7).String())
}

func TestMode(t *testing.T) {
	assert.True(t, ModeContent.Valid())
	assert.True(t, ModeAddress.Valid())
	assert.False(t, Mode(-1).Valid())
	assert.Equal(t, "content", ModeContent.String())
	assert.Equal(t, "address", ModeAddress.String())
}

func BenchmarkFNV1a16(b *testing.B) {
	win := AddressWindow(0x7f3a2c001000)
	b.ReportAllocs()
	for b.Loop() {
		_ = FNV1a16(win[:])
	}
}

func BenchmarkCRC32C16(b *testing.B) {
	win := AddressWindow(0x7f3a2c001000)
	b.ReportAllocs()
	for b.Loop() {
		_ = CRC32C16(win[:])
	}
}

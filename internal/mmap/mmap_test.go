package mmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapAnon(t *testing.T) {
	m, err := MapAnon(4096)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 4096, m.Size())
	assert.Len(t, m.Bytes(), 4096)
	assert.NotZero(t, m.Addr())
	assert.False(t, m.Closed())

	// Zero-filled and writable.
	data := m.Bytes()
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d not zero: %d", i, b)
		}
	}
	data[0] = 0xAB
	data[4095] = 0xCD
	assert.Equal(t, byte(0xAB), m.Bytes()[0])
	assert.Equal(t, byte(0xCD), m.Bytes()[4095])
}

func TestMapAnon_InvalidSize(t *testing.T) {
	_, err := MapAnon(0)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = MapAnon(-1)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestMapping_AfterClose(t *testing.T) {
	m, err := MapAnon(4096)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close()) // idempotent

	assert.True(t, m.Closed())
	assert.Nil(t, m.Bytes())
	assert.Zero(t, m.Addr())
}

func TestMapping_StableAddress(t *testing.T) {
	m, err := MapAnon(8192)
	require.NoError(t, err)
	defer m.Close()

	first := m.Addr()
	for i := 0; i < 10; i++ {
		_ = make([]byte, 1<<16) // churn the Go heap
		assert.Equal(t, first, m.Addr())
	}
}

//go:build amd64 || arm64

package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntToUint64(t *testing.T) {
	t.Run("valid zero", func(t *testing.T) {
		got, err := IntToUint64(0)
		assert.NoError(t, err)
		assert.Equal(t, uint64(0), got)
	})

	t.Run("valid max int", func(t *testing.T) {
		got, err := IntToUint64(math.MaxInt)
		assert.NoError(t, err)
		assert.Equal(t, uint64(math.MaxInt), got)
	})

	t.Run("invalid negative", func(t *testing.T) {
		_, err := IntToUint64(-1)
		assert.Error(t, err)
	})
}

func TestIntToUintptr(t *testing.T) {
	got, err := IntToUintptr(64)
	require.NoError(t, err)
	assert.Equal(t, uintptr(64), got)

	_, err = IntToUintptr(-8)
	assert.Error(t, err)
}

func TestIntToInt64(t *testing.T) {
	assert.Equal(t, int64(-3), IntToInt64(-3))
}

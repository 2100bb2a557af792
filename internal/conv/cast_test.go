package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntToUint32(t *testing.T) {
	got, err := IntToUint32(123)
	require.NoError(t, err)
	assert.Equal(t, uint32(123), got)

	_, err = IntToUint32(-1)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = IntToUint32(math.MaxUint32 + 1)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestUint64ToInt(t *testing.T) {
	got, err := Uint64ToInt(42)
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = Uint64ToInt(math.MaxUint64)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestUint64ToUint32(t *testing.T) {
	got, err := Uint64ToUint32(math.MaxUint32)
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), got)

	_, err = Uint64ToUint32(math.MaxUint32 + 1)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestMulInt(t *testing.T) {
	got, err := MulInt(1<<20, 64)
	require.NoError(t, err)
	assert.Equal(t, 64<<20, got)

	got, err = MulInt(0, math.MaxInt)
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = MulInt(math.MaxInt/2, 3)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = MulInt(-1, 3)
	assert.ErrorIs(t, err, ErrOverflow)
}

package keytable

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueKeys(t *testing.T) {
	tbl := New(false)

	require.NoError(t, tbl.Insert(42, 0))
	assert.ErrorIs(t, tbl.Insert(42, 1), ErrDuplicateKey)

	assert.True(t, tbl.Contains(42))
	assert.Equal(t, 1, tbl.Count(42))
	assert.Equal(t, []uint32{0}, tbl.Slots(42, nil))
	assert.Equal(t, uint64(42), tbl.KeyOf(0))
	assert.Equal(t, 1, tbl.Len())

	assert.Equal(t, []uint32{0}, tbl.Remove(42))
	assert.False(t, tbl.Contains(42))
	assert.Empty(t, tbl.Remove(42))
	assert.Zero(t, tbl.Len())
}

func TestMultiKeys(t *testing.T) {
	tbl := New(true)

	require.NoError(t, tbl.Insert(7, 3))
	require.NoError(t, tbl.Insert(7, 1))
	require.NoError(t, tbl.Insert(8, 2))

	assert.Equal(t, 2, tbl.Count(7))
	assert.Equal(t, []uint32{1, 3}, tbl.Slots(7, nil))
	assert.Equal(t, []uint64{7, 8}, tbl.Keys())

	assert.True(t, tbl.Delete(7, 1))
	assert.False(t, tbl.Delete(7, 1))
	assert.Equal(t, []uint32{3}, tbl.Slots(7, nil))
	assert.Equal(t, 2, tbl.Len())
}

func TestNeighbouringKeysDoNotLeak(t *testing.T) {
	tbl := New(true)
	require.NoError(t, tbl.Insert(10, 0))
	require.NoError(t, tbl.Insert(11, 1))

	assert.Equal(t, 1, tbl.Count(10))
	assert.False(t, tbl.Contains(12))
	assert.Empty(t, tbl.Slots(9, nil))
}

func TestRename(t *testing.T) {
	tbl := New(false)
	require.NoError(t, tbl.Insert(1, 0))
	require.NoError(t, tbl.Insert(2, 1))

	n, err := tbl.Rename(1, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, tbl.Contains(1))
	assert.Equal(t, uint64(5), tbl.KeyOf(0))

	_, err = tbl.Rename(5, 2)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	n, err = tbl.Rename(99, 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = tbl.Rename(2, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRenameMultiMerges(t *testing.T) {
	tbl := New(true)
	require.NoError(t, tbl.Insert(1, 0))
	require.NoError(t, tbl.Insert(2, 1))
	require.NoError(t, tbl.Insert(2, 2))

	n, err := tbl.Rename(2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uint32{0, 1, 2}, tbl.Slots(1, nil))
	assert.Equal(t, 3, tbl.Len())
}

func TestReverseGrowsAcrossSegments(t *testing.T) {
	tbl := New(false)
	require.NoError(t, tbl.Insert(123, 100_000))
	assert.Equal(t, uint64(123), tbl.KeyOf(100_000))
	assert.Zero(t, tbl.KeyOf(200_000))
}

func TestReset(t *testing.T) {
	tbl := New(false)
	require.NoError(t, tbl.Insert(1, 0))
	tbl.Reset()

	assert.Zero(t, tbl.Len())
	assert.False(t, tbl.Contains(1))
	assert.Empty(t, tbl.Keys())
}

func TestConcurrentInsertSameKey(t *testing.T) {
	tbl := New(false)
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(slot uint32) {
			defer wg.Done()
			if tbl.Insert(9, slot) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(uint32(i))
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, tbl.Len())
}

func TestBound(t *testing.T) {
	tbl := New(false)
	require.NoError(t, tbl.Insert(7, 3))
	assert.True(t, tbl.Bound(3))

	_, err := tbl.Rename(7, 8)
	require.NoError(t, err)
	assert.True(t, tbl.Bound(3))

	assert.Equal(t, []uint32{3}, tbl.Remove(8))
	assert.False(t, tbl.Bound(3))
	assert.False(t, tbl.Bound(1000))

	require.NoError(t, tbl.Insert(8, 3))
	assert.True(t, tbl.Delete(8, 3))
	assert.False(t, tbl.Bound(3))
}

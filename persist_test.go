package usearch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dluc/usearch/blobstore"
	"github.com/dluc/usearch/distance"
	"github.com/dluc/usearch/persistence"
	"github.com/dluc/usearch/scalar"
)

func exactKeys(t *testing.T, r Reader, queries [][]float32, k int) [][]Key {
	t.Helper()
	out := make([][]Key, len(queries))
	for i, q := range queries {
		m, err := r.SearchBuffer(scalar.F32s(q), SearchOptions{Count: k, Exact: true})
		require.NoError(t, err)
		out[i] = m.Keys
	}
	return out
}

func TestIndex_SaveLoad(t *testing.T) {
	cfg := l2Config(8)
	cfg.Path = filepath.Join(t.TempDir(), "index.usearch")
	idx := newTestIndex(t, cfg)
	fill(t, idx, randomVectors(200, 8, 10))
	_, err := idx.Remove(3)
	require.NoError(t, err)

	require.NoError(t, idx.Save(""))

	meta, ok := ReadMetadata(cfg.Path)
	require.True(t, ok)
	assert.Equal(t, 8, meta.Dimensions)
	assert.Equal(t, distance.L2sq, meta.Metric)
	assert.Equal(t, scalar.F32, meta.Scalar)
	assert.Equal(t, 199, meta.Count)
	assert.Equal(t, 1, meta.Removed)

	fi, err := os.Stat(cfg.Path)
	require.NoError(t, err)
	assert.Equal(t, fi.Size(), meta.SerializedLength)
	assert.Equal(t, fi.Size(), idx.SerializedLength())

	loaded := newTestIndex(t, DefaultConfig(3))
	require.NoError(t, loaded.Load(cfg.Path))
	assert.Equal(t, 8, loaded.Dimensions())
	assert.Equal(t, distance.L2sq, loaded.Metric())
	assert.Equal(t, idx.Len(), loaded.Len())
	assert.Equal(t, idx.Keys(), loaded.Keys())
	assert.False(t, loaded.Contains(3))

	queries := randomVectors(20, 8, 11)
	assert.Equal(t, exactKeys(t, idx, queries, 5), exactKeys(t, loaded, queries, 5))

	got, err := loaded.Get(10)
	require.NoError(t, err)
	want, err := idx.Get(10)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, loaded.Add(1000, queries[0]))
	m, err := loaded.Search(queries[0], 1)
	require.NoError(t, err)
	assert.Equal(t, []Key{1000}, m.Keys)
}

func TestIndex_SaveLoadCompressed(t *testing.T) {
	for _, c := range []persistence.Compression{persistence.CompressionZstd, persistence.CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			cfg := l2Config(8)
			cfg.Compression = c
			idx := newTestIndex(t, cfg)
			fill(t, idx, randomVectors(100, 8, 12))

			data, err := idx.SaveBuffer()
			require.NoError(t, err)

			loaded := newTestIndex(t, l2Config(8))
			require.NoError(t, loaded.LoadBuffer(data))
			queries := randomVectors(10, 8, 13)
			assert.Equal(t, exactKeys(t, idx, queries, 3), exactKeys(t, loaded, queries, 3))
		})
	}
}

func TestIndex_LoadCorrupt(t *testing.T) {
	idx := newTestIndex(t, l2Config(8))
	fill(t, idx, randomVectors(50, 8, 14))
	data, err := idx.SaveBuffer()
	require.NoError(t, err)

	target := newTestIndex(t, l2Config(8))
	fill(t, target, randomVectors(5, 8, 15))

	t.Run("Truncated", func(t *testing.T) {
		err := target.LoadBuffer(data[:len(data)-10])
		assert.ErrorIs(t, err, ErrCorruptPersistedState)
		assert.Equal(t, 5, target.Len())
	})

	t.Run("Flipped", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)-1] ^= 0xFF
		err := target.LoadBuffer(bad)
		assert.ErrorIs(t, err, ErrCorruptPersistedState)
		assert.True(t, IsCorrupt(err))
		assert.Equal(t, 5, target.Len())
	})

	t.Run("Garbage", func(t *testing.T) {
		err := target.LoadBuffer([]byte("definitely not an index"))
		assert.ErrorIs(t, err, ErrCorruptPersistedState)
	})
}

func TestMetadata(t *testing.T) {
	dir := t.TempDir()

	_, ok := ReadMetadata(filepath.Join(dir, "missing"))
	assert.False(t, ok)

	junk := filepath.Join(dir, "junk")
	require.NoError(t, os.WriteFile(junk, []byte("junk"), 0o644))
	_, ok = ReadMetadata(junk)
	assert.False(t, ok)

	_, ok = MetadataBuffer(nil)
	assert.False(t, ok)
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.usearch")

	r, ok, err := Restore(path, false)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, r)

	idx := newTestIndex(t, l2Config(8))
	fill(t, idx, randomVectors(30, 8, 16))
	require.NoError(t, idx.Save(path))

	r, ok, err = Restore(path, false)
	require.NoError(t, err)
	require.True(t, ok)
	_, mutable := r.(*Index)
	assert.True(t, mutable)
	assert.Equal(t, 30, r.Len())

	r, ok, err = Restore(path, true)
	require.NoError(t, err)
	require.True(t, ok)
	v, isView := r.(*View)
	require.True(t, isView)
	assert.Equal(t, 30, v.Len())
	require.NoError(t, v.Close())
}

func TestView(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.usearch")
	idx := newTestIndex(t, l2Config(8))
	vecs := randomVectors(100, 8, 17)
	fill(t, idx, vecs)
	require.NoError(t, idx.Save(path))

	v, err := OpenView(path)
	require.NoError(t, err)

	var r Reader = v
	assert.Equal(t, 100, r.Len())
	m, err := r.SearchBuffer(scalar.F32s(vecs[42]), SearchOptions{Count: 1})
	require.NoError(t, err)
	assert.Equal(t, []Key{42}, m.Keys)
	assert.True(t, v.Specs().ReadOnly)

	t.Run("GraphRejectsMutation", func(t *testing.T) {
		err := v.add(nil, 500, scalar.F32s(vecs[0]), false)
		assert.ErrorIs(t, err, ErrConcurrencyViolation)
		_, err = v.remove(1)
		assert.ErrorIs(t, err, ErrConcurrencyViolation)
	})

	t.Run("Clone", func(t *testing.T) {
		c, err := v.Clone()
		require.NoError(t, err)
		require.NoError(t, c.Add(500, vecs[0]))
		assert.Equal(t, 101, c.Len())
		assert.Equal(t, 100, v.Len())
	})

	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
	_, err = v.Search(vecs[0], 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestView_Compressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.usearch")
	cfg := l2Config(8)
	cfg.Compression = persistence.CompressionZstd
	idx := newTestIndex(t, cfg)
	fill(t, idx, randomVectors(20, 8, 18))
	require.NoError(t, idx.Save(path))

	_, err := OpenView(path)
	assert.ErrorIs(t, err, persistence.ErrCompressed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	v, err := ViewBuffer(data)
	require.NoError(t, err)
	assert.Equal(t, 20, v.Len())
	require.NoError(t, v.Close())
}

func TestIndex_SaveToLoadFrom(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	idx := newTestIndex(t, l2Config(8))
	fill(t, idx, randomVectors(60, 8, 19))
	require.NoError(t, idx.SaveTo(ctx, store, "snap-1"))
	require.NoError(t, blobstore.Commit(ctx, store, "snap-1"))

	name, err := blobstore.Current(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "snap-1", name)

	meta, ok := MetadataFrom(ctx, store, name)
	require.True(t, ok)
	assert.Equal(t, 60, meta.Count)

	_, ok = MetadataFrom(ctx, store, "missing")
	assert.False(t, ok)

	loaded := newTestIndex(t, l2Config(8))
	require.NoError(t, loaded.LoadFrom(ctx, store, name))
	queries := randomVectors(10, 8, 20)
	assert.Equal(t, exactKeys(t, idx, queries, 3), exactKeys(t, loaded, queries, 3))

	err = loaded.LoadFrom(ctx, store, "missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	assert.Equal(t, 60, loaded.Len())
}

func TestIndex_SaveToLocalStore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocalStore(t.TempDir())

	idx := newTestIndex(t, l2Config(8))
	fill(t, idx, randomVectors(40, 8, 21))
	require.NoError(t, idx.SaveTo(ctx, store, "snapshots/a.usearch"))

	names, err := store.List(ctx, "snapshots/")
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/a.usearch"}, names)

	loaded := newTestIndex(t, l2Config(8))
	require.NoError(t, loaded.LoadFrom(ctx, store, "snapshots/a.usearch"))
	assert.Equal(t, 40, loaded.Len())
}

package usearch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dluc/usearch/scalar"
)

func TestIndex_Cluster(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, l2Config(8))
	fill(t, idx, randomVectors(500, 8, 40))
	require.GreaterOrEqual(t, idx.MaxLevel(), 1)

	c, err := idx.Cluster(ctx, ClusterOptions{MinCount: 2})
	require.NoError(t, err)
	require.Len(t, c.Members, 500)
	require.Len(t, c.Centroids, 500)
	assert.GreaterOrEqual(t, c.Level, 1)

	total := 0
	pop := c.CentroidsPopularity()
	for i, p := range pop {
		assert.True(t, idx.Contains(p.Centroid))
		assert.Len(t, c.MembersOf(p.Centroid), p.Members)
		if i > 0 {
			assert.LessOrEqual(t, p.Members, pop[i-1].Members)
		}
		total += p.Members
	}
	assert.Equal(t, 500, total)
	assert.GreaterOrEqual(t, len(pop), 2)

	t.Run("MaxCount", func(t *testing.T) {
		capped, err := idx.Cluster(ctx, ClusterOptions{MinCount: 2, MaxCount: 3})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(capped.CentroidsPopularity()), 3)
		assert.Len(t, capped.Members, 500)
	})

	t.Run("Subcluster", func(t *testing.T) {
		top := pop[0].Centroid
		sub, err := c.Subcluster(ctx, top, ClusterOptions{})
		require.NoError(t, err)
		assert.Equal(t, c.Level-1, sub.Level)
		assert.ElementsMatch(t, c.MembersOf(top), sub.Members)

		_, err = c.Subcluster(ctx, 1<<40, ClusterOptions{})
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("Keys", func(t *testing.T) {
		sel, err := idx.Cluster(ctx, ClusterOptions{Keys: []Key{1, 2, 3, 9999}})
		require.NoError(t, err)
		assert.Equal(t, []Key{1, 2, 3}, sel.Members)
	})
}

func TestIndex_ClusterVectors(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, l2Config(8))
	fill(t, idx, randomVectors(300, 8, 41))

	vecs := randomVectors(20, 8, 42)
	bufs := make([]scalar.Buffer, len(vecs))
	for i, v := range vecs {
		bufs[i] = scalar.F32s(v)
	}
	c, err := idx.Cluster(ctx, ClusterOptions{Vectors: bufs})
	require.NoError(t, err)
	require.Len(t, c.Members, 20)
	for i, m := range c.Members {
		assert.Equal(t, Key(i), m)
	}

	centroid := c.CentroidsPopularity()[0].Centroid
	sub, err := c.Subcluster(ctx, centroid, ClusterOptions{})
	require.NoError(t, err)
	assert.Equal(t, c.MembersOf(centroid), sub.Members)
}

func TestIndex_ClusterEmpty(t *testing.T) {
	idx := newTestIndex(t, l2Config(8))
	c, err := idx.Cluster(context.Background(), ClusterOptions{})
	require.NoError(t, err)
	assert.Empty(t, c.Members)
	assert.Empty(t, c.CentroidsPopularity())
}

func TestClustering_KeepAssigned(t *testing.T) {
	vecs := []scalar.Buffer{
		scalar.F32s([]float32{0}), scalar.F32s([]float32{1}),
		scalar.F32s([]float32{2}), scalar.F32s([]float32{3}),
	}
	orig := append([]scalar.Buffer(nil), vecs...)
	c := &Clustering{
		Members:   []Key{10, 11, 12, 13},
		Centroids: make([]Key, 4),
		Distances: []float32{0.1, 0.2, 0.3, 0.4},
	}

	queries, slots := c.keepAssigned([]bool{true, false, true, false}, vecs, []uint32{5, 6, 7, 8})
	assert.Equal(t, []Key{10, 12}, c.Members)
	assert.Equal(t, []float32{0.1, 0.3}, c.Distances)
	assert.Len(t, c.Centroids, 2)
	assert.Equal(t, []uint32{5, 7}, slots)
	require.Len(t, queries, 2)
	assert.Equal(t, float32(2), queries[1].Float32s()[0])
	assert.Equal(t, orig, vecs, "caller vectors must keep their order")
}

func TestIndex_ClusterAfterRemove(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, l2Config(8))
	fill(t, idx, randomVectors(400, 8, 43))

	keys := make([]Key, 0, 360)
	for k := range Key(360) {
		keys = append(keys, k)
	}
	_, err := idx.RemoveBatch(ctx, keys, RemoveOptions{})
	require.NoError(t, err)

	c, err := idx.Cluster(ctx, ClusterOptions{MinCount: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(c.Members), 40)
	for _, centroid := range c.Centroids {
		assert.True(t, idx.Contains(centroid))
	}

	bufs := make([]scalar.Buffer, 0, 10)
	for _, v := range randomVectors(10, 8, 44) {
		bufs = append(bufs, scalar.F32s(v))
	}
	byValue, err := idx.Cluster(ctx, ClusterOptions{Vectors: bufs})
	require.NoError(t, err)
	assert.Len(t, byValue.Centroids, len(byValue.Members))
}

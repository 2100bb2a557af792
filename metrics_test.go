package usearch

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dluc/usearch/scalar"
)

func TestBasicMetricsCollector(t *testing.T) {
	mc := &BasicMetricsCollector{}
	idx := newTestIndex(t, l2Config(4), WithMetricsCollector(mc))

	require.NoError(t, idx.Add(1, []float32{1, 0, 0, 0}))
	require.NoError(t, idx.Add(2, []float32{0, 1, 0, 0}))
	assert.ErrorIs(t, idx.Add(1, []float32{0, 0, 1, 0}), ErrDuplicateKey)

	_, err := idx.Search([]float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	_, err = idx.Search([]float32{1, 0}, 1)
	require.Error(t, err)

	_, err = idx.Remove(2)
	require.NoError(t, err)

	st := mc.Snapshot()
	assert.Equal(t, int64(3), st.AddCount)
	assert.Equal(t, int64(1), st.AddFailed)
	assert.Equal(t, int64(2), st.SearchCount)
	assert.Equal(t, int64(1), st.SearchErrors)
	assert.Positive(t, st.ComputedDistances)
	assert.Equal(t, int64(1), st.RemoveCount)
}

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	pc := NewPrometheusCollector(reg, "test")
	idx := newTestIndex(t, l2Config(4), WithMetricsCollector(pc))

	bufs := []scalar.Buffer{
		scalar.F32s([]float32{1, 0, 0, 0}),
		scalar.F32s([]float32{0, 1, 0, 0}),
		scalar.F32s([]float32{0, 1}),
	}
	res, err := idx.AddBatch(context.Background(), nil, bufs, AddOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed())

	_, err = idx.SearchBatch(context.Background(), bufs[:2], SearchOptions{Count: 1})
	require.NoError(t, err)

	assert.InDelta(t, 2, testutil.ToFloat64(pc.adds.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pc.adds.WithLabelValues("error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pc.searches.WithLabelValues("ok")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(pc.searchQueries), 0)

	n, err := testutil.GatherAndCount(reg, "test_add_total", "test_search_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	idx := newTestIndex(t, l2Config(4), WithLogger(logger.With("component", "test")))

	require.NoError(t, idx.Add(1, []float32{1, 0, 0, 0}))
	_ = idx.Add(1, []float32{1, 0, 0, 0})

	out := buf.String()
	assert.Contains(t, out, `"msg":"add completed"`)
	assert.Contains(t, out, `"msg":"add failed"`)
	assert.Contains(t, out, `"component":"test"`)

	silent := newTestIndex(t, l2Config(4), WithLogger(nil))
	require.NoError(t, silent.Add(1, []float32{1, 0, 0, 0}))
}

func TestIndex_MemoryLimit(t *testing.T) {
	idx := newTestIndex(t, l2Config(8), WithMemoryLimit(1024))
	err := idx.Add(1, make([]float32, 8))
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 0, idx.Len())
	assert.False(t, idx.Contains(1))
}

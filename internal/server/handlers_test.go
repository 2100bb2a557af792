package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dluc/usearch"
	"github.com/dluc/usearch/distance"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestServer(t *testing.T) (*Server, *usearch.Index) {
	t.Helper()

	cfg := usearch.DefaultConfig(3)
	cfg.Metric = distance.L2sq
	cfg.Path = filepath.Join(t.TempDir(), "index.usearch")

	reg := prometheus.NewRegistry()
	idx, err := usearch.New(cfg,
		usearch.WithRandomSeed(7),
		usearch.WithMetricsCollector(usearch.NewPrometheusCollector(reg, "test")),
	)
	require.NoError(t, err)

	return New(idx, WithGatherer(reg)), idx
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func TestHandleHealthCheck(t *testing.T) {
	s, _ := setupTestServer(t)

	w := do(t, s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandleAddVector(t *testing.T) {
	s, idx := setupTestServer(t)

	w := do(t, s, http.MethodPost, "/v1/vectors", AddVectorRequest{Key: 7, Vector: []float32{1, 2, 3}})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, idx.Contains(7))

	// Duplicate key
	w = do(t, s, http.MethodPost, "/v1/vectors", AddVectorRequest{Key: 7, Vector: []float32{1, 2, 3}})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Wrong dimensions
	w = do(t, s, http.MethodPost, "/v1/vectors", AddVectorRequest{Key: 8, Vector: []float32{1, 2}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing vector
	w = do(t, s, http.MethodPost, "/v1/vectors", map[string]any{"key": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAddBatch(t *testing.T) {
	s, idx := setupTestServer(t)

	w := do(t, s, http.MethodPost, "/v1/vectors/batch", AddBatchRequest{
		Keys:    []usearch.Key{1, 2, 3},
		Vectors: [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp AddBatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Added)
	assert.Len(t, resp.Errors, 1)
	assert.Equal(t, 2, idx.Len())

	w = do(t, s, http.MethodPost, "/v1/vectors/batch", AddBatchRequest{
		Keys:    []usearch.Key{4},
		Vectors: [][]float32{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetDeleteVector(t *testing.T) {
	s, idx := setupTestServer(t)
	require.NoError(t, idx.Add(5, []float32{1, 2, 3}))

	w := do(t, s, http.MethodGet, "/v1/vectors/5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got GetVectorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, usearch.Key(5), got.Key)
	assert.Equal(t, [][]float32{{1, 2, 3}}, got.Vectors)

	w = do(t, s, http.MethodGet, "/v1/vectors/6", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/v1/vectors/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodDelete, "/v1/vectors/5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":1}`, w.Body.String())
	assert.False(t, idx.Contains(5))

	w = do(t, s, http.MethodDelete, "/v1/vectors/5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":0}`, w.Body.String())
}

func TestHandleSearch(t *testing.T) {
	s, idx := setupTestServer(t)
	for i := 1; i <= 3; i++ {
		require.NoError(t, idx.Add(usearch.Key(i), []float32{float32(i), 0, 0}))
	}

	w := do(t, s, http.MethodPost, "/v1/search", SearchRequest{Vector: []float32{0, 0, 0}, Count: 2})
	require.Equal(t, http.StatusOK, w.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []usearch.Key{1, 2}, resp.Keys)
	assert.InDeltaSlice(t, []float32{1, 4}, resp.Distances, 1e-6)

	w = do(t, s, http.MethodPost, "/v1/search", SearchRequest{Vector: []float32{0, 0, 0}, Exact: true, Radius: 5})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []usearch.Key{1, 2}, resp.Keys)

	w = do(t, s, http.MethodPost, "/v1/search", SearchRequest{Vector: []float32{0, 0, 0}, Count: -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/v1/search", SearchRequest{Vector: []float32{0}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSpecsAndStats(t *testing.T) {
	s, idx := setupTestServer(t)
	require.NoError(t, idx.Add(1, []float32{1, 2, 3}))

	w := do(t, s, http.MethodGet, "/v1/specs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var specs usearch.Specs
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &specs))
	assert.Equal(t, 3, specs.Dimensions)
	assert.Equal(t, "l2sq", specs.Metric)
	assert.Equal(t, 1, specs.Size)

	w = do(t, s, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats usearch.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Nodes)
}

func TestHandleCompactAndSave(t *testing.T) {
	s, idx := setupTestServer(t)
	require.NoError(t, idx.Add(1, []float32{1, 2, 3}))
	require.NoError(t, idx.Add(2, []float32{3, 2, 1}))
	_, err := idx.Remove(1)
	require.NoError(t, err)

	w := do(t, s, http.MethodPost, "/v1/compact", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"size":1}`, w.Body.String())

	w = do(t, s, http.MethodPost, "/v1/save", nil)
	require.Equal(t, http.StatusOK, w.Code)

	path := filepath.Join(t.TempDir(), "copy.usearch")
	w = do(t, s, http.MethodPost, "/v1/save", SaveRequest{Path: path})
	require.Equal(t, http.StatusOK, w.Code)

	meta, ok := usearch.ReadMetadata(path)
	require.True(t, ok)
	assert.Equal(t, 1, meta.Count)
	assert.Equal(t, 3, meta.Dimensions)
}

func TestHandleMetrics(t *testing.T) {
	s, idx := setupTestServer(t)
	require.NoError(t, idx.Add(1, []float32{1, 2, 3}))

	w := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "test_add_total"))
}

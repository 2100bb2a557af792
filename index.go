package usearch

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/dluc/usearch/distance"
	"github.com/dluc/usearch/internal/hnsw"
	"github.com/dluc/usearch/internal/keytable"
	"github.com/dluc/usearch/internal/mmap"
	"github.com/dluc/usearch/internal/resource"
	"github.com/dluc/usearch/internal/searcher"
	"github.com/dluc/usearch/internal/vectorstore"
	"github.com/dluc/usearch/scalar"
)

// Key identifies one vector, or several in multi mode.
type Key = uint64

// Reader is the read-only surface shared by Index and View.
type Reader interface {
	Dimensions() int
	ScalarKind() scalar.Kind
	Metric() distance.Kind
	ExpansionSearch() int
	Len() int
	Keys() []Key
	Contains(key Key) bool
	GetAs(key Key, kind scalar.Kind) ([]scalar.Buffer, error)
	SearchBuffer(query scalar.Buffer, opts SearchOptions) (*Matches, error)
}

// Index is a mutable approximate nearest neighbor index. All methods are
// safe for concurrent use; Compact, Clear, Reset and the Load methods wait
// for every other call to finish.
type Index struct {
	*base
}

var (
	_ Reader = (*Index)(nil)
	_ Reader = (*View)(nil)
)

// base holds the state shared by Index and View. mu is held shared by
// ordinary calls and exclusively while the parts are swapped or compacted.
type base struct {
	mu sync.RWMutex

	cfg      Config
	opts     options
	compiled *distance.CompiledMetric
	dist     distance.Func

	rc      *resource.Controller
	vectors *vectorstore.Store
	keys    *keytable.Table
	graph   *hnsw.HNSW

	threadsAdd    atomic.Int64
	threadsSearch atomic.Int64

	readOnly bool
	mapping  *mmap.Mapping
	closed   atomic.Bool
}

// New creates an empty index.
func New(cfg Config, opts ...Option) (*Index, error) {
	b, err := newBase(cfg, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	return &Index{base: b}, nil
}

func newBase(cfg Config, o options) (*base, error) {
	cfg = cfg.normalize()
	if o.compiled != nil {
		cfg.Metric = distance.External
	}
	if o.seed != nil {
		cfg.Seed = o.seed
	}
	if o.memLimit > 0 {
		cfg.MemoryLimit = o.memLimit
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dist, err := resolveMetric(cfg, o.compiled)
	if err != nil {
		return nil, err
	}

	b := &base{
		cfg:      cfg,
		opts:     o,
		compiled: o.compiled,
		dist:     dist,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:   cfg.MemoryLimit,
			IOLimitBytesPerSec: o.ioLimit,
		}),
	}
	b.threadsAdd.Store(int64(cfg.ThreadsAdd))
	b.threadsSearch.Store(int64(cfg.ThreadsSearch))
	if err := b.build(); err != nil {
		return nil, err
	}
	return b, nil
}

// build creates empty parts for the current configuration.
func (b *base) build() error {
	vectors, keys, graph, err := b.parts(b.cfg, b.dist)
	if err != nil {
		return err
	}
	b.vectors, b.keys, b.graph = vectors, keys, graph
	return nil
}

func (b *base) parts(cfg Config, dist distance.Func) (*vectorstore.Store, *keytable.Table, *hnsw.HNSW, error) {
	vectors := vectorstore.New(cfg.Scalar, cfg.Dimensions, b.rc)
	graph, err := hnsw.New(vectors, dist, func(o *hnsw.Options) {
		o.M = cfg.Connectivity
		o.EF = cfg.ExpansionAdd
		o.EFSearch = cfg.ExpansionSearch
		o.RandomSeed = cfg.Seed
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return vectors, keytable.New(cfg.Multi), graph, nil
}

func resolveMetric(cfg Config, compiled *distance.CompiledMetric) (distance.Func, error) {
	if cfg.Metric == distance.External {
		if compiled == nil {
			return nil, fmt.Errorf("%w: external metric without a compiled function", ErrInvalidConfiguration)
		}
		fn, err := distance.ResolveCompiled(*compiled, cfg.Dimensions)
		return fn, translateError(err)
	}
	fn, err := distance.Resolve(cfg.Metric, cfg.Scalar, cfg.Dimensions)
	return fn, translateError(err)
}

// check fails once a view is closed.
func (b *base) check() error {
	if b.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (b *base) checkDims(buf scalar.Buffer) error {
	if buf.Dims != b.cfg.Dimensions {
		return &ErrDimensionMismatch{Expected: b.cfg.Dimensions, Actual: buf.Dims}
	}
	return buf.Validate()
}

// prepareQuery returns q in the stored scalar kind, using s.Query as scratch.
func (b *base) prepareQuery(s *searcher.Searcher, q scalar.Buffer) ([]byte, error) {
	if err := b.checkDims(q); err != nil {
		return nil, err
	}
	kind, n := b.vectors.Kind(), b.vectors.VectorBytes()
	if q.Kind == kind && isAligned(q.Data) {
		return q.Data[:n], nil
	}
	if cap(s.Query) < n {
		s.Query = alignedBytes(n)
	}
	s.Query = s.Query[:n]
	if err := scalar.Cast(s.Query, kind, q); err != nil {
		return nil, err
	}
	return s.Query, nil
}

func (b *base) threads(n int, def *atomic.Int64) int {
	if n > 0 {
		return n
	}
	return resource.Threads(int(def.Load()))
}

// Dimensions returns the vector length.
func (b *base) Dimensions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.Dimensions
}

// ScalarKind returns the storage precision.
func (b *base) ScalarKind() scalar.Kind {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.Scalar
}

// Metric returns the active metric kind; External for compiled metrics.
func (b *base) Metric() distance.Kind {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.Metric
}

// Multi reports whether keys may own several vectors.
func (b *base) Multi() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.Multi
}

// Connectivity returns the upper-layer neighbor bound.
func (b *base) Connectivity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.Connectivity
}

// ExpansionAdd returns the insertion candidate list width.
func (b *base) ExpansionAdd() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graph.ExpansionAdd()
}

// ExpansionSearch returns the default search candidate list width.
func (b *base) ExpansionSearch() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graph.ExpansionSearch()
}

// Len returns the number of live vectors.
func (b *base) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graph.Len()
}

// Capacity returns the number of slots addressable without growing.
func (b *base) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.vectors.Capacity()
}

// MemoryUsage returns the bytes held by vectors and graph links.
func (b *base) MemoryUsage() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.vectors.MemoryUsage() + b.graph.MemoryUsage()
}

// MaxLevel returns the top graph level, or -1 when empty.
func (b *base) MaxLevel() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graph.MaxLevel()
}

// Contains reports whether key has at least one vector.
func (b *base) Contains(key Key) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.keys.Contains(key)
}

// Count returns how many vectors key owns.
func (b *base) Count(key Key) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.keys.Count(key)
}

// Keys returns the distinct keys in ascending order.
func (b *base) Keys() []Key {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.keys.Keys()
}

// KeyAt returns the key of the offset-th live vector in storage order.
func (b *base) KeyAt(offset int) (Key, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if offset >= 0 {
		slots := b.graph.Slots()
		for slot := uint32(0); slot < slots; slot++ {
			if !b.graph.Live(slot) {
				continue
			}
			if offset == 0 {
				return b.keys.KeyOf(slot), nil
			}
			offset--
		}
	}
	return 0, fmt.Errorf("%w: offset out of range", ErrKeyNotFound)
}

// Get returns the vectors of key as float32. An absent key yields no vectors.
func (b *base) Get(key Key) ([][]float32, error) {
	bufs, err := b.GetAs(key, scalar.F32)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(bufs))
	for i, buf := range bufs {
		out[i] = buf.Float32s()
	}
	return out, nil
}

// GetAs returns copies of the vectors of key converted to kind.
func (b *base) GetAs(key Key, kind scalar.Kind) ([]scalar.Buffer, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	slots := b.keys.Slots(key, nil)
	if len(slots) == 0 {
		return nil, nil
	}
	out := make([]scalar.Buffer, 0, len(slots))
	for _, slot := range slots {
		data, ok := b.vectors.Get(slot)
		if !ok {
			continue
		}
		buf, err := scalar.Convert(kind, scalar.Buffer{Kind: b.cfg.Scalar, Dims: b.cfg.Dimensions, Data: data})
		if err != nil {
			return nil, err
		}
		out = append(out, buf)
	}
	return out, nil
}

// PairwiseDistance returns the distance between two stored keys. In multi
// mode the closest pair of their vectors counts.
func (b *base) PairwiseDistance(a, c Key) (float32, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	left, right := b.keys.Slots(a, nil), b.keys.Slots(c, nil)
	if len(left) == 0 || len(right) == 0 {
		return 0, ErrKeyNotFound
	}
	best := float32(math.MaxFloat32)
	for _, i := range left {
		vi, ok := b.vectors.Get(i)
		if !ok {
			continue
		}
		for _, j := range right {
			if vj, ok := b.vectors.Get(j); ok {
				best = min(best, b.dist(vi, vj))
			}
		}
	}
	return best, nil
}

// LevelStats describes one graph level.
type LevelStats struct {
	Nodes          int
	Edges          int
	MaxEdges       int
	AllocatedBytes int64
}

// Stats aggregates the graph.
type Stats struct {
	Nodes          int
	Removed        int
	Edges          int
	MaxEdges       int
	AllocatedBytes int64
	Levels         []LevelStats
}

func levelStats(st hnsw.LevelStats) LevelStats {
	return LevelStats{Nodes: st.Nodes, Edges: st.Edges, MaxEdges: st.MaxEdges, AllocatedBytes: st.AllocatedBytes}
}

// Stats walks the graph and reports node and edge counts per level.
func (b *base) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := b.graph.Stats()
	out := Stats{
		Nodes:          st.Nodes,
		Removed:        st.Removed,
		Edges:          st.Edges,
		MaxEdges:       st.MaxEdges,
		AllocatedBytes: st.AllocatedBytes,
		Levels:         make([]LevelStats, len(st.Levels)),
	}
	for i, l := range st.Levels {
		out.Levels[i] = levelStats(l)
	}
	return out
}

// LevelStats reports a single level.
func (b *base) LevelStats(level int) LevelStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return levelStats(b.graph.LevelStats(level))
}

// Specs summarizes the index configuration and size.
type Specs struct {
	Dimensions           int    `json:"dimensions"`
	Metric               string `json:"metric"`
	Scalar               string `json:"scalar"`
	Connectivity         int    `json:"connectivity"`
	ExpansionAdd         int    `json:"expansion_add"`
	ExpansionSearch      int    `json:"expansion_search"`
	Multi                bool   `json:"multi"`
	Size                 int    `json:"size"`
	Capacity             int    `json:"capacity"`
	MemoryUsage          int64  `json:"memory_usage"`
	MaxLevel             int    `json:"max_level"`
	ReadOnly             bool   `json:"read_only"`
	HardwareAcceleration string `json:"hardware_acceleration"`
}

// Specs returns a summary of the index.
func (b *base) Specs() Specs {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Specs{
		Dimensions:           b.cfg.Dimensions,
		Metric:               b.cfg.Metric.String(),
		Scalar:               b.cfg.Scalar.String(),
		Connectivity:         b.cfg.Connectivity,
		ExpansionAdd:         b.graph.ExpansionAdd(),
		ExpansionSearch:      b.graph.ExpansionSearch(),
		Multi:                b.cfg.Multi,
		Size:                 b.graph.Len(),
		Capacity:             b.vectors.Capacity(),
		MemoryUsage:          b.vectors.MemoryUsage() + b.graph.MemoryUsage(),
		MaxLevel:             b.graph.MaxLevel(),
		ReadOnly:             b.readOnly,
		HardwareAcceleration: distance.HardwareAcceleration(),
	}
}

// HardwareAcceleration names the CPU features the distance kernels can use.
func (b *base) HardwareAcceleration() string {
	return distance.HardwareAcceleration()
}

// ChangeMetric switches to a built-in metric. Existing links are kept.
func (x *Index) ChangeMetric(kind distance.Kind) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	cfg := x.cfg
	cfg.Metric = kind
	if kind == distance.External {
		return fmt.Errorf("%w: use ChangeCompiledMetric for external metrics", ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fn, err := resolveMetric(cfg, nil)
	if err != nil {
		return err
	}
	x.cfg, x.compiled, x.dist = cfg, nil, fn
	x.graph.SetDistance(fn)
	return nil
}

// ChangeCompiledMetric switches to an external metric. Existing links are kept.
func (x *Index) ChangeCompiledMetric(m distance.CompiledMetric) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	cfg := x.cfg
	cfg.Metric = distance.External
	fn, err := resolveMetric(cfg, &m)
	if err != nil {
		return err
	}
	x.cfg, x.compiled, x.dist = cfg, &m, fn
	x.graph.SetDistance(fn)
	return nil
}

// ChangeExpansionAdd sets the insertion candidate list width.
func (x *Index) ChangeExpansionAdd(ef int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.graph.SetExpansionAdd(ef)
	x.cfg.ExpansionAdd = x.graph.ExpansionAdd()
}

// ChangeExpansionSearch sets the default search candidate list width.
func (x *Index) ChangeExpansionSearch(ef int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.graph.SetExpansionSearch(ef)
	x.cfg.ExpansionSearch = x.graph.ExpansionSearch()
}

// ChangeThreadsAdd sets the default worker count of AddBatch; 0 means all cores.
func (x *Index) ChangeThreadsAdd(n int) { x.threadsAdd.Store(int64(max(n, 0))) }

// ChangeThreadsSearch sets the default worker count of SearchBatch; 0 means all cores.
func (x *Index) ChangeThreadsSearch(n int) { x.threadsSearch.Store(int64(max(n, 0))) }

// Reserve makes room for n vectors.
func (x *Index) Reserve(n int) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	x.vectors.Reserve(n)
}

// Compact unlinks removed vectors from the graph and repacks vector storage.
func (x *Index) Compact(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.compactLocked(ctx)
}

func (b *base) compactLocked(ctx context.Context) error {
	if b.readOnly {
		return ErrConcurrencyViolation
	}
	removed := b.graph.RemovedSet()
	if err := b.graph.Isolate(ctx, b.threads(0, &b.threadsAdd)); err != nil {
		return translateError(err)
	}
	b.graph.Drop(removed)
	return translateError(b.vectors.Compact(int(b.graph.Slots()), b.graph.Live))
}

// Clear removes every vector but keeps the reserved capacity and configuration.
func (x *Index) Clear() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.graph.Reset(); err != nil {
		return translateError(err)
	}
	x.keys.Reset()
	return translateError(x.vectors.Compact(x.vectors.Capacity(), func(uint32) bool { return false }))
}

// Reset removes every vector and releases all storage.
func (x *Index) Reset() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.graph.Reset(); err != nil {
		return translateError(err)
	}
	x.keys.Reset()
	x.vectors.Reset()
	return nil
}

func isAligned(data []byte) bool {
	return uintptr(unsafe.Pointer(unsafe.SliceData(data)))%8 == 0
}

// alignedBytes returns n zeroed bytes backed by uint64 words.
func alignedBytes(n int) []byte {
	words := make([]uint64, (n+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), n)
}

package hnsw

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/dluc/usearch/distance"
	"github.com/dluc/usearch/internal/bitset"
	"github.com/dluc/usearch/internal/vectorstore"
)

const (
	// mmax0Multiplier scales M for layer 0.
	mmax0Multiplier = 2

	// minimumM is the smallest accepted connectivity.
	minimumM = 2

	// maxLevel bounds generated levels.
	maxLevel = 48

	// DefaultM is the default number of links per node.
	DefaultM = 16

	// DefaultEF is the default insertion candidate list width.
	DefaultEF = 128

	// DefaultEFSearch is the default search candidate list width.
	DefaultEFSearch = 64

	nodeSegmentBits = 14
	nodeSegmentSize = 1 << nodeSegmentBits
	nodeSegmentMask = nodeSegmentSize - 1
)

var (
	// ErrReadOnly is returned when a read-only graph is asked to mutate.
	ErrReadOnly = errors.New("hnsw: graph is read-only")

	// ErrSlotOverflow is returned when the slot space is exhausted.
	ErrSlotOverflow = errors.New("hnsw: slot space exhausted")

	// ErrMissingVector is returned when a slot has no stored vector.
	ErrMissingVector = errors.New("hnsw: slot has no vector")
)

// Options configures the graph.
type Options struct {
	M          int
	EF         int
	EFSearch   int
	RandomSeed *int64
}

// DefaultOptions contains the default options.
var DefaultOptions = Options{
	M:        DefaultM,
	EF:       DefaultEF,
	EFSearch: DefaultEFSearch,
}

// node is one graph vertex. links[l] holds the neighbors on layer l in
// ascending distance order.
type node struct {
	mu    sync.Mutex
	level int
	links []atomic.Pointer[[]uint32]
}

func newNode(level int) *node {
	return &node{level: level, links: make([]atomic.Pointer[[]uint32], level+1)}
}

func (n *node) neighbors(level int) []uint32 {
	if level > n.level {
		return nil
	}
	if p := n.links[level].Load(); p != nil {
		return *p
	}
	return nil
}

func (n *node) setNeighbors(level int, ids []uint32) {
	n.links[level].Store(&ids)
}

type nodeSegment [nodeSegmentSize]atomic.Pointer[node]

// HNSW is a proximity graph over the vectors of a vectorstore.Store.
type HNSW struct {
	opts            Options
	m, m0           int
	layerMultiplier float64
	efAdd           atomic.Int64
	efSearch        atomic.Int64

	vectors *vectorstore.Store
	dist    atomic.Pointer[distance.Func]

	nodes   atomic.Pointer[[]*nodeSegment]
	nodesMu sync.Mutex

	// top guards entry point and max level changes; both are also readable atomically.
	top      sync.Mutex
	entry    atomic.Uint32
	maxLevel atomic.Int32

	tombstones *bitset.BitSet
	live       atomic.Int64

	slotsMu sync.Mutex
	next    uint32
	free    *roaring.Bitmap

	rng      atomic.Uint64
	readOnly atomic.Bool
}

// New creates an empty graph over vectors using dist for every comparison.
func New(vectors *vectorstore.Store, dist distance.Func, optFns ...func(o *Options)) (*HNSW, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.M < minimumM {
		opts.M = minimumM
	}
	if opts.EF <= 0 {
		opts.EF = DefaultEF
	}
	if opts.EFSearch <= 0 {
		opts.EFSearch = DefaultEFSearch
	}

	h := &HNSW{
		opts:            opts,
		m:               opts.M,
		m0:              mmax0Multiplier * opts.M,
		layerMultiplier: 1 / math.Log(float64(opts.M)),
		vectors:         vectors,
		tombstones:      bitset.New(0),
		free:            roaring.New(),
	}
	h.efAdd.Store(int64(opts.EF))
	h.efSearch.Store(int64(opts.EFSearch))
	h.SetDistance(dist)

	seed := uint64(time.Now().UnixNano())
	if opts.RandomSeed != nil {
		seed = uint64(*opts.RandomSeed)
	}
	h.rng.Store(seed)

	h.resetNodes()
	return h, nil
}

func (h *HNSW) resetNodes() {
	empty := []*nodeSegment{}
	h.nodes.Store(&empty)
	h.entry.Store(0)
	h.maxLevel.Store(-1)
	h.live.Store(0)
	h.tombstones.ClearAll()
	h.next = 0
	h.free.Clear()
}

// SetDistance swaps the distance function used by later operations.
// Existing links are kept as built.
func (h *HNSW) SetDistance(fn distance.Func) {
	h.dist.Store(&fn)
}

// SetExpansionAdd changes the insertion candidate list width.
func (h *HNSW) SetExpansionAdd(ef int) {
	if ef > 0 {
		h.efAdd.Store(int64(ef))
	}
}

// SetExpansionSearch changes the default search candidate list width.
func (h *HNSW) SetExpansionSearch(ef int) {
	if ef > 0 {
		h.efSearch.Store(int64(ef))
	}
}

// SetReadOnly makes every later mutation fail with ErrReadOnly.
func (h *HNSW) SetReadOnly(v bool) { h.readOnly.Store(v) }

// ReadOnly reports whether mutations are rejected.
func (h *HNSW) ReadOnly() bool { return h.readOnly.Load() }

// M returns the upper-layer connectivity.
func (h *HNSW) M() int { return h.m }

// ExpansionAdd returns the insertion candidate list width.
func (h *HNSW) ExpansionAdd() int { return int(h.efAdd.Load()) }

// ExpansionSearch returns the default search candidate list width.
func (h *HNSW) ExpansionSearch() int { return int(h.efSearch.Load()) }

// Vectors returns the backing store.
func (h *HNSW) Vectors() *vectorstore.Store { return h.vectors }

// Len returns the number of live nodes.
func (h *HNSW) Len() int { return int(h.live.Load()) }

// MaxLevel returns the highest populated layer, or -1 when empty.
func (h *HNSW) MaxLevel() int { return int(h.maxLevel.Load()) }

// EntryPoint returns the entry slot and whether the graph has one.
func (h *HNSW) EntryPoint() (uint32, bool) {
	if h.maxLevel.Load() < 0 {
		return 0, false
	}
	return h.entry.Load(), true
}

// Slots returns one past the highest slot ever allocated.
func (h *HNSW) Slots() uint32 {
	h.slotsMu.Lock()
	defer h.slotsMu.Unlock()
	return h.next
}

// Level returns the level of the node at slot, or -1 when the slot is empty.
func (h *HNSW) Level(slot uint32) int {
	if n := h.getNode(slot); n != nil {
		return n.level
	}
	return -1
}

// Neighbors returns the published links of slot on level. The slice must not be modified.
func (h *HNSW) Neighbors(slot uint32, level int) []uint32 {
	if n := h.getNode(slot); n != nil {
		return n.neighbors(level)
	}
	return nil
}

// Removed reports whether slot is tombstoned.
func (h *HNSW) Removed(slot uint32) bool {
	return h.tombstones.Test(slot)
}

// Live reports whether slot holds a node that is not tombstoned.
func (h *HNSW) Live(slot uint32) bool {
	return h.getNode(slot) != nil && !h.tombstones.Test(slot)
}

// RemovedSet returns a snapshot of the tombstones.
func (h *HNSW) RemovedSet() *roaring.Bitmap {
	return h.tombstones.ToRoaring()
}

func (h *HNSW) getNode(slot uint32) *node {
	segs := *h.nodes.Load()
	idx := int(slot >> nodeSegmentBits)
	if idx >= len(segs) {
		return nil
	}
	return segs[idx][slot&nodeSegmentMask].Load()
}

func (h *HNSW) setNode(slot uint32, n *node) {
	h.growNodes(slot)
	segs := *h.nodes.Load()
	segs[slot>>nodeSegmentBits][slot&nodeSegmentMask].Store(n)
}

func (h *HNSW) growNodes(slot uint32) {
	idx := int(slot >> nodeSegmentBits)
	if idx < len(*h.nodes.Load()) {
		return
	}

	h.nodesMu.Lock()
	defer h.nodesMu.Unlock()

	cur := *h.nodes.Load()
	if idx < len(cur) {
		return
	}
	grown := make([]*nodeSegment, idx+1)
	copy(grown, cur)
	for i := len(cur); i <= idx; i++ {
		grown[i] = new(nodeSegment)
	}
	h.nodes.Store(&grown)
}

func (h *HNSW) maxConns(level int) int {
	if level == 0 {
		return h.m0
	}
	return h.m
}

// distance compares two stored slots.
func (h *HNSW) distance(a, b uint32) float32 {
	va, ok := h.vectors.Get(a)
	if !ok {
		return math.MaxFloat32
	}
	vb, ok := h.vectors.Get(b)
	if !ok {
		return math.MaxFloat32
	}
	return (*h.dist.Load())(va, vb)
}

// randomLevel draws a level with the xorshift64* generator.
func (h *HNSW) randomLevel() int {
	seed := h.rng.Add(0x9E3779B97F4A7C15)
	seed ^= seed >> 12
	seed ^= seed << 25
	seed ^= seed >> 27
	r := float64(seed*0x2545F4914F6CDD1D>>11) / float64(1<<53)
	if r == 0 {
		return 0
	}
	return min(int(math.Floor(-math.Log(r)*h.layerMultiplier)), maxLevel)
}

// Acquire hands out a slot for a new node, reusing freed slots first.
func (h *HNSW) Acquire() (uint32, error) {
	if h.readOnly.Load() {
		return 0, ErrReadOnly
	}
	h.slotsMu.Lock()
	defer h.slotsMu.Unlock()

	if !h.free.IsEmpty() {
		slot := h.free.Minimum()
		h.free.Remove(slot)
		return slot, nil
	}
	if h.next == math.MaxUint32 {
		return 0, ErrSlotOverflow
	}
	slot := h.next
	h.next++
	return slot, nil
}

// Release returns a slot whose insertion was abandoned.
func (h *HNSW) Release(slot uint32) {
	h.slotsMu.Lock()
	defer h.slotsMu.Unlock()
	h.free.Add(slot)
}

// FreeSlots returns the number of slots waiting for reuse.
func (h *HNSW) FreeSlots() int {
	h.slotsMu.Lock()
	defer h.slotsMu.Unlock()
	return int(h.free.GetCardinality())
}

// Reset drops every node.
func (h *HNSW) Reset() error {
	if h.readOnly.Load() {
		return ErrReadOnly
	}
	h.top.Lock()
	defer h.top.Unlock()
	h.slotsMu.Lock()
	defer h.slotsMu.Unlock()
	h.resetNodes()
	return nil
}

package usearch

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/dluc/usearch/internal/resource"
	"github.com/dluc/usearch/internal/searcher"
	"github.com/dluc/usearch/scalar"
)

// ClusterOptions selects the members to cluster and bounds the result.
type ClusterOptions struct {
	// Keys lists stored members. When both Keys and Vectors are empty every
	// key of the index is clustered.
	Keys []Key

	// Vectors lists members given by value; their ordinals become member keys.
	// Keys wins when both are set.
	Vectors []scalar.Buffer

	// MinCount asks for at least this many centroids when the graph allows it.
	MinCount int

	// MaxCount caps the number of centroids; 0 leaves them uncapped.
	MaxCount int

	Threads int
}

// Clustering assigns every member to a centroid key of the index.
type Clustering struct {
	// Members, Centroids and Distances are parallel.
	Members   []Key
	Centroids []Key
	Distances []float32

	// Level is the graph level the centroids were taken from.
	Level int

	b       *base
	byValue bool
	vectors []scalar.Buffer
}

// Cluster groups members around graph nodes of a level chosen so that at
// least MinCount centroids exist, descending greedily from the top for each
// member. Members whose key is absent are left out.
func (b *base) Cluster(ctx context.Context, opts ClusterOptions) (*Clustering, error) {
	start := time.Now()
	c, err := b.clusterAt(ctx, -1, opts)
	members, centroids := 0, 0
	if c != nil {
		members = len(c.Members)
		centroids = len(c.CentroidsPopularity())
	}
	b.opts.logger.LogCluster(ctx, members, centroids, err)
	b.opts.metrics.RecordCluster(members, centroids, time.Since(start), err)
	return c, err
}

// clusterAt clusters at level, or at the level picked from MinCount when level < 0.
func (b *base) clusterAt(ctx context.Context, level int, opts ClusterOptions) (*Clustering, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	c := &Clustering{b: b}
	var queries []scalar.Buffer
	switch {
	case len(opts.Keys) > 0:
		c.Members, queries = b.memberVectors(opts.Keys)
	case len(opts.Vectors) > 0:
		c.byValue, c.vectors = true, opts.Vectors
		c.Members = make([]Key, len(opts.Vectors))
		for i := range c.Members {
			c.Members[i] = Key(i)
		}
		queries = opts.Vectors
	default:
		c.Members, queries = b.memberVectors(b.keys.Keys())
	}

	if level < 0 {
		level = b.centroidLevel(opts.MinCount)
	}
	c.Level = min(level, max(b.graph.MaxLevel(), 0))
	c.Centroids = make([]Key, len(c.Members))
	c.Distances = make([]float32, len(c.Members))
	if len(c.Members) == 0 || b.graph.Len() == 0 {
		c.Members, c.Centroids, c.Distances = c.Members[:0], c.Centroids[:0], c.Distances[:0]
		return c, nil
	}

	slots := make([]uint32, len(c.Members))
	assigned := make([]bool, len(c.Members))
	err := resource.ForEach(ctx, b.threads(opts.Threads, &b.threadsSearch), len(c.Members), func(_ context.Context, i int) error {
		s := searcher.Get()
		defer searcher.Put(s)
		q, err := b.prepareQuery(s, queries[i])
		if err != nil {
			return err
		}
		// A member that lands among removed nodes only is left out.
		slot, dist, ok := b.graph.Descend(s, q, c.Level)
		slots[i], c.Distances[i], assigned[i] = slot, dist, ok
		return nil
	})
	if err != nil {
		return nil, err
	}
	queries, slots = c.keepAssigned(assigned, queries, slots)

	if opts.MaxCount > 0 {
		if err := b.capCentroids(ctx, c, queries, slots, opts); err != nil {
			return nil, err
		}
	}
	for i, slot := range slots {
		c.Centroids[i] = b.keys.KeyOf(slot)
	}
	return c, nil
}

// keepAssigned drops the members whose flag is false. The returned queries
// and slots stay parallel to Members; queries is copied so caller vectors
// are never reordered.
func (c *Clustering) keepAssigned(assigned []bool, queries []scalar.Buffer, slots []uint32) ([]scalar.Buffer, []uint32) {
	if !slices.Contains(assigned, false) {
		return queries, slots
	}
	kept := make([]scalar.Buffer, 0, len(queries))
	n := 0
	for i, ok := range assigned {
		if !ok {
			continue
		}
		c.Members[n], c.Distances[n], slots[n] = c.Members[i], c.Distances[i], slots[i]
		kept = append(kept, queries[i])
		n++
	}
	c.Members, c.Centroids, c.Distances = c.Members[:n], c.Centroids[:n], c.Distances[:n]
	return kept, slots[:n]
}

// memberVectors returns the keys that have vectors and the first vector of each.
func (b *base) memberVectors(keys []Key) ([]Key, []scalar.Buffer) {
	members := make([]Key, 0, len(keys))
	vectors := make([]scalar.Buffer, 0, len(keys))
	var slots []uint32
	for _, key := range keys {
		slots = b.keys.Slots(key, slots[:0])
		if len(slots) == 0 {
			continue
		}
		data, ok := b.vectors.Get(slots[0])
		if !ok {
			continue
		}
		members = append(members, key)
		vectors = append(vectors, scalar.Buffer{Kind: b.cfg.Scalar, Dims: b.cfg.Dimensions, Data: data})
	}
	return members, vectors
}

// centroidLevel returns the highest level holding at least minCount nodes.
func (b *base) centroidLevel(minCount int) int {
	top := b.graph.MaxLevel()
	if top <= 0 {
		return 0
	}
	if minCount <= 0 {
		return 1
	}
	st := b.graph.Stats()
	for l := top; l > 0; l-- {
		if st.Levels[l].Nodes >= minCount {
			return l
		}
	}
	return 0
}

// capCentroids keeps the maxCount most popular centroids and moves the
// members of the others to their nearest kept centroid.
func (b *base) capCentroids(ctx context.Context, c *Clustering, queries []scalar.Buffer, slots []uint32, opts ClusterOptions) error {
	counts := make(map[uint32]int)
	for _, slot := range slots {
		counts[slot]++
	}
	if len(counts) <= opts.MaxCount {
		return nil
	}
	ranked := make([]uint32, 0, len(counts))
	for slot := range counts {
		ranked = append(ranked, slot)
	}
	slices.SortFunc(ranked, func(x, y uint32) int {
		if c := cmp.Compare(counts[y], counts[x]); c != 0 {
			return c
		}
		return cmp.Compare(x, y)
	})
	kept := ranked[:opts.MaxCount]
	keep := make(map[uint32]bool, len(kept))
	for _, slot := range kept {
		keep[slot] = true
	}

	return resource.ForEach(ctx, b.threads(opts.Threads, &b.threadsSearch), len(slots), func(_ context.Context, i int) error {
		if keep[slots[i]] {
			return nil
		}
		s := searcher.Get()
		defer searcher.Put(s)
		q, err := b.prepareQuery(s, queries[i])
		if err != nil {
			return err
		}
		best, bestDist := slots[i], float32(math.MaxFloat32)
		for _, slot := range kept {
			v, ok := b.vectors.Get(slot)
			if !ok {
				continue
			}
			if d := b.dist(q, v); d < bestDist {
				best, bestDist = slot, d
			}
		}
		slots[i], c.Distances[i] = best, bestDist
		return nil
	})
}

// CentroidsPopularity returns the distinct centroids, most popular first,
// with their member counts.
func (c *Clustering) CentroidsPopularity() []CentroidCount {
	counts := make(map[Key]int)
	for _, k := range c.Centroids {
		counts[k]++
	}
	out := make([]CentroidCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, CentroidCount{Centroid: k, Members: n})
	}
	slices.SortFunc(out, func(x, y CentroidCount) int {
		if c := cmp.Compare(y.Members, x.Members); c != 0 {
			return c
		}
		return cmp.Compare(x.Centroid, y.Centroid)
	})
	return out
}

// CentroidCount is one entry of CentroidsPopularity.
type CentroidCount struct {
	Centroid Key
	Members  int
}

// MembersOf returns the members assigned to centroid.
func (c *Clustering) MembersOf(centroid Key) []Key {
	var out []Key
	for i, k := range c.Centroids {
		if k == centroid {
			out = append(out, c.Members[i])
		}
	}
	return out
}

// Subcluster clusters the members of centroid one level further down.
// opts.Keys and opts.Vectors are ignored. At level 0 the members map to
// their nearest stored vectors.
func (c *Clustering) Subcluster(ctx context.Context, centroid Key, opts ClusterOptions) (*Clustering, error) {
	members := c.MembersOf(centroid)
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: centroid %d has no members", ErrKeyNotFound, centroid)
	}
	opts.Keys, opts.Vectors = nil, nil
	if c.byValue {
		opts.Vectors = make([]scalar.Buffer, len(members))
		for i, m := range members {
			opts.Vectors[i] = c.vectors[m]
		}
	} else {
		opts.Keys = members
	}

	sub, err := c.b.clusterAt(ctx, max(c.Level-1, 0), opts)
	if err != nil {
		return nil, err
	}
	if c.byValue {
		// sub.Members are ordinals into members; map them back to the parent input.
		for i, m := range sub.Members {
			sub.Members[i] = members[m]
		}
		sub.vectors = c.vectors
	}
	return sub, nil
}

package usearch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dluc/usearch/blobstore"
	"github.com/dluc/usearch/distance"
	"github.com/dluc/usearch/internal/hnsw"
	"github.com/dluc/usearch/internal/resource"
	"github.com/dluc/usearch/persistence"
	"github.com/dluc/usearch/scalar"
)

// Metadata is the configuration and size stored in a snapshot header.
type Metadata struct {
	Dimensions       int
	Metric           distance.Kind
	Scalar           scalar.Kind
	Connectivity     int
	ExpansionAdd     int
	ExpansionSearch  int
	Multi            bool
	Compression      persistence.Compression
	Count            int
	Removed          int
	Slots            int
	MaxLevel         int
	SerializedLength int64
}

// Config returns the index configuration recorded in m.
func (m Metadata) Config() Config {
	return Config{
		Dimensions:      m.Dimensions,
		Metric:          m.Metric,
		Scalar:          m.Scalar,
		Connectivity:    m.Connectivity,
		ExpansionAdd:    m.ExpansionAdd,
		ExpansionSearch: m.ExpansionSearch,
		Multi:           m.Multi,
		Compression:     m.Compression,
	}
}

func metadataOf(h persistence.Header) Metadata {
	return Metadata{
		Dimensions:       int(h.Dimensions),
		Metric:           distance.Kind(h.MetricKind),
		Scalar:           scalar.Kind(h.ScalarKind),
		Connectivity:     int(h.Connectivity),
		ExpansionAdd:     int(h.ExpansionAdd),
		ExpansionSearch:  int(h.ExpansionSearch),
		Multi:            h.Multi != 0,
		Compression:      h.Compression,
		Count:            int(h.Count),
		Removed:          int(h.Removed),
		Slots:            int(h.Slots),
		MaxLevel:         int(h.MaxLevel),
		SerializedLength: persistence.HeaderSize + int64(h.BodyLength),
	}
}

// ReadMetadata reads the header of the snapshot at path. It reports false for
// missing or unreadable files.
func ReadMetadata(path string) (Metadata, bool) {
	h, err := persistence.ReadHeaderFile(path)
	if err != nil {
		return Metadata{}, false
	}
	return metadataOf(h), true
}

// MetadataBuffer reads the header at the start of data.
func MetadataBuffer(data []byte) (Metadata, bool) {
	h, err := persistence.ParseHeader(data)
	if err != nil {
		return Metadata{}, false
	}
	return metadataOf(h), true
}

// MetadataFrom reads the header of a stored snapshot without fetching its body.
func MetadataFrom(ctx context.Context, store blobstore.Store, name string) (Metadata, bool) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return Metadata{}, false
	}
	defer blob.Close()

	if blob.Size() < persistence.HeaderSize {
		return Metadata{}, false
	}
	buf := make([]byte, persistence.HeaderSize)
	if _, err := blobstore.ReadFull(ctx, blob, buf, 0); err != nil {
		return Metadata{}, false
	}
	return MetadataBuffer(buf)
}

// Restore opens the snapshot at path as a mutable Index, or as a View when
// view is set. It reports false without error when no readable snapshot
// exists at path.
func Restore(path string, view bool, opts ...Option) (Reader, bool, error) {
	meta, ok := ReadMetadata(path)
	if !ok {
		return nil, false, nil
	}
	if view {
		v, err := OpenView(path, opts...)
		if err != nil {
			return nil, true, err
		}
		return v, true, nil
	}
	x, err := New(meta.Config(), opts...)
	if err != nil {
		return nil, true, err
	}
	if err := x.Load(path); err != nil {
		return nil, true, err
	}
	return x, true, nil
}

// snapshot captures the index for encoding. The caller holds mu exclusively.
func (b *base) snapshot() *persistence.Snapshot {
	g := b.graph.Export()
	keys := make([]uint64, len(g.Levels))
	for slot, level := range g.Levels {
		if level >= 0 {
			keys[slot] = b.keys.KeyOf(uint32(slot))
		}
	}
	var multi uint8
	if b.cfg.Multi {
		multi = 1
	}
	return &persistence.Snapshot{
		Header: persistence.Header{
			Dimensions:      uint32(b.cfg.Dimensions),
			ScalarKind:      uint8(b.cfg.Scalar),
			MetricKind:      uint8(b.cfg.Metric),
			Multi:           multi,
			Compression:     b.cfg.Compression,
			Connectivity:    uint32(b.cfg.Connectivity),
			ExpansionAdd:    uint32(b.graph.ExpansionAdd()),
			ExpansionSearch: uint32(b.graph.ExpansionSearch()),
			Stride:          uint32(b.vectors.Stride()),
			Count:           uint64(b.graph.Len()),
			MaxLevel:        int32(g.MaxLevel),
			Entry:           g.Entry,
		},
		Keys:    keys,
		Levels:  g.Levels,
		Removed: g.Removed,
		Vector:  b.vectors.Get,
		Links:   g.Links,
	}
}

// SerializedLength returns the size of an uncompressed snapshot.
func (b *base) SerializedLength() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot().RawSize()
}

// Save writes a snapshot to path through a temporary file. An empty path
// means the configured path.
func (b *base) Save(path string) error {
	if err := b.check(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if path == "" {
		path = b.cfg.Path
	}
	if path == "" {
		return fmt.Errorf("%w: no path to save to", ErrInvalidConfiguration)
	}
	snap := b.snapshot()
	cw := &countingWriter{}
	err := persistence.SaveToFile(path, func(w io.Writer) error {
		cw.w = resource.NewRateLimitedWriter(context.Background(), w, b.rc)
		return persistence.Encode(cw, snap)
	})
	b.opts.logger.LogSave(context.Background(), path, cw.n, err)
	return translateError(err)
}

// SaveBuffer returns a snapshot as bytes.
func (b *base) SaveBuffer() ([]byte, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var buf bytes.Buffer
	if err := persistence.Encode(&buf, b.snapshot()); err != nil {
		return nil, translateError(err)
	}
	return buf.Bytes(), nil
}

// SaveTo streams a snapshot into store under name. A failed write is
// aborted and leaves no blob behind.
func (b *base) SaveTo(ctx context.Context, store blobstore.Store, name string) (err error) {
	if err := b.check(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cw := &countingWriter{}
	defer func() { b.opts.logger.LogSave(ctx, name, cw.n, err) }()

	w, err := store.Create(ctx, name)
	if err != nil {
		return err
	}
	cw.w = resource.NewRateLimitedWriter(ctx, w, b.rc)
	if err := persistence.Encode(cw, b.snapshot()); err != nil {
		_ = w.Abort()
		return translateError(err)
	}
	return w.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Load replaces the contents of x with the snapshot at path. The index
// adopts the configuration stored in the file. On failure x is unchanged.
func (x *Index) Load(path string) error {
	data, err := persistence.ReadFile(path)
	if err != nil {
		x.opts.logger.LogLoad(context.Background(), path, 0, false, err)
		return translateError(err)
	}
	return x.load(context.Background(), path, data)
}

// LoadBuffer replaces the contents of x with a snapshot held in data.
// data is copied and may be reused afterwards.
func (x *Index) LoadBuffer(data []byte) error {
	buf := alignedBytes(len(data))
	copy(buf, data)
	return x.load(context.Background(), "buffer", buf)
}

// LoadFrom replaces the contents of x with the snapshot name of store.
func (x *Index) LoadFrom(ctx context.Context, store blobstore.Store, name string) error {
	data, err := fetch(ctx, store, name, x.rc)
	if err != nil {
		x.opts.logger.LogLoad(ctx, name, 0, false, err)
		return translateError(err)
	}
	return x.load(ctx, name, data)
}

func fetch(ctx context.Context, store blobstore.Store, name string, rc *resource.Controller) ([]byte, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	rd, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	return persistence.ReadAll(resource.NewRateLimitedReader(ctx, rd, rc), blob.Size())
}

// load decodes data, which must be 8-byte aligned and owned by the index.
func (x *Index) load(ctx context.Context, source string, data []byte) error {
	d, err := persistence.Decode(data)
	if err == nil {
		x.mu.Lock()
		err = x.restore(d, false)
		x.mu.Unlock()
	}
	count := 0
	if err == nil {
		count = int(d.Header.Count)
	}
	x.opts.logger.LogLoad(ctx, source, count, false, err)
	return translateError(err)
}

// restore swaps in the parts described by d. The caller holds mu
// exclusively. Nothing changes when an error is returned.
func (b *base) restore(d *persistence.Decoded, readOnly bool) error {
	h := d.Header
	cfg := b.cfg
	cfg.Dimensions = int(h.Dimensions)
	cfg.Metric = distance.Kind(h.MetricKind)
	cfg.Scalar = scalar.Kind(h.ScalarKind)
	cfg.Connectivity = int(h.Connectivity)
	cfg.ExpansionAdd = int(h.ExpansionAdd)
	cfg.ExpansionSearch = int(h.ExpansionSearch)
	cfg.Multi = h.Multi != 0
	cfg.Compression = h.Compression

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptPersistedState, err)
	}
	if got := cfg.Scalar.Stride(cfg.Dimensions); got != int(h.Stride) {
		return fmt.Errorf("%w: stride %d, want %d", ErrCorruptPersistedState, h.Stride, got)
	}
	compiled := b.compiled
	if cfg.Metric != distance.External {
		compiled = nil
	}
	dist, err := resolveMetric(cfg, compiled)
	if err != nil {
		return err
	}

	vectors, keys, graph, err := b.parts(cfg, dist)
	if err != nil {
		return err
	}
	present := func(slot uint32) bool { return d.Levels[slot] >= 0 }
	if err := vectors.Attach(d.Vectors, len(d.Levels), present); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptPersistedState, err)
	}
	err = graph.Restore(hnsw.Snapshot{
		Levels:   d.Levels,
		Links:    d.Links,
		Removed:  d.Removed,
		Entry:    h.Entry,
		MaxLevel: int(h.MaxLevel),
	})
	if err != nil {
		return translateError(err)
	}
	for slot, level := range d.Levels {
		if level < 0 || d.Removed.Contains(uint32(slot)) {
			continue
		}
		if err := keys.Insert(d.Keys[slot], uint32(slot)); err != nil {
			return fmt.Errorf("%w: slot %d: %w", ErrCorruptPersistedState, slot, err)
		}
	}
	if graph.Len() != int(h.Count) {
		return fmt.Errorf("%w: %d live nodes, header says %d", ErrCorruptPersistedState, graph.Len(), h.Count)
	}
	graph.SetReadOnly(readOnly)

	old := b.vectors
	b.cfg, b.compiled, b.dist = cfg, compiled, dist
	b.vectors, b.keys, b.graph = vectors, keys, graph
	b.readOnly = readOnly
	if old != nil {
		old.Reset()
	}
	return nil
}

// IsCorrupt reports whether err stems from an unusable snapshot.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptPersistedState)
}

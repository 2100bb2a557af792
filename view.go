package usearch

import (
	"context"
	"errors"

	"github.com/dluc/usearch/internal/mmap"
	"github.com/dluc/usearch/persistence"
)

// View is a read-only index served from a snapshot in place. It has no
// mutating methods; Clone turns it into an Index.
type View struct {
	*base
}

// OpenView maps the snapshot at path read-only. Vectors and links are
// read from the mapping, so the file must be uncompressed and must not
// change while the view is open.
func OpenView(path string, opts ...Option) (*View, error) {
	o := applyOptions(opts)
	meta, ok := ReadMetadata(path)
	if !ok {
		_, err := persistence.ReadHeaderFile(path)
		o.logger.LogLoad(context.Background(), path, 0, true, err)
		return nil, translateError(err)
	}
	cfg := meta.Config()
	cfg.Path = path
	b, err := newBase(cfg, o)
	if err != nil {
		return nil, err
	}

	m, err := mmap.Open(path)
	if err != nil {
		o.logger.LogLoad(context.Background(), path, 0, true, err)
		return nil, err
	}
	_ = m.Advise(mmap.AccessRandom)

	d, err := persistence.DecodeMapped(m.Bytes())
	if err == nil {
		b.mu.Lock()
		err = b.restore(d, true)
		b.mu.Unlock()
	}
	if err != nil {
		_ = m.Close()
		if errors.Is(err, persistence.ErrCompressed) {
			err = errors.Join(ErrInvalidConfiguration, err)
		}
		o.logger.LogLoad(context.Background(), path, 0, true, err)
		return nil, translateError(err)
	}
	b.mapping = m
	o.logger.LogLoad(context.Background(), path, meta.Count, true, nil)
	return &View{base: b}, nil
}

// ViewBuffer serves a snapshot held in data. Uncompressed, 8-byte aligned
// data is used in place and must stay unchanged while the view is open;
// anything else is copied.
func ViewBuffer(data []byte, opts ...Option) (*View, error) {
	o := applyOptions(opts)
	meta, ok := MetadataBuffer(data)
	if !ok {
		_, err := persistence.ParseHeader(data)
		return nil, translateError(err)
	}
	b, err := newBase(meta.Config(), o)
	if err != nil {
		return nil, err
	}
	if !isAligned(data) {
		buf := alignedBytes(len(data))
		copy(buf, data)
		data = buf
	}
	d, err := persistence.Decode(data)
	if err == nil {
		b.mu.Lock()
		err = b.restore(d, true)
		b.mu.Unlock()
	}
	o.logger.LogLoad(context.Background(), "buffer", meta.Count, true, err)
	if err != nil {
		return nil, translateError(err)
	}
	return &View{base: b}, nil
}

// Clone copies the view into a new mutable Index.
func (v *View) Clone() (*Index, error) {
	data, err := v.SaveBuffer()
	if err != nil {
		return nil, err
	}
	v.mu.RLock()
	cfg := v.cfg
	v.mu.RUnlock()
	cfg.Path = ""

	b, err := newBase(cfg, v.opts)
	if err != nil {
		return nil, err
	}
	x := &Index{base: b}
	if err := x.LoadBuffer(data); err != nil {
		return nil, err
	}
	return x, nil
}

// Close releases the mapping. Later calls fail with ErrClosed.
func (v *View) Close() error {
	if v.closed.Swap(true) {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.build(); err != nil {
		return err
	}
	if v.mapping == nil {
		return nil
	}
	err := v.mapping.Close()
	v.mapping = nil
	return err
}

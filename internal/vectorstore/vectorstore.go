package vectorstore

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/dluc/usearch/internal/resource"
	"github.com/dluc/usearch/scalar"
)

const (
	slotSegmentBits = 14
	slotSegmentSize = 1 << slotSegmentBits
	slotSegmentMask = slotSegmentSize - 1

	vectorsPerChunk = 1024
)

// ErrWrongKind is returned when an aliased buffer does not match the stored kind.
var ErrWrongKind = errors.New("vectorstore: buffer kind does not match the store")

type slotSegment [slotSegmentSize]atomic.Pointer[byte]

// Store maps slots to vector bytes.
type Store struct {
	kind   scalar.Kind
	dims   int
	size   int
	stride int
	rc     *resource.Controller

	slots  atomic.Pointer[[]*slotSegment]
	growMu sync.Mutex

	arenaMu  sync.Mutex
	free     []byte // unused tail of the current chunk
	reserved int64
	written  atomic.Int64
}

// New creates an empty store for vectors of the given kind and dimensionality.
func New(kind scalar.Kind, dims int, rc *resource.Controller) *Store {
	s := &Store{
		kind:   kind,
		dims:   dims,
		size:   kind.VectorBytes(dims),
		stride: kind.Stride(dims),
		rc:     rc,
	}
	empty := []*slotSegment{}
	s.slots.Store(&empty)
	return s
}

// Kind returns the stored scalar kind.
func (s *Store) Kind() scalar.Kind { return s.kind }

// Dims returns the vector dimensionality.
func (s *Store) Dims() int { return s.dims }

// VectorBytes returns the byte length of one vector.
func (s *Store) VectorBytes() int { return s.size }

// Stride returns the 8-byte aligned slot width used in chunks and snapshots.
func (s *Store) Stride() int { return s.stride }

// Capacity returns the number of addressable slots.
func (s *Store) Capacity() int {
	return len(*s.slots.Load()) * slotSegmentSize
}

// Reserve makes slots [0, n) addressable.
func (s *Store) Reserve(n int) {
	if n <= 0 {
		return
	}
	target := (n - 1) >> slotSegmentBits
	if target < len(*s.slots.Load()) {
		return
	}

	s.growMu.Lock()
	defer s.growMu.Unlock()

	cur := *s.slots.Load()
	if target < len(cur) {
		return
	}
	grown := make([]*slotSegment, target+1)
	copy(grown, cur)
	for i := len(cur); i <= target; i++ {
		grown[i] = new(slotSegment)
	}
	s.slots.Store(&grown)
}

func (s *Store) cell(slot uint32) *atomic.Pointer[byte] {
	segs := *s.slots.Load()
	idx := int(slot >> slotSegmentBits)
	if idx >= len(segs) {
		return nil
	}
	return &segs[idx][slot&slotSegmentMask]
}

// Get returns the bytes of slot, aliasing store memory.
func (s *Store) Get(slot uint32) ([]byte, bool) {
	c := s.cell(slot)
	if c == nil {
		return nil, false
	}
	p := c.Load()
	if p == nil {
		return nil, false
	}
	return unsafe.Slice(p, s.size), true
}

// Set casts src into fresh storage and publishes it at slot.
func (s *Store) Set(slot uint32, src scalar.Buffer) error {
	dst, err := s.alloc()
	if err != nil {
		return err
	}
	if err := scalar.Cast(dst, s.kind, src); err != nil {
		return err
	}
	s.publish(slot, dst)
	return nil
}

// SetBytes copies raw bytes already in the stored kind.
func (s *Store) SetBytes(slot uint32, data []byte) error {
	if len(data) < s.size {
		return fmt.Errorf("vectorstore: need %d bytes, got %d", s.size, len(data))
	}
	dst, err := s.alloc()
	if err != nil {
		return err
	}
	copy(dst, data[:s.size])
	s.publish(slot, dst)
	return nil
}

// Alias publishes caller memory at slot without copying. The caller keeps
// the buffer alive and unchanged for as long as the slot refers to it.
func (s *Store) Alias(slot uint32, src scalar.Buffer) error {
	if src.Kind != s.kind || src.Dims != s.dims {
		return ErrWrongKind
	}
	if err := src.Validate(); err != nil {
		return err
	}
	s.publish(slot, src.Data[:s.size])
	return nil
}

// Clear drops the vector of slot.
func (s *Store) Clear(slot uint32) {
	if c := s.cell(slot); c != nil {
		c.Store(nil)
	}
}

func (s *Store) publish(slot uint32, data []byte) {
	s.Reserve(int(slot) + 1)
	s.cell(slot).Store(unsafe.SliceData(data))
}

// alloc bump-allocates one stride from the current chunk.
func (s *Store) alloc() ([]byte, error) {
	s.arenaMu.Lock()
	defer s.arenaMu.Unlock()

	if len(s.free) < s.stride {
		chunk, err := s.newChunk(vectorsPerChunk)
		if err != nil {
			return nil, err
		}
		s.free = chunk
	}
	out := s.free[:s.size:s.stride]
	s.free = s.free[s.stride:]
	s.written.Add(int64(s.stride))
	return out, nil
}

// newChunk allocates 8-byte aligned space for n vectors. Callers hold arenaMu.
func (s *Store) newChunk(n int) ([]byte, error) {
	bytes := int64(n) * int64(s.stride)
	if err := s.rc.AcquireMemory(bytes); err != nil {
		return nil, err
	}
	s.reserved += bytes
	words := make([]uint64, bytes/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), len(words)*8), nil
}

// Attach points slots [0, n) at consecutive strides of region.
// The region must be 8-byte aligned and outlive the store.
func (s *Store) Attach(region []byte, n int, present func(slot uint32) bool) error {
	if len(region) < n*s.stride {
		return fmt.Errorf("vectorstore: region holds %d bytes, need %d", len(region), n*s.stride)
	}
	s.Reserve(n)
	for i := 0; i < n; i++ {
		if present != nil && !present(uint32(i)) {
			continue
		}
		off := i * s.stride
		s.cell(uint32(i)).Store(unsafe.SliceData(region[off : off+s.size]))
	}
	return nil
}

// Compact rewrites the vectors of slots [0, n) kept by keep into one
// contiguous allocation and releases the previous chunks.
func (s *Store) Compact(n int, keep func(slot uint32) bool) error {
	s.arenaMu.Lock()
	defer s.arenaMu.Unlock()

	live := 0
	for i := 0; i < n; i++ {
		if _, ok := s.Get(uint32(i)); ok && keep(uint32(i)) {
			live++
		}
	}

	prev := s.reserved
	s.reserved = 0
	var chunk []byte
	if live > 0 {
		var err error
		if chunk, err = s.newChunk(live); err != nil {
			s.reserved = prev
			return err
		}
	}

	var written int64
	for i := 0; i < n; i++ {
		slot := uint32(i)
		src, ok := s.Get(slot)
		if !ok {
			continue
		}
		if !keep(slot) {
			s.Clear(slot)
			continue
		}
		dst := chunk[:s.size:s.stride]
		copy(dst, src)
		chunk = chunk[s.stride:]
		s.cell(slot).Store(unsafe.SliceData(dst))
		written += int64(s.stride)
	}

	s.rc.ReleaseMemory(prev)
	s.free = nil
	s.written.Store(written)
	return nil
}

// Reset drops every vector and releases all chunks.
func (s *Store) Reset() {
	s.arenaMu.Lock()
	defer s.arenaMu.Unlock()

	s.growMu.Lock()
	empty := []*slotSegment{}
	s.slots.Store(&empty)
	s.growMu.Unlock()

	s.rc.ReleaseMemory(s.reserved)
	s.reserved = 0
	s.free = nil
	s.written.Store(0)
}

// MemoryUsage returns the bytes held by chunks and the slot table.
func (s *Store) MemoryUsage() int64 {
	s.arenaMu.Lock()
	reserved := s.reserved
	s.arenaMu.Unlock()
	return reserved + int64(len(*s.slots.Load()))*slotSegmentSize*8
}

// WrittenBytes returns the stride bytes handed out since the last Compact or Reset.
func (s *Store) WrittenBytes() int64 {
	return s.written.Load()
}

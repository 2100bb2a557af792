package bitset

import (
	"math/bits"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

const (
	segmentBits     = 16
	segmentSize     = 1 << segmentBits
	segmentMask     = segmentSize - 1
	wordsPerSegment = segmentSize / 64
)

type segment [wordsPerSegment]atomic.Uint64

// BitSet is a lock-free segmented bitset over uint32 slots.
// Segments are allocated on growth and never move, so readers need no locks.
type BitSet struct {
	segments atomic.Pointer[[]*segment]
	count    atomic.Int64
}

// New creates a bitset able to hold size bits without growing.
func New(size uint32) *BitSet {
	b := &BitSet{}
	empty := []*segment{}
	b.segments.Store(&empty)
	b.Grow(size)
	return b
}

// Grow ensures bits [0, size) are addressable.
func (b *BitSet) Grow(size uint32) {
	if size == 0 {
		return
	}
	target := int((size - 1) >> segmentBits)
	for {
		old := b.segments.Load()
		if target < len(*old) {
			return
		}
		grown := make([]*segment, target+1)
		copy(grown, *old)
		for i := len(*old); i <= target; i++ {
			grown[i] = new(segment)
		}
		if b.segments.CompareAndSwap(old, &grown) {
			return
		}
	}
}

func (b *BitSet) word(i uint32) (*atomic.Uint64, uint64) {
	segs := *b.segments.Load()
	idx := int(i >> segmentBits)
	if idx >= len(segs) {
		return nil, 0
	}
	off := i & segmentMask
	return &segs[idx][off>>6], uint64(1) << (off & 63)
}

// Set sets bit i, growing as needed, and reports whether it was previously clear.
func (b *BitSet) Set(i uint32) bool {
	w, mask := b.word(i)
	if w == nil {
		b.Grow(i + 1)
		w, mask = b.word(i)
	}
	for {
		old := w.Load()
		if old&mask != 0 {
			return false
		}
		if w.CompareAndSwap(old, old|mask) {
			b.count.Add(1)
			return true
		}
	}
}

// Unset clears bit i and reports whether it was previously set.
func (b *BitSet) Unset(i uint32) bool {
	w, mask := b.word(i)
	if w == nil {
		return false
	}
	for {
		old := w.Load()
		if old&mask == 0 {
			return false
		}
		if w.CompareAndSwap(old, old&^mask) {
			b.count.Add(-1)
			return true
		}
	}
}

// Test reports whether bit i is set.
func (b *BitSet) Test(i uint32) bool {
	w, mask := b.word(i)
	return w != nil && w.Load()&mask != 0
}

// Count returns the number of set bits.
func (b *BitSet) Count() int {
	return int(b.count.Load())
}

// Len returns the number of addressable bits.
func (b *BitSet) Len() uint64 {
	return uint64(len(*b.segments.Load())) * segmentSize
}

// ForEach calls fn for every set bit in ascending order until fn returns false.
func (b *BitSet) ForEach(fn func(i uint32) bool) {
	for s, seg := range *b.segments.Load() {
		for w := range seg {
			v := seg[w].Load()
			for v != 0 {
				tz := bits.TrailingZeros64(v)
				if !fn(uint32(s*segmentSize + w*64 + tz)) {
					return
				}
				v &= v - 1
			}
		}
	}
}

// ClearAll clears every bit.
func (b *BitSet) ClearAll() {
	for _, seg := range *b.segments.Load() {
		for w := range seg {
			seg[w].Store(0)
		}
	}
	b.count.Store(0)
}

// ToRoaring returns a snapshot of the set bits.
func (b *BitSet) ToRoaring() *roaring.Bitmap {
	rb := roaring.New()
	b.ForEach(func(i uint32) bool {
		rb.Add(i)
		return true
	})
	return rb
}

// FromRoaring replaces the contents with the bits of rb.
func (b *BitSet) FromRoaring(rb *roaring.Bitmap) {
	b.ClearAll()
	if rb.IsEmpty() {
		return
	}
	b.Grow(rb.Maximum() + 1)
	it := rb.Iterator()
	for it.HasNext() {
		b.Set(it.Next())
	}
}

package searcher

// VisitedSet tracks visited slots using a bitset and a dirty list for fast reset.
type VisitedSet struct {
	bits  []uint64
	dirty []uint32
}

// NewVisitedSet creates a set sized for capacity slots.
func NewVisitedSet(capacity int) *VisitedSet {
	return &VisitedSet{
		bits:  make([]uint64, (capacity+63)/64),
		dirty: make([]uint32, 0, 128),
	}
}

// Visit marks a slot and reports whether it was newly marked.
func (v *VisitedSet) Visit(id uint32) bool {
	word := int(id >> 6)
	mask := uint64(1) << (id & 63)
	if word >= len(v.bits) {
		v.grow(word + 1)
	}
	if v.bits[word]&mask != 0 {
		return false
	}
	v.bits[word] |= mask
	v.dirty = append(v.dirty, id)
	return true
}

// Visited reports whether a slot has been marked.
func (v *VisitedSet) Visited(id uint32) bool {
	word := int(id >> 6)
	if word >= len(v.bits) {
		return false
	}
	return v.bits[word]&(uint64(1)<<(id&63)) != 0
}

// Len returns the number of marked slots.
func (v *VisitedSet) Len() int {
	return len(v.dirty)
}

// Reset clears the marks set since the last reset.
func (v *VisitedSet) Reset() {
	for _, id := range v.dirty {
		v.bits[id>>6] &^= uint64(1) << (id & 63)
	}
	v.dirty = v.dirty[:0]
}

// EnsureCapacity sizes the set for at least capacity slots.
func (v *VisitedSet) EnsureCapacity(capacity int) {
	if words := (capacity + 63) / 64; words > len(v.bits) {
		v.grow(words)
	}
}

func (v *VisitedSet) grow(words int) {
	bits := make([]uint64, max(len(v.bits)*2, words))
	copy(bits, v.bits)
	v.bits = bits
}

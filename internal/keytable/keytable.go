// Package keytable maps user keys to graph slots and back.
//
// Forward entries are (key, slot) pairs ordered in B-trees, sharded by a
// murmur3 hash of the key so unrelated keys never contend. In multi mode a
// key may own several slots; otherwise it owns at most one. The reverse
// direction is a segmented array of keys indexed by slot.
package keytable

import (
	"encoding/binary"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tidwall/btree"
	"github.com/twmb/murmur3"
)

const (
	shardCount = 64

	keySegmentBits = 14
	keySegmentSize = 1 << keySegmentBits
	keySegmentMask = keySegmentSize - 1
)

// ErrDuplicateKey is returned when a unique key is already present.
var ErrDuplicateKey = errors.New("keytable: key already present")

type entry struct {
	key  uint64
	slot uint32
}

func entryLess(a, b entry) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.slot < b.slot
}

type shard struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[entry]
}

type keySegment [keySegmentSize]atomic.Uint64

// Table is a concurrent two-way key/slot mapping.
type Table struct {
	multi  bool
	shards [shardCount]shard

	reverse atomic.Pointer[[]*keySegment]
	growMu  sync.Mutex

	entries atomic.Int64
}

// New creates an empty table.
func New(multi bool) *Table {
	t := &Table{multi: multi}
	for i := range t.shards {
		t.shards[i].tree = btree.NewBTreeGOptions(entryLess, btree.Options{NoLocks: true})
	}
	empty := []*keySegment{}
	t.reverse.Store(&empty)
	return t
}

// Multi reports whether keys may own several slots.
func (t *Table) Multi() bool { return t.multi }

func shardIndex(key uint64) int {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], key)
	return int(murmur3.Sum64(b[:]) % shardCount)
}

func (t *Table) shardFor(key uint64) *shard {
	return &t.shards[shardIndex(key)]
}

// Insert maps key to slot.
func (t *Table) Insert(key uint64, slot uint32) error {
	sh := t.shardFor(key)
	sh.mu.Lock()
	if !t.multi && hasKey(sh.tree, key) {
		sh.mu.Unlock()
		return ErrDuplicateKey
	}
	sh.tree.Set(entry{key: key, slot: slot})
	t.setReverse(slot, key)
	sh.mu.Unlock()

	t.entries.Add(1)
	return nil
}

// Delete removes a single (key, slot) pair and reports whether it existed.
func (t *Table) Delete(key uint64, slot uint32) bool {
	sh := t.shardFor(key)
	sh.mu.Lock()
	_, ok := sh.tree.Delete(entry{key: key, slot: slot})
	sh.mu.Unlock()
	if ok {
		t.entries.Add(-1)
	}
	return ok
}

// Remove drops every slot of key and returns them in ascending order.
func (t *Table) Remove(key uint64) []uint32 {
	sh := t.shardFor(key)
	sh.mu.Lock()
	slots := collect(sh.tree, key, nil)
	for _, slot := range slots {
		sh.tree.Delete(entry{key: key, slot: slot})
	}
	sh.mu.Unlock()

	t.entries.Add(-int64(len(slots)))
	return slots
}

// Slots appends the slots of key to dst in ascending order.
func (t *Table) Slots(key uint64, dst []uint32) []uint32 {
	sh := t.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return collect(sh.tree, key, dst)
}

// Count returns how many slots key owns.
func (t *Table) Count(key uint64) int {
	sh := t.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	n := 0
	sh.tree.Ascend(entry{key: key}, func(e entry) bool {
		if e.key != key {
			return false
		}
		n++
		return true
	})
	return n
}

// Contains reports whether key owns at least one slot.
func (t *Table) Contains(key uint64) bool {
	sh := t.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return hasKey(sh.tree, key)
}

// Rename moves every slot of from to to and returns how many moved.
// Outside multi mode, renaming onto an existing key fails with ErrDuplicateKey.
func (t *Table) Rename(from, to uint64) (int, error) {
	if from == to {
		return t.Count(from), nil
	}

	ia, ib := shardIndex(from), shardIndex(to)
	a, b := &t.shards[ia], &t.shards[ib]
	t.lockPair(ia, ib)
	defer t.unlockPair(ia, ib)

	slots := collect(a.tree, from, nil)
	if len(slots) == 0 {
		return 0, nil
	}
	if !t.multi && hasKey(b.tree, to) {
		return 0, ErrDuplicateKey
	}
	for _, slot := range slots {
		a.tree.Delete(entry{key: from, slot: slot})
		b.tree.Set(entry{key: to, slot: slot})
		t.setReverse(slot, to)
	}
	return len(slots), nil
}

// Bound reports whether slot is still mapped under its current key.
func (t *Table) Bound(slot uint32) bool {
	for {
		key := t.KeyOf(slot)
		sh := t.shardFor(key)
		sh.mu.RLock()
		if t.KeyOf(slot) != key {
			// renamed in between
			sh.mu.RUnlock()
			continue
		}
		_, ok := sh.tree.Get(entry{key: key, slot: slot})
		sh.mu.RUnlock()
		return ok
	}
}

// KeyOf returns the key last mapped to slot.
func (t *Table) KeyOf(slot uint32) uint64 {
	segs := *t.reverse.Load()
	idx := int(slot >> keySegmentBits)
	if idx >= len(segs) {
		return 0
	}
	return segs[idx][slot&keySegmentMask].Load()
}

func (t *Table) setReverse(slot uint32, key uint64) {
	idx := int(slot >> keySegmentBits)
	if segs := *t.reverse.Load(); idx < len(segs) {
		segs[idx][slot&keySegmentMask].Store(key)
		return
	}

	t.growMu.Lock()
	segs := *t.reverse.Load()
	if idx >= len(segs) {
		grown := make([]*keySegment, idx+1)
		copy(grown, segs)
		for i := len(segs); i <= idx; i++ {
			grown[i] = new(keySegment)
		}
		t.reverse.Store(&grown)
		segs = grown
	}
	t.growMu.Unlock()
	segs[idx][slot&keySegmentMask].Store(key)
}

// Len returns the number of (key, slot) entries.
func (t *Table) Len() int {
	return int(t.entries.Load())
}

// Keys returns the distinct keys in ascending order.
func (t *Table) Keys() []uint64 {
	keys := make([]uint64, 0, t.Len())
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.RLock()
		sh.tree.Scan(func(e entry) bool {
			if n := len(keys); n == 0 || keys[n-1] != e.key {
				keys = append(keys, e.key)
			}
			return true
		})
		sh.mu.RUnlock()
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// Reset removes every entry.
func (t *Table) Reset() {
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.Lock()
		sh.tree.Clear()
		sh.mu.Unlock()
	}
	t.growMu.Lock()
	empty := []*keySegment{}
	t.reverse.Store(&empty)
	t.growMu.Unlock()
	t.entries.Store(0)
}

func hasKey(tree *btree.BTreeG[entry], key uint64) bool {
	found := false
	tree.Ascend(entry{key: key}, func(e entry) bool {
		found = e.key == key
		return false
	})
	return found
}

func collect(tree *btree.BTreeG[entry], key uint64, dst []uint32) []uint32 {
	tree.Ascend(entry{key: key}, func(e entry) bool {
		if e.key != key {
			return false
		}
		dst = append(dst, e.slot)
		return true
	})
	return dst
}

// lockPair takes two shard locks in index order.
func (t *Table) lockPair(i, j int) {
	if i > j {
		i, j = j, i
	}
	t.shards[i].mu.Lock()
	if i != j {
		t.shards[j].mu.Lock()
	}
}

func (t *Table) unlockPair(i, j int) {
	t.shards[i].mu.Unlock()
	if i != j {
		t.shards[j].mu.Unlock()
	}
}

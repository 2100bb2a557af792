package searcher

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityQueue(t *testing.T) {
	t.Run("MinHeap", func(t *testing.T) {
		pq := NewPriorityQueue(false)
		pq.Push(Item{Node: 1, Distance: 10})
		pq.Push(Item{Node: 2, Distance: 5})
		pq.Push(Item{Node: 3, Distance: 20})

		top, ok := pq.Top()
		require.True(t, ok)
		assert.Equal(t, float32(5), top.Distance)

		var order []float32
		for pq.Len() > 0 {
			item, _ := pq.Pop()
			order = append(order, item.Distance)
		}
		assert.Equal(t, []float32{5, 10, 20}, order)
	})

	t.Run("MaxHeap", func(t *testing.T) {
		pq := NewPriorityQueue(true)
		pq.Push(Item{Node: 1, Distance: 10})
		pq.Push(Item{Node: 2, Distance: 5})
		pq.Push(Item{Node: 3, Distance: 20})

		top, _ := pq.Top()
		assert.Equal(t, float32(20), top.Distance)
	})

	t.Run("Empty", func(t *testing.T) {
		pq := NewPriorityQueue(true)
		_, ok := pq.Pop()
		assert.False(t, ok)
		_, ok = pq.Top()
		assert.False(t, ok)
	})
}

func TestPushBoundedKeepsNearest(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	pq := NewPriorityQueue(true)

	all := make([]Item, 200)
	for i := range all {
		all[i] = Item{Node: uint32(i), Distance: r.Float32()}
		pq.PushBounded(all[i], 10)
	}
	sort.Slice(all, func(i, j int) bool { return Closer(all[i], all[j]) })

	got := pq.Drain(nil)
	assert.Equal(t, all[:10], got)
	assert.Zero(t, pq.Len())
}

func TestPushBoundedZeroCapacity(t *testing.T) {
	pq := NewPriorityQueue(true)
	assert.False(t, pq.PushBounded(Item{Node: 1}, 0))
	assert.Zero(t, pq.Len())
}

func TestTiesBreakBySlot(t *testing.T) {
	pq := NewPriorityQueue(false)
	pq.Push(Item{Node: 9, Distance: 1})
	pq.Push(Item{Node: 3, Distance: 1})
	pq.Push(Item{Node: 5, Distance: 1})

	got := pq.Drain(nil)
	assert.Equal(t, []uint32{3, 5, 9}, []uint32{got[0].Node, got[1].Node, got[2].Node})
}

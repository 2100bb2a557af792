package searcher

// Item is a slot paired with its distance to the current query.
type Item struct {
	Node     uint32
	Distance float32
}

// Closer orders items by distance, breaking ties by slot so results are reproducible.
func Closer(a, b Item) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Node < b.Node
}

// PriorityQueue is a value-based binary heap of Items.
// A max-heap keeps the farthest item on top; a min-heap keeps the nearest.
type PriorityQueue struct {
	isMaxHeap bool
	items     []Item
}

// NewPriorityQueue creates a new priority queue.
func NewPriorityQueue(isMaxHeap bool) *PriorityQueue {
	return &PriorityQueue{
		isMaxHeap: isMaxHeap,
		items:     make([]Item, 0, 16),
	}
}

// Reset clears the queue, keeping its capacity.
func (pq *PriorityQueue) Reset() {
	pq.items = pq.items[:0]
}

// Len returns the number of queued items.
func (pq *PriorityQueue) Len() int {
	return len(pq.items)
}

// Top returns the top item without removing it.
func (pq *PriorityQueue) Top() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// Push inserts an item.
func (pq *PriorityQueue) Push(item Item) {
	pq.items = append(pq.items, item)
	pq.siftUp(len(pq.items) - 1)
}

// PushBounded inserts into a max-heap holding at most capacity items,
// replacing the farthest item when the new one is closer.
// It reports whether the item was kept.
func (pq *PriorityQueue) PushBounded(item Item, capacity int) bool {
	if len(pq.items) < capacity {
		pq.Push(item)
		return true
	}
	if capacity == 0 || !Closer(item, pq.items[0]) {
		return false
	}
	pq.items[0] = item
	pq.siftDown(0)
	return true
}

// Pop removes and returns the top item.
func (pq *PriorityQueue) Pop() (Item, bool) {
	n := len(pq.items)
	if n == 0 {
		return Item{}, false
	}

	item := pq.items[0]
	pq.items[0] = pq.items[n-1]
	pq.items = pq.items[:n-1]
	if len(pq.items) > 0 {
		pq.siftDown(0)
	}
	return item, true
}

// Drain empties the queue into dst in ascending distance order.
func (pq *PriorityQueue) Drain(dst []Item) []Item {
	start := len(dst)
	for pq.Len() > 0 {
		item, _ := pq.Pop()
		dst = append(dst, item)
	}
	if pq.isMaxHeap {
		out := dst[start:]
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return dst
}

func (pq *PriorityQueue) less(i, j int) bool {
	if pq.isMaxHeap {
		return Closer(pq.items[j], pq.items[i])
	}
	return Closer(pq.items[i], pq.items[j])
}

func (pq *PriorityQueue) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !pq.less(i, parent) {
			break
		}
		pq.items[i], pq.items[parent] = pq.items[parent], pq.items[i]
		i = parent
	}
}

func (pq *PriorityQueue) siftDown(i int) {
	n := len(pq.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && pq.less(right, left) {
			child = right
		}
		if !pq.less(child, i) {
			break
		}
		pq.items[i], pq.items[child] = pq.items[child], pq.items[i]
		i = child
	}
}

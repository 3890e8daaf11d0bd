package pathsearch

import "container/heap"

// entry is a queued voxel. seq records push order and breaks cost ties so
// that the first-discovered entry wins.
type entry struct {
	node int
	cost float64
	seq  uint64
}

// nodeQueue is a min-heap of entries keyed by (cost, seq).
type nodeQueue struct {
	items []entry
	next  uint64
}

func (q *nodeQueue) Len() int { return len(q.items) }

func (q *nodeQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	return a.seq < b.seq
}

func (q *nodeQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *nodeQueue) Push(x any) { q.items = append(q.items, x.(entry)) }

func (q *nodeQueue) Pop() any {
	n := len(q.items)
	it := q.items[n-1]
	q.items = q.items[:n-1]
	return it
}

func (q *nodeQueue) push(node int, cost float64) {
	heap.Push(q, entry{node: node, cost: cost, seq: q.next})
	q.next++
}

func (q *nodeQueue) pop() entry {
	return heap.Pop(q).(entry)
}

func (q *nodeQueue) isEmpty() bool {
	return len(q.items) == 0
}

package pathsearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueEqualCostPopsInPushOrder(t *testing.T) {
	q := &nodeQueue{}
	for node := 0; node < 8; node++ {
		q.push(node, 1.5)
	}

	var got []int
	for !q.isEmpty() {
		got = append(got, q.pop().node)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, got)
}

func TestQueueOrdersByCostThenPushOrder(t *testing.T) {
	q := &nodeQueue{}
	q.push(10, 2)
	q.push(11, 1)
	q.push(12, 2)
	q.push(13, 0.5)
	q.push(14, 1)
	q.push(15, 2)

	var got []int
	for !q.isEmpty() {
		got = append(got, q.pop().node)
	}
	assert.Equal(t, []int{13, 11, 14, 10, 12, 15}, got)
}

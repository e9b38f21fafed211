package evqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushAndDrain(t *testing.T) {
	q := New[int](4)

	for i := 0; i < 4; i++ {
		assert.False(t, q.Push(i))
	}
	assert.Equal(t, 4, q.Len())

	q.Close()
	var got []int
	for v := range q.C() {
		got = append(got, v)
	}
	assert.Equal(t, []int{0, 1, 2, 3}, got)
}

func TestOverflowDropsOldest(t *testing.T) {
	q := New[int](3)

	for i := 0; i < 10; i++ {
		q.Push(i)
	}

	assert.Equal(t, int64(10), q.Written())
	assert.Equal(t, int64(7), q.Dropped())

	q.Close()
	var got []int
	for v := range q.C() {
		got = append(got, v)
	}
	assert.Equal(t, []int{7, 8, 9}, got, "only the newest events survive")
}

func TestConcurrentProducersNeverBlock(t *testing.T) {
	q := New[int](2)

	// No consumer: every push must still return, contending producers
	// included.
	const producers, pushes = 4, 500
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < pushes; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(producers*pushes), q.Written())
	assert.LessOrEqual(t, q.Len(), 2)
}

func TestZeroCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}

func TestPushAfterCloseIsDiscarded(t *testing.T) {
	q := New[int](2)
	q.Push(1)
	q.Close()

	assert.False(t, q.Push(2))
	assert.Equal(t, int64(1), q.Written())

	q.Close() // idempotent

	var got []int
	for v := range q.C() {
		got = append(got, v)
	}
	assert.Equal(t, []int{1}, got)
}

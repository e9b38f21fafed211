// Package evqueue provides the bounded queue between the transport receive
// path and the host's event handlers. Producers never block: when the queue
// is full the oldest event is dropped, which keeps an interrupt-like
// delivery context safe even if the host side stalls.
package evqueue

import (
	"sync"
	"sync/atomic"
)

// Queue is a bounded channel-like buffer with overwrite-oldest semantics.
type Queue[T any] struct {
	mu      sync.RWMutex
	ch      chan T
	closed  bool
	written int64
	dropped int64
}

// New creates a queue with the given capacity.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("evqueue: capacity must be > 0")
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// Push inserts an event, discarding the oldest when full. Never blocks
// indefinitely; events pushed after Close are silently discarded, since the
// transport may still deliver a late frame during shutdown. Reports whether
// an event was dropped to make room.
func (q *Queue[T]) Push(v T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}

	// Alternate a non-blocking send with a drop-oldest drain until the
	// send lands. A racing producer may steal a freed slot, so one drain
	// is not enough to make the follow-up send safe.
	dropped := false
	for {
		select {
		case q.ch <- v:
			atomic.AddInt64(&q.written, 1)
			return dropped
		default:
		}
		select {
		case <-q.ch:
			atomic.AddInt64(&q.dropped, 1)
			dropped = true
		default:
		}
	}
}

// C returns the receive side. Consumers range over it until Close.
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

// Len returns the number of buffered events.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Written returns the total number of events pushed.
func (q *Queue[T]) Written() int64 { return atomic.LoadInt64(&q.written) }

// Dropped returns the number of events discarded to make room.
func (q *Queue[T]) Dropped() int64 { return atomic.LoadInt64(&q.dropped) }

// Close closes the queue. Idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
